package backtest

import (
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/model"
	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/signal"
)

// Observer receives run events. Implementations must not mutate what they
// are given.
type Observer interface {
	OnCandle(index int)
	OnSignal(sig signal.Signal)
	OnEntry(pos model.Position)
	OnEntryRefused(sig signal.Signal, err error)
	OnExit(tr model.Trade)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnCandle(int)                        {}
func (NopObserver) OnSignal(signal.Signal)              {}
func (NopObserver) OnEntry(model.Position)              {}
func (NopObserver) OnEntryRefused(signal.Signal, error) {}
func (NopObserver) OnExit(model.Trade)                  {}
