package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/OffGrid0xDAO/OffGrid-Scalp-Bot-sub003/internal/report"

	goredis "github.com/go-redis/redis/v8"
)

// Latest returns the newest published run for a series and rule set.
// ok is false when none exists.
func (p *Publisher) Latest(ctx context.Context, series, ruleSet string) (rec report.RunRecord, ok bool, err error) {
	data, err := p.store.latest(ctx, LatestKey(series, ruleSet))
	if errors.Is(err, goredis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("redis GET latest run: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return rec, false, fmt.Errorf("redis decode latest run: %w", err)
	}
	return rec, true, nil
}

// RecentRuns returns up to n runs from the stream, newest first.
func (p *Publisher) RecentRuns(ctx context.Context, n int64) ([]report.RunRecord, error) {
	raw, err := p.store.recent(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("redis XREVRANGE %s: %w", runsStream, err)
	}
	out := make([]report.RunRecord, 0, len(raw))
	for _, data := range raw {
		var rec report.RunRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
