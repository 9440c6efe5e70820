package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"partsbot/internal"
	"partsbot/internal/collectors"
)

type outcome struct {
	index  int
	result internal.SourceResult
}

// fanOut runs every collector concurrently and waits until all have settled or
// ctx is done. Collectors still running at that point are reported as not
// completed and their later output is dropped.
func (s *Service) fanOut(ctx context.Context, req collectors.Request, log zerolog.Logger) []internal.SourceResult {
	start := time.Now()
	results := make([]internal.SourceResult, len(s.collectors))
	settled := make([]bool, len(s.collectors))
	if len(s.collectors) == 0 {
		return results
	}

	// Buffered so abandoned collectors never block on send.
	ch := make(chan outcome, len(s.collectors))
	g := new(errgroup.Group)
	if s.cfg.ResolveMaxParallel > 0 {
		g.SetLimit(s.cfg.ResolveMaxParallel)
	}
	go func() {
		for i, c := range s.collectors {
			g.Go(func() error {
				ch <- outcome{index: i, result: runCollector(ctx, c, req, log)}
				return nil
			})
		}
		_ = g.Wait()
		close(ch)
	}()

	collect(ctx, ch, results, settled, log)

	for i, c := range s.collectors {
		if !settled[i] {
			results[i] = internal.SourceResult{
				Source:     c.Name(),
				Tier:       c.Tier(),
				Candidates: []internal.OemCandidate{},
				DurationMs: time.Since(start).Milliseconds(),
			}
		}
	}
	return results
}

// collect stores outcomes until every slot is settled, ch is closed or ctx is
// done. Outcomes already buffered when ctx ends are still kept.
func collect(ctx context.Context, ch <-chan outcome, results []internal.SourceResult, settled []bool, log zerolog.Logger) {
	remaining := len(results)
	keep := func(o outcome) {
		results[o.index] = o.result
		settled[o.index] = true
		remaining--
	}
	for remaining > 0 {
		select {
		case o, ok := <-ch:
			if !ok {
				return
			}
			keep(o)
		case <-ctx.Done():
			for remaining > 0 {
				select {
				case o, ok := <-ch:
					if !ok {
						return
					}
					keep(o)
				default:
					log.Warn().Int("pending", remaining).Msg("resolution deadline reached, abandoning collectors")
					return
				}
			}
			return
		}
	}
}

// runCollector isolates one collector: a panic becomes an empty result.
func runCollector(ctx context.Context, c collectors.Collector, req collectors.Request, log zerolog.Logger) (res internal.SourceResult) {
	start := time.Now()
	res = internal.SourceResult{Source: c.Name(), Tier: c.Tier(), Candidates: []internal.OemCandidate{}}
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("source", c.Name()).Interface("panic", rec).Msg("collector crashed")
			res.Candidates = []internal.OemCandidate{}
		}
		res.Completed = true
		res.DurationMs = time.Since(start).Milliseconds()
	}()

	if found := c.ResolveCandidates(ctx, req); found != nil {
		res.Candidates = found
	}
	return res
}
