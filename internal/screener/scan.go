package screener

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errNoFetcher = errors.New("screener: no price source configured")

// DefaultConcurrency bounds parallel lookups in ScreenAll.
const DefaultConcurrency = 4

// ScanResult is the outcome of screening one symbol of a batch.
type ScanResult struct {
	Symbol string
	Report *Report
	Err    error
}

// ScreenAll screens symbols with at most concurrency lookups in flight.
// Results keep the order of symbols. Symbols not reached before ctx is done
// carry ctx's error.
func (s *Service) ScreenAll(ctx context.Context, symbols []string, concurrency int) []ScanResult {
	if len(symbols) == 0 {
		return nil
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	type job struct {
		index  int
		symbol string
	}

	results := make([]ScanResult, len(symbols))
	for i, sym := range symbols {
		results[i] = ScanResult{Symbol: sym}
	}
	done := make([]bool, len(symbols))

	workChan := make(chan job)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range workChan {
				report, err := s.Screen(ctx, j.symbol)
				mu.Lock()
				results[j.index].Report = report
				results[j.index].Err = err
				done[j.index] = true
				mu.Unlock()
			}
		}()
	}

send:
	for i, sym := range symbols {
		select {
		case <-ctx.Done():
			break send
		case workChan <- job{index: i, symbol: sym}:
		}
	}
	close(workChan)
	wg.Wait()

	for i := range results {
		if !done[i] {
			results[i].Err = ctx.Err()
		}
	}
	return results
}

// Matched returns the results of a batch that reported at least one pattern,
// ordered by number of patterns and then symbol.
func Matched(results []ScanResult) []ScanResult {
	var out []ScanResult
	for _, r := range results {
		if r.Err == nil && r.Report != nil && len(r.Report.Result.Matches) > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := len(out[i].Report.Result.Matches), len(out[j].Report.Result.Matches)
		if ni != nj {
			return ni > nj
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
