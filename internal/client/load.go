package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// LoadOptions configures RunLoad.
type LoadOptions struct {
	Addr        string
	Concurrency int
	Duration    time.Duration
	RPS         int
	Burst       int
}

// LoadResult summarizes a load run.
type LoadResult struct {
	Sent    int64
	Errors  int64
	Elapsed time.Duration
}

// ActualRPS returns the achieved send rate.
func (r LoadResult) ActualRPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Sent+r.Errors) / r.Elapsed.Seconds()
}

// RunLoad sends uuid-tagged log lines from Concurrency connections, limited to
// RPS lines per second in total, until Duration elapses or ctx is done.
func RunLoad(ctx context.Context, opts LoadOptions) (LoadResult, error) {
	if opts.Concurrency <= 0 {
		return LoadResult{}, errors.New("concurrency must be positive")
	}
	if opts.RPS <= 0 {
		return LoadResult{}, errors.New("rps must be positive")
	}
	if opts.Burst <= 0 {
		opts.Burst = min(opts.RPS, 100) // Allow bursts up to 100
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	clients := make([]*LogClient, 0, opts.Concurrency)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()
	for i := 0; i < opts.Concurrency; i++ {
		c, err := DialLog(ctx, opts.Addr, DefaultDialTimeout)
		if err != nil {
			return LoadResult{}, fmt.Errorf("worker %d: %w", i, err)
		}
		clients = append(clients, c)
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)
	var wg sync.WaitGroup
	var sent, failed atomic.Int64
	start := time.Now()

	for i, c := range clients {
		wg.Add(1)
		go func(workerID int, c *LogClient) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return // deadline reached or cancelled
				}
				line := fmt.Sprintf("[INFO] [LoadTest] load test event %s from worker %d", uuid.NewString(), workerID)
				if err := c.Send(line); err != nil {
					failed.Add(1)
					return
				}
				sent.Add(1)
			}
		}(i, c)
	}
	wg.Wait()

	return LoadResult{Sent: sent.Load(), Errors: failed.Load(), Elapsed: time.Since(start)}, nil
}
