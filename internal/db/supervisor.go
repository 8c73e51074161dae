package db

import (
	"context"
	"fmt"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Supervise pings the pool every interval in a background goroutine. The
// first failed ping is delivered on the returned channel as a pool-fatal
// error. The channel is closed when ctx is done or after that error.
func (p *Pool) Supervise(ctx context.Context, interval time.Duration) <-chan error {
	return supervise(ctx, p.pg, interval)
}

func supervise(ctx context.Context, target pinger, interval time.Duration) <-chan error {
	fatal := make(chan error, 1)

	go func() {
		defer close(fatal)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pingCtx, cancel := context.WithTimeout(ctx, interval)
				err := target.Ping(pingCtx)
				cancel()
				if err != nil && ctx.Err() == nil {
					fatal <- fmt.Errorf("connection pool unhealthy: %w", err)
					return
				}
			}
		}
	}()

	return fatal
}
