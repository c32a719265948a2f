package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Task is a long-running component; it returns when ctx is done or it fails.
type Task func(ctx context.Context) error

// Run starts every task and waits. The first failure cancels the others.
// Cancellation of ctx is a clean stop, not an error.
func Run(ctx context.Context, tasks ...Task) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		group.Go(func() error { return task(groupCtx) })
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// HTTPServer serves srv until ctx is done, then shuts it down within grace.
func HTTPServer(srv *http.Server, grace time.Duration) Task {
	return func(ctx context.Context) error {
		serveErr := make(chan error, 1)
		go func() { serveErr <- srv.ListenAndServe() }()

		select {
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
