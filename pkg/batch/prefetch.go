package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runPipelined loads batches on a producer goroutine while the caller's
// goroutine delivers them. At most p.prefetch loaded batches wait in addition
// to the one being delivered, and batches are delivered strictly in order.
func (p *Processor) runPipelined(
	ctx context.Context,
	loader *ChildLoader,
	rng Range,
	consumer Consumer,
	progress *Progress,
) error {
	g, gctx := errgroup.WithContext(ctx)

	// The producer holds one loaded batch while blocked on send, so the
	// channel buffers one fewer than the prefetch window.
	loaded := make(chan *loadedBatch, p.prefetch-1)

	g.Go(func() error {
		defer close(loaded)
		for b := rng.Min; b <= rng.Max; b++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			lb, err := p.loadBatch(gctx, loader, b)
			if err != nil {
				return err
			}
			select {
			case loaded <- lb:
			case <-gctx.Done():
				lb.release()
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		defer func() {
			for lb := range loaded {
				lb.release()
			}
		}()
		for lb := range loaded {
			if err := gctx.Err(); err != nil {
				lb.release()
				return err
			}
			if err := p.deliver(ctx, lb, consumer, progress); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
