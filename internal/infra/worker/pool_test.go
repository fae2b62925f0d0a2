//go:build !integration

package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPool(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("should run same-key tasks in submission order", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p := NewPool(4, &nop)
		p.Start(ctx)
		defer p.Stop()

		var (
			mu  sync.Mutex
			got []int
			wg  sync.WaitGroup
		)
		for i := 0; i < 50; i++ {
			i := i
			wg.Add(1)
			if err := p.Submit(ctx, "rule-1", func(context.Context) error {
				defer wg.Done()
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
				return nil
			}); err != nil {
				t.Fatalf("Submit: %v", err)
			}
		}
		wg.Wait()
		for i, v := range got {
			if v != i {
				t.Fatalf("out of order at %d: %v", i, got)
			}
		}
	})

	t.Run("should map a key to a stable lane", func(t *testing.T) {
		p := NewPool(8, &nop)
		if p.lane("abc") != p.lane("abc") {
			t.Fatalf("lane is not stable")
		}
		if p.Size() != 8 {
			t.Fatalf("expected 8 workers, got %d", p.Size())
		}
	})

	t.Run("should refuse work after stop", func(t *testing.T) {
		p := NewPool(1, &nop)
		p.Start(context.Background())
		p.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := p.Submit(ctx, "k", func(context.Context) error { return nil }); err != ErrStopped {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	})
}
