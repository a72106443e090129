package ingestion

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// fanOut runs fn for every key on pool and collects per-key failures.
// A failed submission counts as a failure of that key.
func fanOut(ctx context.Context, pool *ants.Pool, keys []string, fn func(ctx context.Context, key string) error) (map[string]error, int) {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = make(map[string]error)
		ok     int
	)
	record := func(key string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed[key] = err
			return
		}
		ok++
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			record(key, err)
			continue
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			record(key, fn(ctx, key))
		})
		if err != nil {
			wg.Done()
			record(key, err)
		}
	}
	wg.Wait()
	return failed, ok
}

func newPool(size int) (*ants.Pool, error) {
	if size < 1 {
		size = 1
	}
	return ants.NewPool(size)
}
