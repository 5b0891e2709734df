package gitclient

import (
	"context"
	"sync"

	"github.com/go-git/go-git/v5"
	"golang.org/x/sync/semaphore"
)

// handlePool hands out repository handles. go-git handles are not safe for
// concurrent use, so every in-flight task borrows one exclusively and returns it
// for the next task. The semaphore in front of the pool caps how many are ever open.
type handlePool struct {
	path string
	free chan *git.Repository
}

func newHandlePool(path string, size int) *handlePool {
	return &handlePool{path: path, free: make(chan *git.Repository, size)}
}

func (p *handlePool) get() (*git.Repository, error) {
	select {
	case repo := <-p.free:
		return repo, nil
	default:
		return OpenRepository(p.path)
	}
}

func (p *handlePool) put(repo *git.Repository) {
	select {
	case p.free <- repo:
	default:
	}
}

type taskResult[R any] struct {
	val R
	err error
}

// forEachChunk runs task for every item, chunkSize items at a time, with at most
// sem's weight of tasks in flight. collect sees every item of a chunk in input
// order once the whole chunk is done, and always on the calling goroutine.
// Task errors are handed to collect; only a collect error or cancellation stops the run.
func forEachChunk[T, R any](
	ctx context.Context,
	sem *semaphore.Weighted,
	handles *handlePool,
	items []T,
	chunkSize int,
	task func(context.Context, *git.Repository, T) (R, error),
	collect func(T, R, error) error,
) error {
	chunkSize = max(chunkSize, 1)
	for start := 0; start < len(items); start += chunkSize {
		chunk := items[start:min(start+chunkSize, len(items))]
		results := make([]taskResult[R], len(chunk))

		var wg sync.WaitGroup
		for i, item := range chunk {
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return err
			}
			wg.Go(func() {
				defer sem.Release(1)
				repo, err := handles.get()
				if err != nil {
					results[i].err = err
					return
				}
				defer handles.put(repo)
				results[i].val, results[i].err = task(ctx, repo, item)
			})
		}
		wg.Wait()

		for i, item := range chunk {
			if err := collect(item, results[i].val, results[i].err); err != nil {
				return err
			}
		}
	}
	return ctx.Err()
}
