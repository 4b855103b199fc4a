package dynamo

import (
	"math"
	"runtime"
	"sync"
)

// ParallelFor executes fn in parallel over disjoint chunks of [0, n).
// Small ranges run inline on the caller's goroutine.
func ParallelFor(n, minChunk int, fn func(start, end int)) {
	numWorkers := runtime.GOMAXPROCS(0)
	if minChunk < 1 {
		minChunk = 1
	}
	if n <= minChunk || numWorkers <= 1 {
		fn(0, n)
		return
	}

	workers := numWorkers
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers < 1 {
		workers = 1
	}

	chunkSize := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}

	wg.Wait()
}

// ParallelMin returns the minimum of value(i) over [0, n), or +Inf when n is zero.
func ParallelMin(n, minChunk int, value func(i int) float64) float64 {
	var mu sync.Mutex
	best := math.Inf(1)

	ParallelFor(n, minChunk, func(start, end int) {
		local := math.Inf(1)
		for i := start; i < end; i++ {
			if v := value(i); v < local {
				local = v
			}
		}
		mu.Lock()
		if local < best {
			best = local
		}
		mu.Unlock()
	})

	return best
}
