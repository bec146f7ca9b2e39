// Package parallel contains the worker loops and concurrency primitives used by the data loader.
package parallel

import (
	"sync"
	"sync/atomic"
)

// LoopStopper is an interface to check if the loop should stop.
type LoopStopper interface {

	// Load reports true if the loop should stop.
	Load() bool
}

// Loop represents the number of goroutines to run.
type Loop int

// LoopUntil starts 'l' goroutines that iterate until one of them stops the loop.
// Each goroutine claims a unique integer i starting from 0.
// The loop stops when i reaches length or any goroutine's yield returns true.
// Every index below the stopping point is claimed exactly once.
func (l Loop) LoopUntil(length int, yield func(i int, ender LoopStopper) bool) {
	var (
		i     atomic.Int64
		ender atomic.Bool
		wg    sync.WaitGroup
	)

	n := int(l)
	if n <= 0 {
		n = 1
	}

	for g := 0; g < n; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ender.Load() {
					return
				}

				// previous value of the counter is the index we own
				current := int(i.Add(1) - 1)
				if current >= length {
					return
				}

				if yield(current, &ender) {
					ender.Store(true)
					return
				}
			}
		}()
	}

	wg.Wait()
}
