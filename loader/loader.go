// Package loader iterates a dataset in batches, fetching and collating them on a
// pool of workers while delivering them in sampler order.
package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/parallel"
	"github.com/jstzwj/DeepT/sampler"
)

// DefaultPrefetchFactor is the number of batches each worker may run ahead
const DefaultPrefetchFactor = 2

// Config controls batching and the worker pool
type Config struct {
	BatchSize int

	// NumWorkers defaults to the number of physical cores
	NumWorkers int

	// PrefetchFactor bounds the batches in flight to NumWorkers*PrefetchFactor
	PrefetchFactor int

	// DropLast discards a final incomplete batch
	DropLast bool
}

// Batch is one collated step of an epoch
type Batch struct {
	// Index is the position of the batch within its epoch
	Index int

	// Indices are the dataset indices the batch was built from
	Indices []int

	Source, Target collate.Tokens
}

// Result carries a batch or the error that ended the epoch
type Result struct {
	Batch
	Err error
}

// Loader is the data loader over a dataset
type Loader struct {
	ds      datasets.Dataset
	sampler sampler.Sampler
	pad     collate.Pad
	cfg     Config
	epochs  atomic.Int64
}

// New creates a loader. Zero config fields take their defaults.
func New(ds datasets.Dataset, s sampler.Sampler, pad collate.Pad, cfg Config) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	cfg.NumWorkers = parallel.Workers(cfg.NumWorkers)
	if cfg.PrefetchFactor <= 0 {
		cfg.PrefetchFactor = DefaultPrefetchFactor
	}
	return &Loader{
		ds:      ds,
		sampler: s,
		pad:     pad,
		cfg:     cfg,
	}
}

// Config returns the effective configuration
func (l *Loader) Config() Config {
	return l.cfg
}

// Len is the number of batches per epoch
func (l *Loader) Len() int {
	return sampler.NumBatches(l.sampler.Len(), l.cfg.BatchSize, l.cfg.DropLast)
}

// Dataset returns the underlying dataset
func (l *Loader) Dataset() datasets.Dataset {
	return l.ds
}

// Epoch starts the next epoch and returns its batches in order. The channel is
// closed when the epoch ends, when ctx is cancelled, or after the first error.
// Each call draws a fresh order from the sampler.
func (l *Loader) Epoch(ctx context.Context) <-chan Result {
	epoch := int(l.epochs.Add(1) - 1)
	groups := sampler.Batches(l.sampler.Indices(epoch), l.cfg.BatchSize, l.cfg.DropLast)

	klog.V(2).InfoS("epoch start", "epoch", epoch, "batches", len(groups), "workers", l.cfg.NumWorkers)

	out := make(chan Result)
	go l.run(ctx, groups, out)
	return out
}

func (l *Loader) run(ctx context.Context, groups [][]int, out chan<- Result) {
	defer close(out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	win := newWindow(l.cfg.NumWorkers * l.cfg.PrefetchFactor)
	stop := context.AfterFunc(ctx, win.close)
	defer stop()

	done := make(chan Result, l.cfg.NumWorkers)
	go func() {
		defer close(done)
		parallel.Loop(l.cfg.NumWorkers).LoopUntil(len(groups), func(i int, _ parallel.LoopStopper) bool {
			if !win.wait(i) {
				return true
			}
			r := l.fetch(i, groups[i])
			select {
			case done <- r:
			case <-ctx.Done():
				return true
			}
			return r.Err != nil
		})
	}()

	pending := make(map[int]Result)
	next := 0
	for r := range done {
		pending[r.Index] = r
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
			if r.Err != nil {
				return
			}
			next++
			win.advance(next)
		}
	}
}

// fetch reads and collates batch i
func (l *Loader) fetch(i int, indices []int) Result {
	pairs := make([]datasets.Pair, len(indices))
	for j, idx := range indices {
		p, err := l.ds.At(idx)
		if err != nil {
			return Result{Batch: Batch{Index: i, Indices: indices}, Err: errors.Wrapf(err, "batch %d example %d", i, idx)}
		}
		pairs[j] = p
	}
	src, trg := l.pad.Collate(pairs)
	return Result{Batch: Batch{
		Index:   i,
		Indices: indices,
		Source:  src,
		Target:  trg,
	}}
}

// window admits batch i only while it is fewer than size batches ahead of the
// next batch to be delivered
type window struct {
	mu     sync.Mutex
	cond   *sync.Cond
	next   int
	size   int
	closed bool
}

func newWindow(size int) *window {
	w := &window{size: max(size, 1)}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *window) wait(i int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.closed && i >= w.next+w.size {
		w.cond.Wait()
	}
	return !w.closed
}

func (w *window) advance(next int) {
	w.mu.Lock()
	w.next = next
	w.mu.Unlock()
	w.cond.Broadcast()
}

func (w *window) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cond.Broadcast()
}
