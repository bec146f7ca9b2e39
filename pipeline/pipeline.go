// Package pipeline assembles a configured run: the tokenizer, the corpora and
// the training and validation loaders.
package pipeline

import (
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/collate"
	"github.com/jstzwj/DeepT/config"
	"github.com/jstzwj/DeepT/datasets"
	"github.com/jstzwj/DeepT/datasets/translation"
	"github.com/jstzwj/DeepT/loader"
	"github.com/jstzwj/DeepT/parallel"
	"github.com/jstzwj/DeepT/sampler"
	"github.com/jstzwj/DeepT/tokenizer"
	"github.com/jstzwj/DeepT/trainer"
)

// Pipeline owns the open corpora of a run
type Pipeline struct {
	Config    *config.Config
	Tokenizer *tokenizer.WordPiece

	enc   tokenizer.Encoder
	cache *tokenizer.Cached

	mu   sync.Mutex
	open []*translation.Lazy
}

// Open loads the tokenizer named by cfg
func Open(cfg *config.Config) (*Pipeline, error) {
	wp, err := tokenizer.Load(cfg.Model.Vocab)
	if err != nil {
		return nil, errors.Wrap(err, "load tokenizer")
	}
	p := &Pipeline{
		Config:    cfg,
		Tokenizer: wp,
		enc:       wp,
	}
	if cfg.CacheBytes > 0 {
		p.cache = tokenizer.NewCached(wp, cfg.CacheBytes)
		p.enc = p.cache
	}
	klog.V(1).InfoS("tokenizer loaded", "vocab", cfg.Model.Vocab, "size", wp.VocabSize(),
		"pad", wp.PadID(), "bos", wp.BosID(), "eos", wp.EosID())
	return p, nil
}

// Pad is the collate function for this vocabulary
func (p *Pipeline) Pad() collate.Pad {
	return collate.Pad{PadID: p.Tokenizer.PadID()}
}

// Dataset opens every corpus lazily and concatenates them in order
func (p *Pipeline) Dataset(corpora []config.Corpus) (*datasets.Concat, error) {
	parts := make([]*translation.Lazy, len(corpora))
	err := parallel.ForEachErr(len(corpora), 0, func(i int) error {
		c := corpora[i]
		ds, err := translation.NewLazy(c.Source, c.Target, p.enc)
		if err != nil {
			return errors.Wrapf(err, "corpus %s", c.Name)
		}
		ds.MaxLength = p.Config.MaxLength
		parts[i] = ds
		klog.V(1).InfoS("corpus indexed", "name", c.Name, "pairs", ds.Len())
		return nil
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	ds := make([]datasets.Dataset, 0, len(parts))
	for _, part := range parts {
		if part != nil {
			p.open = append(p.open, part)
			ds = append(ds, part)
		}
	}
	if err != nil {
		return nil, err
	}
	return datasets.NewConcat(ds...), nil
}

// Sampler draws SampleFraction of n examples per epoch. Sequential order is
// used only when the whole dataset is visited without shuffling.
func Sampler(d config.Data, n int, shuffle bool) sampler.Sampler {
	if !shuffle && !d.Replacement && d.SampleFraction >= 1 {
		return sampler.Sequential(n)
	}
	return sampler.Random{
		N:           n,
		NumSamples:  sampler.Fraction(n, d.SampleFraction),
		Replacement: d.Replacement,
		Seed:        d.Seed,
	}
}

func (p *Pipeline) loader(d config.Data, shuffle bool) (*loader.Loader, error) {
	ds, err := p.Dataset(d.Corpora)
	if err != nil {
		return nil, err
	}
	return loader.New(ds, Sampler(d, ds.Len(), shuffle), p.Pad(), loader.Config{
		BatchSize:      d.BatchSize,
		NumWorkers:     d.Workers,
		PrefetchFactor: d.Prefetch,
		DropLast:       d.DropLast,
	}), nil
}

// TrainLoader samples randomly from the training corpora
func (p *Pipeline) TrainLoader() (*loader.Loader, error) {
	return p.loader(p.Config.Train, true)
}

// ValLoader visits the validation corpora in order
func (p *Pipeline) ValLoader() (*loader.Loader, error) {
	return p.loader(p.Config.Valid, false)
}

// Module wraps a model in the teacher forced training objective
func (p *Pipeline) Module(model trainer.Forwarder) *trainer.Seq2Seq {
	return &trainer.Seq2Seq{
		Model:        model,
		PadID:        p.Tokenizer.PadID(),
		LearningRate: p.Config.Model.LearningRate,
	}
}

// Trainer is the configured fit loop
func (p *Pipeline) Trainer() *trainer.Trainer {
	t := p.Config.Trainer
	return &trainer.Trainer{
		MaxEpochs:      t.MaxEpochs,
		LogEvery:       t.LogEvery,
		SanityValSteps: t.SanityValSteps,
		Significance:   t.Significance,
	}
}

// CacheStats reports the tokenization cache, if enabled
func (p *Pipeline) CacheStats() (fastcache.Stats, bool) {
	if p.cache == nil {
		return fastcache.Stats{}, false
	}
	return p.cache.Stats(), true
}

// Close releases every opened corpus
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var first error
	for _, ds := range p.open {
		if err := ds.Close(); err != nil && first == nil {
			first = err
		}
	}
	p.open = nil
	if p.cache != nil {
		p.cache.Reset()
	}
	return first
}
