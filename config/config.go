// Package config loads the YAML description of a translation training run
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid config")

// Corpus is a pair of line aligned text files
type Corpus struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// Model describes the encoder-decoder and where its exported graph lives
type Model struct {
	Vocab                 string  `yaml:"vocab"`
	DModel                int     `yaml:"d_model"`
	EncoderLayers         int     `yaml:"encoder_layers"`
	DecoderLayers         int     `yaml:"decoder_layers"`
	MaxPositionEmbeddings int     `yaml:"max_position_embeddings"`
	LearningRate          float64 `yaml:"learning_rate"`

	// ONNX is the exported forward graph used for evaluation
	ONNX string `yaml:"onnx"`

	// Runtime is the onnxruntime shared library; empty uses the platform default
	Runtime string `yaml:"runtime"`

	// CUDA runs the model on device DeviceID instead of the CPU
	CUDA     bool `yaml:"cuda"`
	DeviceID int  `yaml:"device_id"`
}

// Data configures one loader
type Data struct {
	Corpora   []Corpus `yaml:"corpora"`
	BatchSize int      `yaml:"batch_size"`
	Workers   int      `yaml:"workers"`
	Prefetch  int      `yaml:"prefetch"`
	DropLast  bool     `yaml:"drop_last"`

	// SampleFraction of the dataset drawn per epoch; 1 visits everything in order
	SampleFraction float64 `yaml:"sample_fraction"`
	Replacement    bool    `yaml:"replacement"`
	Seed           int64   `yaml:"seed"`
}

// Trainer mirrors trainer.Trainer
type Trainer struct {
	MaxEpochs      int  `yaml:"max_epochs"`
	LogEvery       int  `yaml:"log_every"`
	SanityValSteps int  `yaml:"sanity_val_steps"`
	Significance   byte `yaml:"significance"`
}

// Config is a complete run description
type Config struct {
	Model   Model   `yaml:"model"`
	Train   Data    `yaml:"train"`
	Valid   Data    `yaml:"valid"`
	Trainer Trainer `yaml:"trainer"`

	// CacheBytes sizes the tokenization cache; negative disables it
	CacheBytes int `yaml:"cache_bytes"`

	// MaxLength truncates tokenized sentences. It defaults to
	// max_position_embeddings; negative keeps sentences whole.
	MaxLength int `yaml:"max_length"`
}

// TrainCorpora are the parallel corpora of the default training mix
func TrainCorpora() []Corpus {
	return []Corpus{
		{"ai_challenger_2017", "data/ai_challenger_2017_train.en", "data/ai_challenger_2017_train.zh"},
		{"minecraft", "data/minecraft.en", "data/minecraft.zh"},
		{"translation2019zh", "data/translation2019zh_train.en", "data/translation2019zh_train.zh"},
		{"MultiUN", "data/MultiUN.en-zh.en", "data/MultiUN.en-zh.zh"},
		{"umcorpus", "data/umcorpus.en", "data/umcorpus.zh"},
		{"news-commentary-v12", "data/news-commentary-v12.zh-en.en", "data/news-commentary-v12.zh-en.zh"},
		{"ted", "data/ted_train_en-zh.raw.en", "data/ted_train_en-zh.raw.zh"},
	}
}

// ValidCorpora is the default validation set
func ValidCorpora() []Corpus {
	return []Corpus{
		{"translation2019zh_valid", "data/translation2019zh_valid.en", "data/translation2019zh_valid.zh"},
	}
}

// Default is the configuration used when no file is given
func Default() *Config {
	c := &Config{
		Train: Data{Replacement: true},
	}
	c.Normalize()
	return c
}

// Load reads and normalizes a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates. Keys that are not part of
// the configuration are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{
		Train: Data{Replacement: true},
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse config")
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Normalize fills unset fields with their defaults
func (c *Config) Normalize() {
	m := &c.Model
	if m.Vocab == "" {
		m.Vocab = "./vocab/vocab.txt"
	}
	if m.DModel == 0 {
		m.DModel = 1024
	}
	if m.EncoderLayers == 0 {
		m.EncoderLayers = 6
	}
	if m.DecoderLayers == 0 {
		m.DecoderLayers = 6
	}
	if m.MaxPositionEmbeddings == 0 {
		m.MaxPositionEmbeddings = 512
	}
	if m.LearningRate == 0 {
		m.LearningRate = 3e-5
	}

	if c.Train.Corpora == nil {
		c.Train.Corpora = TrainCorpora()
	}
	c.Train.normalize(8, 0.01)

	if c.Valid.Corpora == nil {
		c.Valid.Corpora = ValidCorpora()
	}
	c.Valid.normalize(4, 1)

	if c.Trainer.LogEvery == 0 {
		c.Trainer.LogEvery = 50
	}
	if c.Trainer.SanityValSteps == 0 {
		c.Trainer.SanityValSteps = 2
	}

	if c.CacheBytes == 0 {
		c.CacheBytes = 64 << 20
	}
	if c.MaxLength == 0 {
		c.MaxLength = m.MaxPositionEmbeddings
	}
}

func (d *Data) normalize(workers int, fraction float64) {
	if d.BatchSize == 0 {
		d.BatchSize = 8
	}
	if d.Workers == 0 {
		d.Workers = workers
	}
	if d.SampleFraction == 0 {
		d.SampleFraction = fraction
	}
}

// Validate reports the first inconsistent setting
func (c *Config) Validate() error {
	if err := c.Train.validate("train"); err != nil {
		return err
	}
	if err := c.Valid.validate("valid"); err != nil {
		return err
	}
	if c.Model.DeviceID < 0 {
		return errors.Wrap(ErrInvalid, "model.device_id must not be negative")
	}
	if c.Model.LearningRate < 0 {
		return errors.Wrap(ErrInvalid, "model.learning_rate must not be negative")
	}
	if c.Trainer.Significance > 100 {
		return errors.Wrapf(ErrInvalid, "trainer.significance %d is above 100", c.Trainer.Significance)
	}
	if c.MaxLength == 1 {
		return errors.Wrap(ErrInvalid, "max_length must leave room for the markers")
	}
	return nil
}

func (d *Data) validate(section string) error {
	if d.BatchSize <= 0 {
		return errors.Wrapf(ErrInvalid, "%s.batch_size must be positive", section)
	}
	if d.Workers < 0 {
		return errors.Wrapf(ErrInvalid, "%s.workers must not be negative", section)
	}
	if len(d.Corpora) == 0 {
		return errors.Wrapf(ErrInvalid, "%s has no corpora", section)
	}
	for i, c := range d.Corpora {
		if c.Source == "" || c.Target == "" {
			return errors.Wrapf(ErrInvalid, "%s.corpora[%d] needs source and target", section, i)
		}
	}
	if d.SampleFraction <= 0 || d.SampleFraction > 1 {
		return errors.Wrapf(ErrInvalid, "%s.sample_fraction %g outside (0, 1]", section, d.SampleFraction)
	}
	return nil
}
