package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/config"
	"github.com/jstzwj/DeepT/loss"
	"github.com/jstzwj/DeepT/model/onnx"
	"github.com/jstzwj/DeepT/pipeline"
)

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "run configuration .yaml, built-in defaults when empty")
	model := flag.String("onnx", "", "exported model, overrides model.onnx of the configuration")
	significance := flag.Int("significance", -1, "evaluate a sample of the batches sufficient at this significance (0-100)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, *configPath, *model, *significance)
	stop()
	if err != nil {
		klog.ErrorS(err, "evaluation failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func run(ctx context.Context, configPath, model string, significance int) error {
	logger := klog.LoggerWithValues(klog.Background(), "run", uuid.New().String())

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if model != "" {
		cfg.Model.ONNX = model
	}
	if significance >= 0 {
		cfg.Trainer.Significance = byte(min(significance, 100))
	}
	if cfg.Model.ONNX == "" {
		return errors.New("no model given, set model.onnx or -onnx")
	}

	p, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	val, err := p.ValLoader()
	if err != nil {
		return err
	}

	m, err := onnx.Open(onnx.Options{
		Path:      cfg.Model.ONNX,
		Runtime:   cfg.Model.Runtime,
		VocabSize: p.Tokenizer.VocabSize(),
		CUDA:      cfg.Model.CUDA,
		DeviceID:  cfg.Model.DeviceID,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	logger.Info("validating", "model", cfg.Model.ONNX, "examples", val.Dataset().Len(), "batches", val.Len())

	v, err := p.Trainer().Validate(ctx, p.Module(m), val)
	if err != nil {
		return err
	}
	logger.Info("validation", "val_loss", v.Loss, "perplexity", loss.Perplexity(v.Loss),
		"batches", v.Batches, "padding", v.Stats.Padding.String())
	return nil
}
