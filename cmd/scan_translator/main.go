package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/jstzwj/DeepT/config"
	"github.com/jstzwj/DeepT/device"
	"github.com/jstzwj/DeepT/loader"
	"github.com/jstzwj/DeepT/pipeline"
)

func main() {
	klog.InitFlags(nil)
	configPath := flag.String("config", "", "run configuration .yaml, built-in defaults when empty")
	epochs := flag.Int("epochs", 1, "number of epochs to scan")
	valid := flag.Bool("valid", false, "scan the validation loader instead of the training loader")
	useCuda := flag.Bool("cuda", false, "stage every batch in GPU memory")
	flag.Bool("pgo", false, "enable pgo")
	flag.Parse()

	err := run(context.Background(), *configPath, *epochs, *valid, *useCuda)
	if err != nil {
		klog.ErrorS(err, "scan failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, configPath string, epochs int, valid, useCuda bool) error {
	logger := klog.LoggerWithValues(klog.Background(), "run", uuid.New().String())

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	p, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var l *loader.Loader
	if valid {
		l, err = p.ValLoader()
	} else {
		l, err = p.TrainLoader()
	}
	if err != nil {
		return err
	}

	var gpu *device.Device
	if useCuda {
		gpu, err = device.Open(cfg.Model.DeviceID)
		if err != nil {
			return err
		}
		defer gpu.Close()
		if mem, err := gpu.TotalMem(); err == nil {
			logger.Info("staging batches on gpu", "device", cfg.Model.DeviceID, "memory", mem)
		}
	}

	logger.Info("scan", "examples", l.Dataset().Len(), "batches", l.Len(),
		"batch_size", l.Config().BatchSize, "workers", l.Config().NumWorkers)

	for epoch := 0; epoch < epochs; epoch++ {
		start := time.Now()
		summary := loader.NewSummary()
		for r := range l.Epoch(ctx) {
			if r.Err != nil {
				return errors.Wrapf(r.Err, "epoch %d", epoch)
			}
			if gpu != nil {
				if err := stage(gpu, r.Batch); err != nil {
					return errors.Wrapf(err, "epoch %d batch %d", epoch, r.Index)
				}
			}
			summary.Add(r.Batch)
			klog.V(3).InfoS("batch", "epoch", epoch, "index", r.Index,
				"source", r.Source.IDs.Shape(), "target", r.Target.IDs.Shape())
		}

		s := summary.Stats()
		elapsed := time.Since(start)
		logger.Info("epoch scanned",
			"epoch", epoch,
			"batches", s.Batches,
			"examples", s.Examples,
			"source_width", s.SourceWidth.String(),
			"target_width", s.TargetWidth.String(),
			"padding", s.Padding.String(),
			"examples_per_second", fmt.Sprintf("%.1f", float64(s.Examples)/elapsed.Seconds()),
			"elapsed", elapsed,
			"fingerprint", fmt.Sprintf("%x", s.Fingerprint))

		if cs, ok := p.CacheStats(); ok {
			logger.V(1).Info("token cache", "gets", cs.GetCalls, "misses", cs.Misses, "entries", cs.EntriesCount)
		}
	}
	return nil
}

// stage copies both sides of b to the gpu and releases them again
func stage(gpu *device.Device, b loader.Batch) error {
	src, err := gpu.Stage(b.Source)
	if err != nil {
		return err
	}
	defer src.Free()
	trg, err := gpu.Stage(b.Target)
	if err != nil {
		return err
	}
	return trg.Free()
}
