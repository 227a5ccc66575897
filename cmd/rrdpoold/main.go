package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/iamNilotpal/rrdpool/internal/config"
	"github.com/iamNilotpal/rrdpool/pkg/errors"
	"github.com/iamNilotpal/rrdpool/pkg/filesys"
	"github.com/iamNilotpal/rrdpool/pkg/options"
	"github.com/iamNilotpal/rrdpool/pkg/rrd"
	"github.com/iamNilotpal/rrdpool/pkg/rrdpool"
)

func main() {
	configPath := flag.String("config", "rrdpoold.yaml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load error: %v \n", err)
	}

	if err := filesys.CreateDir(cfg.DataDir, 0755, true); err != nil {
		log.Fatalf("data dir error: %v \n", err)
	}

	pool, err := rrdpool.New(
		cfg.Service,
		options.WithCapacity(cfg.Capacity),
		options.WithLimitedCapacity(cfg.LimitedCapacity),
	)
	if err != nil {
		log.Fatalf("pool create error: %#v \n", err)
	}

	defer func() {
		if err := pool.Close(); err != nil {
			log.Fatalf("pool close error: %#v \n", err)
		}
	}()

	ctx := context.Background()

	for _, spec := range cfg.Create {
		path := spec.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}

		def := rrd.Def{Path: path, Step: spec.Step}
		for _, src := range spec.Sources {
			def.Sources = append(def.Sources, rrd.Source{Name: src.Name, Heartbeat: src.Heartbeat})
		}
		for _, arc := range spec.Archives {
			def.Archives = append(def.Archives, rrd.Archive{Steps: arc.Steps, Rows: arc.Rows})
		}

		db, err := pool.RequestCreate(ctx, &def)
		if err != nil {
			if err, ok := errors.AsPoolError(err); ok {
				log.Printf("Code: %#v \n", err.Code())
				log.Printf("Path: %#v \n", err.Path())
			}
			log.Fatalf("archive create error: %v \n", err)
		}
		if err := pool.Release(db); err != nil {
			log.Fatalf("release error: %v \n", err)
		}
	}

	paths, err := filesys.ReadDir(filepath.Join(cfg.DataDir, cfg.PreloadGlob))
	if err != nil {
		log.Fatalf("preload glob error: %v \n", err)
	}

	if err := pool.Preload(ctx, paths); err != nil {
		log.Fatalf("preload error: %v \n", err)
	}

	println(pool.Dump(true))
}
