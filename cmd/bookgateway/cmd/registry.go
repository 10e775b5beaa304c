package cmd

import (
	"fmt"
	"log/slog"

	"bookgateway/internal/book"
	"bookgateway/internal/cache"
	"bookgateway/internal/components/telemetry"
	"bookgateway/internal/config"
	"bookgateway/internal/platform"
	"bookgateway/internal/platform/zlibrary"
	"bookgateway/lib/restyutil"
)

type constructor func(opts platform.Options, tel telemetry.API) (*platform.ScrapeAdapter, error)

// constructors holds every platform this binary knows how to talk to.
var constructors = map[string]constructor{
	zlibrary.ID: zlibrary.New,
}

func adapterOptions(cfg config.Config, id string, output restyutil.Output) platform.Options {
	p := cfg.Platforms[id]
	opts := platform.Options{
		BaseUrl:          p.BaseUrl,
		Timeout:          p.TimeoutDuration(),
		MaxRetries:       p.MaxRetries,
		RetryDelay:       p.RetryDelay(),
		CloudflareBypass: p.CloudflareBypass,
		DumpOutput:       output,
	}
	if cfg.EnableCache {
		opts.SearchCache = cache.New[book.SearchResult](id+"_search", cfg.CacheSize, cfg.CacheTTL())
		opts.DetailCache = cache.New[book.Detail](id+"_detail", cfg.CacheSize, cfg.CacheTTL())
	}
	return opts
}

// newRegistry registers every configured platform, adapters are only built
// when first requested.
func newRegistry(cfg config.Config, tel telemetry.API) (*platform.Registry, error) {
	var output restyutil.Output
	if cfg.HttpDumpDir != "" {
		fsOutput, err := restyutil.NewFilesystemOutput(cfg.HttpDumpDir)
		if err != nil {
			return nil, err
		}
		output = fsOutput
		slog.Info("dumping upstream http exchanges", "dir", cfg.HttpDumpDir)
	}

	registry := platform.NewRegistry()
	for id := range cfg.Platforms {
		newAdapter, ok := constructors[id]
		if !ok {
			slog.Warn("skipping configured platform without an adapter", "platform", id)
			continue
		}
		opts := adapterOptions(cfg, id, output)
		registry.Register(id, func() (platform.Adapter, error) {
			adapter, err := newAdapter(opts, tel)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			return adapter, nil
		})
	}
	return registry, nil
}
