package storage

import (
	"context"
	"fmt"

	"github.com/smallbiznis/royalti/internal/clock"
	"github.com/smallbiznis/royalti/internal/config"
	"github.com/smallbiznis/royalti/internal/storage/domain"
	"github.com/smallbiznis/royalti/internal/storage/gcs"
	"github.com/smallbiznis/royalti/internal/storage/local"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("storage",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Clock     clock.Clock
	Log       *zap.Logger
}

// New selects the storage driver named by STORAGE_DRIVER.
func New(p Params) (domain.Storage, error) {
	cfg := p.Config.Storage
	log := p.Log.Named("storage")

	switch cfg.Driver {
	case "", "local":
		log.Info("using local file storage", zap.String("dir", cfg.Dir))
		return local.New(cfg.Dir, p.Clock)
	case "gcs":
		gcsCfg := gcs.Config{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentials,
			Prefix:          cfg.GCSObjectPrefix,
		}
		client, err := gcs.NewClient(context.Background(), gcsCfg)
		if err != nil {
			return nil, err
		}
		s, err := gcs.New(client, gcsCfg, p.Clock)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return s.Close() },
		})
		log.Info("using gcs file storage", zap.String("bucket", cfg.GCSBucket))
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
