package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/banshee-data/trace.review/internal/annotations"
	"github.com/banshee-data/trace.review/internal/config"
	"github.com/banshee-data/trace.review/internal/db"
	"github.com/banshee-data/trace.review/internal/fsutil"
	"github.com/banshee-data/trace.review/internal/monitoring"
	"github.com/banshee-data/trace.review/internal/slots"
	"github.com/banshee-data/trace.review/internal/weather"
)

// backend is an opened slot store. sqlite is set only for the sqlite backend
// so serve can mount its admin routes.
type backend struct {
	slot   annotations.Slot
	sqlite *db.DB
	close  func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend opens the slot store selected by cfg.
func openBackend(ctx context.Context, cfg *config.ReviewConfig) (*backend, error) {
	switch cfg.GetBackend() {
	case config.BackendSQLite:
		database, err := db.NewDB(cfg.GetDBPath())
		if err != nil {
			return nil, err
		}
		return &backend{slot: database, sqlite: database, close: database.Close}, nil

	case config.BackendFile:
		f, err := slots.NewFile(fsutil.OSFileSystem{}, cfg.GetSlotDir())
		if err != nil {
			return nil, err
		}
		return &backend{slot: f}, nil

	case config.BackendRedis:
		r := slots.NewRedis(&redis.Options{
			Addr: cfg.GetRedisAddr(),
			DB:   cfg.GetRedisDB(),
		}, cfg.GetRedisPrefix())
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.GetRedisAddr(), err)
		}
		return &backend{slot: r, close: r.Close}, nil

	case config.BackendMemory:
		monitoring.Logf("memory backend selected; annotations will not survive exit")
		return &backend{slot: slots.NewMemory()}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.GetBackend())
}

// openStore opens the backend and loads the annotation store from it. When
// the slot is malformed the store stays quarantined unless the operator
// passed --reset-malformed-store, in which case the content is backed up and
// the reset accepted. With allowQuarantine the caller continues with a
// quarantined store (serve exposes the reset over HTTP); otherwise a
// malformed slot aborts the command.
func (a *app) openStore(ctx context.Context, cfg *config.ReviewConfig, allowQuarantine bool) (*annotations.Store, *backend, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, nil, a.out.ErrorWithContext(
			"Failed to open annotation backend",
			err.Error(),
			map[string]string{"Backend": cfg.GetBackend()},
			nil,
		)
	}

	store := annotations.NewStore(b.slot, cfg.GetSlotName())
	err = store.Load(ctx)
	var malformed *annotations.MalformedStoreError
	switch {
	case err == nil:
		return store, b, nil

	case errors.As(err, &malformed) && a.opts.resetMalformed:
		backup, rerr := store.AcceptReset(ctx)
		if rerr != nil {
			b.Close()
			return nil, nil, a.out.Error("Failed to reset malformed store", rerr.Error(), nil)
		}
		a.out.Warning("Annotation store %q was malformed; its content was saved to %q and a fresh store started\n", malformed.Slot, backup)
		return store, b, nil

	case errors.As(err, &malformed) && allowQuarantine:
		a.out.Warning("Annotation store %q is malformed and will not be flushed until a reset is accepted (POST /api/annotations/reset)\n", malformed.Slot)
		return store, b, nil

	case errors.As(err, &malformed):
		b.Close()
		return nil, nil, a.out.ErrorWithContext(
			"Annotation store is malformed",
			"The stored annotations could not be parsed, so nothing was loaded.\nContinuing would overwrite them on the next flush.",
			map[string]string{"Backend": cfg.GetBackend(), "Slot": malformed.Slot, "Error": malformed.Err.Error()},
			[]string{
				"Repair the slot content by hand and run the command again",
				"Re-run with --reset-malformed-store to back up the content and start fresh",
			},
		)
	}

	b.Close()
	return nil, nil, a.out.Error("Failed to load annotation store", err.Error(), nil)
}

// loadWeather reads the optional precipitation file named in cfg.
func (a *app) loadWeather(cfg *config.ReviewConfig) *weather.Series {
	path := cfg.GetWeatherPath()
	if path == "" {
		return nil
	}
	series, err := weather.Load(fsutil.OSFileSystem{}, path)
	if err != nil {
		a.out.Warning("Ignoring weather file %s: %v\n", path, err)
		return nil
	}
	monitoring.Logf("Loaded %d days of weather from %s", series.Len(), path)
	return series
}
