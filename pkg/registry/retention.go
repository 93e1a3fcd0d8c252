package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shotpipe/shotpipe/pkg/async"
	"github.com/shotpipe/shotpipe/pkg/observability"
)

// sweepWorkers bounds how many entities a sweep prunes concurrently.
const sweepWorkers = 4

// EntityLister is implemented by stores that can enumerate the entities they
// hold records for. Retention sweeps require it.
type EntityLister interface {
	ListEntities(ctx context.Context) ([]string, error)
}

// RetentionConfig controls the registry retention sweep.
type RetentionConfig struct {
	// Schedule is a cron expression; empty disables the sweep.
	Schedule string
	// MaxAge prunes records older than this. Zero means no age limit.
	MaxAge time.Duration
	// KeepVersions always retains at least this many newest versions per
	// (name, entity), regardless of age.
	KeepVersions int
}

// Retention runs scheduled sweeps that prune old publish records while
// always keeping the newest versions of each publish. Payload files on disk
// are left alone; only registry records are pruned.
type Retention struct {
	store  Store
	lister EntityLister
	cfg    RetentionConfig
	log    *observability.Logger
	cron   *cron.Cron
}

// NewRetention creates a retention sweeper. The store must also implement
// EntityLister.
func NewRetention(store Store, cfg RetentionConfig, log *observability.Logger) (*Retention, error) {
	lister, ok := store.(EntityLister)
	if !ok {
		return nil, fmt.Errorf("store does not support entity listing")
	}
	if cfg.KeepVersions <= 0 {
		cfg.KeepVersions = 3
	}
	return &Retention{
		store:  store,
		lister: lister,
		cfg:    cfg,
		log:    log,
		cron:   cron.New(),
	}, nil
}

// Start schedules the sweep. No-op when no schedule is configured.
func (r *Retention) Start() error {
	if r.cfg.Schedule == "" {
		r.log.Info("retention sweep disabled")
		return nil
	}
	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := r.Sweep(ctx); err != nil {
			r.log.WithError(err).Error("retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", r.cfg.Schedule, err)
	}
	r.cron.Start()
	r.log.Infof("retention sweep scheduled: %s", r.cfg.Schedule)
	return nil
}

// Stop halts the sweep scheduler.
func (r *Retention) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep prunes eligible records once and returns how many were removed.
// Entities are swept concurrently with a bounded worker pool.
func (r *Retention) Sweep(ctx context.Context) (int, error) {
	if r.cfg.MaxAge <= 0 {
		return 0, nil
	}

	entities, err := r.lister.ListEntities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list entities: %w", err)
	}

	cutoff := time.Now().Add(-r.cfg.MaxAge)
	var removed int64

	sweepErrs := async.Batch(ctx, entities, sweepWorkers, time.Minute,
		func(ectx context.Context, entity string) error {
			n, err := r.sweepEntity(ectx, entity, cutoff)
			atomic.AddInt64(&removed, int64(n))
			return err
		})

	if n := atomic.LoadInt64(&removed); n > 0 {
		r.log.Infof("retention sweep pruned %d publish records", n)
	}
	return int(atomic.LoadInt64(&removed)), errors.Join(sweepErrs...)
}

// sweepEntity prunes one entity's records and returns how many it removed.
func (r *Retention) sweepEntity(ctx context.Context, entity string, cutoff time.Time) (int, error) {
	publishes, err := r.store.ListPublishes(ctx, entity)
	if err != nil {
		return 0, fmt.Errorf("failed to list publishes for %s: %w", entity, err)
	}

	// Group versions by publish name; ListPublishes is newest first.
	byName := make(map[string][]*PublishedFile)
	for _, pf := range publishes {
		byName[pf.Name] = append(byName[pf.Name], pf)
	}

	removed := 0
	for _, versions := range byName {
		for i, pf := range versions {
			if i < r.cfg.KeepVersions {
				continue
			}
			if pf.CreatedAt.After(cutoff) {
				continue
			}
			if err := r.store.DeletePublish(ctx, pf.ID); err != nil {
				r.log.WithError(err).
					WithField("publish_id", pf.ID).
					Warn("failed to prune publish record")
				continue
			}
			removed++
		}
	}
	return removed, nil
}
