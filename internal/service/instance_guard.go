package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"offline-cart-sync/internal/logger"
	"offline-cart-sync/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InstanceGuard keeps a heartbeat claim on the durable store so a second
// engine pointed at the same store refuses to start. The check-then-write is
// not atomic; two engines starting in the same instant can both win.
type InstanceGuard struct {
	repo     repository.InstanceClaimRepository
	id       string
	hostname string
	ttl      time.Duration
	now      func() time.Time
	log      *zap.SugaredLogger
}

func NewInstanceGuard(repo repository.InstanceClaimRepository, ttl time.Duration, log *zap.SugaredLogger) *InstanceGuard {
	hostname, _ := os.Hostname()
	return &InstanceGuard{
		repo:     repo,
		id:       uuid.New().String(),
		hostname: hostname,
		ttl:      ttl,
		now:      time.Now,
		log:      logger.OrNop(log),
	}
}

func (g *InstanceGuard) ID() string {
	return g.id
}

func (g *InstanceGuard) Acquire(ctx context.Context) error {
	claim, err := g.repo.Get(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read instance claim: %w", err)
	case claim.InstanceID != g.id && !claim.Expired(g.now(), g.ttl):
		return fmt.Errorf("%w: %s on %s, last heartbeat %s",
			ErrInstanceClaimed, claim.InstanceID, claim.Hostname, claim.Heartbeat.Format(time.RFC3339))
	}

	if err := g.heartbeat(ctx); err != nil {
		return err
	}
	g.log.Infow("Instance claim acquired", "instance_id", g.id)
	return nil
}

func (g *InstanceGuard) heartbeat(ctx context.Context) error {
	err := g.repo.Put(ctx, &repository.InstanceClaim{
		InstanceID: g.id,
		Hostname:   g.hostname,
		Heartbeat:  g.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to write instance claim: %w", err)
	}
	return nil
}

// Run refreshes the claim every ttl/3 until ctx is done, then releases it.
func (g *InstanceGuard) Run(ctx context.Context) error {
	interval := g.ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return g.Release(releaseCtx)
		case <-ticker.C:
			if err := g.heartbeat(ctx); err != nil && ctx.Err() == nil {
				g.log.Warnw("Instance heartbeat failed", "error", err)
			}
		}
	}
}

// Release removes the claim if this instance still owns it.
func (g *InstanceGuard) Release(ctx context.Context) error {
	claim, err := g.repo.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read instance claim: %w", err)
	}
	if claim.InstanceID != g.id {
		return nil
	}
	if err := g.repo.Delete(ctx); err != nil {
		return fmt.Errorf("failed to release instance claim: %w", err)
	}
	g.log.Infow("Instance claim released", "instance_id", g.id)
	return nil
}
