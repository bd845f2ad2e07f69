package repository

import (
	"context"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

const instanceClaimKey = "engine_instance.v1"

// InstanceClaim marks the engine process that currently owns the store.
type InstanceClaim struct {
	InstanceID string    `json:"instance_id"`
	Hostname   string    `json:"hostname"`
	Heartbeat  time.Time `json:"heartbeat"`
}

func (c *InstanceClaim) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.Heartbeat) > ttl
}

type InstanceClaimRepository interface {
	Get(ctx context.Context) (*InstanceClaim, error)
	Put(ctx context.Context, claim *InstanceClaim) error
	Delete(ctx context.Context) error
}

type instanceClaimRepository struct {
	store KeyValueStore
}

func NewInstanceClaimRepository(store KeyValueStore) InstanceClaimRepository {
	return &instanceClaimRepository{
		store: store,
	}
}

func (r *instanceClaimRepository) Get(ctx context.Context) (*InstanceClaim, error) {
	raw, err := r.store.Get(ctx, instanceClaimKey)
	if err != nil {
		return nil, err
	}

	var claim InstanceClaim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, fmt.Errorf("failed to decode instance claim: %w", err)
	}
	return &claim, nil
}

func (r *instanceClaimRepository) Put(ctx context.Context, claim *InstanceClaim) error {
	data, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("failed to encode instance claim: %w", err)
	}
	return r.store.Set(ctx, instanceClaimKey, data)
}

func (r *instanceClaimRepository) Delete(ctx context.Context) error {
	return r.store.Remove(ctx, instanceClaimKey)
}
