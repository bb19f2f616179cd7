package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fyrsmithlabs/resumegate/pkg/session/store"
	"go.uber.org/zap"
)

// Storage names under session/<id>/.
const (
	keyExecutionContext   = "executionContext"
	keyPrefetchSongs      = "prefetch/songs"
	keyPrefetchActivities = "prefetch/activities"
	keyCatalogSongs       = "catalog/songs"
	keyCatalogActivities  = "catalog/activities"
)

func (c *Client) storageKey(name string) string {
	return "session/" + c.sessionID + "/" + name
}

// loadStored decodes name into v. Missing keys and failures both report
// false; failures are logged.
func (c *Client) loadStored(ctx context.Context, name string, v any) bool {
	raw, err := c.store.Get(ctx, c.storageKey(name))
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		c.logger.Warn("session storage read failed", zap.String("key", name), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warn("session storage value unreadable", zap.String("key", name), zap.Error(err))
		return false
	}
	return true
}

func (c *Client) saveStored(ctx context.Context, name string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("session storage encode failed", zap.String("key", name), zap.Error(err))
		return
	}
	if err := c.store.Put(ctx, c.storageKey(name), raw); err != nil {
		c.logger.Warn("session storage write failed", zap.String("key", name), zap.Error(err))
	}
}

func (c *Client) deleteStored(ctx context.Context, name string) {
	if err := c.store.Delete(ctx, c.storageKey(name)); err != nil {
		c.logger.Warn("session storage delete failed", zap.String("key", name), zap.Error(err))
	}
}

// prefetch is a single-use slot: memory first, then storage. Whatever is
// found is removed from both so it substitutes for the network at most once.
type prefetch[T any] struct {
	name   string
	memory []T
	filled bool
}

func (p *prefetch[T]) put(ctx context.Context, c *Client, items []T) {
	p.memory, p.filled = items, true
	c.saveStored(ctx, p.name, items)
}

func (p *prefetch[T]) take(ctx context.Context, c *Client) ([]T, bool) {
	if p.filled {
		items := p.memory
		p.memory, p.filled = nil, false
		c.deleteStored(ctx, p.name)
		return items, true
	}
	var items []T
	if c.loadStored(ctx, p.name, &items) {
		c.deleteStored(ctx, p.name)
		return items, true
	}
	return nil, false
}

// catalog is the last list handed to the caller, kept for id lookups.
type catalog[T any] struct {
	name   string
	items  []T
	loaded bool
}

func (k *catalog[T]) set(ctx context.Context, c *Client, items []T) {
	k.items, k.loaded = items, true
	c.saveStored(ctx, k.name, items)
}

func (k *catalog[T]) get(ctx context.Context, c *Client) []T {
	if !k.loaded {
		var items []T
		if c.loadStored(ctx, k.name, &items) {
			k.items = items
		}
		k.loaded = true
	}
	return k.items
}
