// Package cache decorates an evidence store with a Redis index from content
// hash to evidence ID. Upload dedup checks are the hottest read in the
// pipeline; the index answers them without touching the primary store. The
// cache is an optimization only: misses and Redis failures fall through to
// the wrapped store, so correctness never depends on Redis being up.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pfascert/internal/evidence/models"
	evstore "pfascert/internal/evidence/store"
	id "pfascert/pkg/domain"
)

const (
	keyPrefix = "evidence:hash:"
	// Hashes are immutable, so the TTL exists only to bound memory.
	indexTTL = 24 * time.Hour
)

// HashIndex wraps a Store, serving FindByHash through Redis when possible.
type HashIndex struct {
	evstore.Store
	client *redis.Client
	logger *slog.Logger
}

// New wraps next with the Redis index.
func New(next evstore.Store, client *redis.Client, logger *slog.Logger) *HashIndex {
	return &HashIndex{Store: next, client: client, logger: logger}
}

func (c *HashIndex) Create(ctx context.Context, evidence models.Evidence) error {
	if err := c.Store.Create(ctx, evidence); err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+evidence.SHA256Hash, evidence.ID.String(), indexTTL).Err(); err != nil {
		// Index write failure is not a create failure.
		c.logger.WarnContext(ctx, "hash index write failed",
			"evidence_id", evidence.ID,
			"error", err,
		)
	}
	return nil
}

func (c *HashIndex) FindByHash(ctx context.Context, sha256Hash string) (models.Evidence, error) {
	cached, err := c.client.Get(ctx, keyPrefix+sha256Hash).Result()
	if err == nil {
		if evidenceID, parseErr := id.ParseEvidenceID(cached); parseErr == nil {
			if ev, findErr := c.Store.FindByIDIncludeDeleted(ctx, evidenceID); findErr == nil {
				return ev, nil
			}
		}
		// Stale or unparseable entry: drop it and fall through.
		c.client.Del(ctx, keyPrefix+sha256Hash)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "hash index read failed", "error", err)
	}

	ev, err := c.Store.FindByHash(ctx, sha256Hash)
	if err != nil {
		return models.Evidence{}, err
	}
	if setErr := c.client.Set(ctx, keyPrefix+sha256Hash, ev.ID.String(), indexTTL).Err(); setErr != nil {
		c.logger.WarnContext(ctx, "hash index backfill failed", "error", setErr)
	}
	return ev, nil
}
