package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/calderhq/sidechat/internal/llm"
	"github.com/rs/zerolog/log"
)

const (
	modelCatalogKey = "models:catalog"
	modelCatalogTTL = 60 * time.Second
)

// ModelCache caches the assembled model catalog in Redis so repeated
// listings do not re-query every provider. Failures degrade to a cache
// miss; the catalog is always reproducible from the providers.
type ModelCache struct {
	client *Client
}

// NewModelCache creates a new model catalog cache
func NewModelCache(client *Client) *ModelCache {
	return &ModelCache{client: client}
}

// Get retrieves the cached catalog. The second return is false on a
// miss or any Redis error.
func (c *ModelCache) Get(ctx context.Context) (*llm.Catalog, bool) {
	data, err := c.client.rdb.Get(ctx, modelCatalogKey).Bytes()
	if err != nil {
		return nil, false
	}

	var catalog llm.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		log.Debug().Err(err).Msg("discarding unreadable model catalog cache entry")
		return nil, false
	}

	return &catalog, true
}

// Set caches the catalog with a short TTL
func (c *ModelCache) Set(ctx context.Context, catalog *llm.Catalog) {
	data, err := json.Marshal(catalog)
	if err != nil {
		log.Debug().Err(err).Msg("failed to marshal model catalog for cache")
		return
	}

	if err := c.client.rdb.Set(ctx, modelCatalogKey, data, modelCatalogTTL).Err(); err != nil {
		log.Debug().Err(err).Msg("failed to cache model catalog")
	}
}

// Invalidate drops the cached catalog
func (c *ModelCache) Invalidate(ctx context.Context) error {
	return c.client.rdb.Del(ctx, modelCatalogKey).Err()
}
