// internal/cache/result_cache.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"absence-analytics/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultMaxEntries = 256

// Key ключ результата: снимок, нормализованные критерии и группировка
func Key(snapshotID string, criteria []models.FilterCriteria, grouping models.Grouping) (string, error) {
	normalized := make([]models.FilterCriteria, len(criteria))
	for i, c := range criteria {
		normalized[i] = c.Normalized()
	}
	payload, err := json.Marshal(struct {
		Criteria []models.FilterCriteria `json:"criteria"`
		Grouping models.Grouping         `json:"grouping"`
	}{normalized, grouping})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return snapshotID + ":" + hex.EncodeToString(sum[:]), nil
}

type entry struct {
	snapshotID string
	result     models.AggregationResult
}

// ResultCache память результатов агрегации на процесс.
// Снимки неизменяемы, поэтому записи устаревают только вместе со снимком.
type ResultCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	order      []string
	maxEntries int
	group      singleflight.Group
	logger     *logrus.Logger

	hits   int
	misses int
}

func NewResultCache(maxEntries int, logger *logrus.Logger) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ResultCache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		logger:     logger,
	}
}

// GetOrCompute возвращает копию результата; параллельные запросы одного ключа
// считаются один раз
func (c *ResultCache) GetOrCompute(snapshotID, key string, compute func() (models.AggregationResult, error)) (models.AggregationResult, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e.result.Clone(), nil
	}
	c.misses++
	c.mu.Unlock()

	v, err, shared := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return e.result, nil
		}
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(snapshotID, key, result)
		return result, nil
	})
	if err != nil {
		return models.AggregationResult{}, err
	}
	if shared {
		c.logger.WithField("key", key).Debug("Shared in-flight aggregation")
	}
	return v.(models.AggregationResult).Clone(), nil
}

func (c *ResultCache) store(snapshotID, key string, result models.AggregationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{snapshotID: snapshotID, result: result.Clone()}

	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Invalidate удаляет все результаты снимка
func (c *ResultCache) Invalidate(snapshotID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	kept := c.order[:0]
	for _, key := range c.order {
		if c.entries[key].snapshotID == snapshotID {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	if removed > 0 {
		c.logger.WithFields(logrus.Fields{"snapshot": snapshotID, "removed": removed}).Info("Cache invalidated")
	}
	return removed
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats попадания и промахи
func (c *ResultCache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
