package catalog

import (
	"context"
	"log/slog"
	"time"
)

// Cache is the subset of the platform cache the catalog needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const defaultCacheTTL = 5 * time.Minute

// CachedStore fronts a Store with a read-through cache for single skill and
// lesson lookups. Cache failures fall back to the underlying store.
type CachedStore struct {
	Store
	cache Cache
	ttl   time.Duration
}

// NewCachedStore wraps next. A zero ttl uses five minutes.
func NewCachedStore(next Store, cache Cache, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{Store: next, cache: cache, ttl: ttl}
}

func skillKey(slug string) string  { return "catalog:skill:" + slug }
func lessonKey(slug string) string { return "catalog:lesson:" + slug }

func readThrough[T any](ctx context.Context, c *CachedStore, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := c.cache.GetJSON(ctx, key, &v)
	if err != nil {
		slog.Warn("catalog cache read failed", "key", key, "error", err)
	} else if hit {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	if err := c.cache.SetJSON(ctx, key, v, c.ttl); err != nil {
		slog.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return v, nil
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		slog.Warn("catalog cache invalidation failed", "keys", keys, "error", err)
	}
}

func (c *CachedStore) GetSkill(ctx context.Context, slug string) (Skill, error) {
	return readThrough(ctx, c, skillKey(slug), func() (Skill, error) {
		return c.Store.GetSkill(ctx, slug)
	})
}

func (c *CachedStore) GetLesson(ctx context.Context, slug string) (Lesson, error) {
	return readThrough(ctx, c, lessonKey(slug), func() (Lesson, error) {
		return c.Store.GetLesson(ctx, slug)
	})
}

func (c *CachedStore) UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error) {
	s, err := c.Store.UpdateSkill(ctx, slug, p)
	if err != nil {
		return Skill{}, err
	}
	c.invalidate(ctx, skillKey(slug))
	return s, nil
}

func (c *CachedStore) DeleteSkill(ctx context.Context, slug string) error {
	lessons, err := c.Store.ListLessonsForSkill(ctx, slug)
	if err != nil {
		return err
	}
	if err := c.Store.DeleteSkill(ctx, slug); err != nil {
		return err
	}
	keys := []string{skillKey(slug)}
	for _, l := range lessons {
		keys = append(keys, lessonKey(l.Slug))
	}
	c.invalidate(ctx, keys...)
	return nil
}

func (c *CachedStore) UpdateLesson(ctx context.Context, slug string, p LessonPatch) (Lesson, error) {
	l, err := c.Store.UpdateLesson(ctx, slug, p)
	if err != nil {
		return Lesson{}, err
	}
	c.invalidate(ctx, lessonKey(slug))
	return l, nil
}

func (c *CachedStore) DeleteLesson(ctx context.Context, slug string) error {
	if err := c.Store.DeleteLesson(ctx, slug); err != nil {
		return err
	}
	c.invalidate(ctx, lessonKey(slug))
	return nil
}

var _ Store = (*CachedStore)(nil)
