package shortener

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the durable Store for links and click events. It is the only
// source of truth; Create must reject a duplicate code with errx.Conflict.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	GetByCode(ctx context.Context, code string) (Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	FindActiveByTarget(ctx context.Context, targetURL, ownerID string, now time.Time) (Link, error)
	Deactivate(ctx context.Context, code string) (Link, error)

	// RecordClick bumps the click counter, stamps last access and appends the
	// event in one statement. It returns false when the code no longer exists.
	RecordClick(ctx context.Context, event ClickEvent) (bool, error)
	RecentClicks(ctx context.Context, linkID uuid.UUID, limit int) ([]ClickEvent, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Link, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	NextSequence(ctx context.Context) (uint64, error)

	DeactivateExpired(ctx context.Context, now time.Time) ([]string, error)
	CountClicksBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteClicksBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	DeleteDeadLinks(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cache holds CacheEntry projections keyed by code. Entries may vanish at
// any time; callers must tolerate a miss.
type Cache interface {
	Get(ctx context.Context, code string) (CacheEntry, bool, error)
	Set(ctx context.Context, code string, entry CacheEntry, ttl time.Duration) error
	Evict(ctx context.Context, code string) error
}
