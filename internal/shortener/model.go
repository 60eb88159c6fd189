package shortener

import (
	"time"

	"github.com/google/uuid"
)

// Link is the authoritative record mapping a short code to its target.
// Codes are unique across active and inactive links and are never reused.
type Link struct {
	ID             uuid.UUID
	Code           string
	TargetURL      string
	OwnerID        string // empty means anonymous
	ClickCount     int64
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
	LastAccessedAt *time.Time
}

// Expired reports whether the link has an expiry at or before now.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Live reports whether the link may be served at now.
func (l Link) Live(now time.Time) bool {
	return l.IsActive && !l.Expired(now)
}

// Projection returns the cacheable view of the link.
func (l Link) Projection() CacheEntry {
	return CacheEntry{TargetURL: l.TargetURL, ExpiresAt: l.ExpiresAt}
}

// ClickEvent is one recorded redirect. Immutable once written.
type ClickEvent struct {
	ID        uuid.UUID
	LinkID    uuid.UUID
	Code      string
	ClickedAt time.Time
	IPAddress string
	UserAgent string
	Referer   string
	Country   string
	City      string
}

// CacheEntry is the derived projection held by a Cache. It is never more
// current than the Store.
type CacheEntry struct {
	TargetURL string     `json:"target_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the embedded expiry is at or before now.
func (e CacheEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// LinkStats is a link together with its most recent click events.
type LinkStats struct {
	Link         Link
	RecentClicks []ClickEvent
}

// ClickInput is what the redirect adapter knows about a click.
type ClickInput struct {
	Code      string
	IPAddress string
	UserAgent string
	Referer   string
}
