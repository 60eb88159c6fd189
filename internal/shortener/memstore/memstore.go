// Package memstore is an in-memory shortener.Repository for tests. It keeps
// the same uniqueness, ownership and ordering rules as the Postgres store.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

var _ shortener.Repository = (*Store)(nil)

// Store keeps links by code and click events in insertion order.
// All methods are safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	links  map[string]*shortener.Link
	clicks []shortener.ClickEvent
	seq    uint64
	ids    idgen.Generator
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id generator.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Store) { s.ids = g }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		links: make(map[string]*shortener.Link),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ids = idgen.OrDefault(s.ids)
	return s
}

func (s *Store) Create(_ context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "memstore.Create"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.links[link.Code]; ok {
		return shortener.Link{}, errx.E(op, errx.Conflict, fmt.Errorf("code %q already exists", link.Code))
	}

	if link.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return shortener.Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	now := s.now().UTC()
	link.IsActive = true
	link.ClickCount = 0
	link.CreatedAt = now
	link.UpdatedAt = now
	link.LastAccessedAt = nil

	stored := link
	s.links[link.Code] = &stored
	return stored, nil
}

func (s *Store) GetByCode(_ context.Context, code string) (shortener.Link, error) {
	const op = "memstore.GetByCode"

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.links[code]
	if !ok {
		return shortener.Link{}, errx.E(op, errx.NotFound, errors.New("no link with that code"))
	}
	return *l, nil
}

func (s *Store) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.links[code]
	return ok, nil
}

func (s *Store) FindActiveByTarget(_ context.Context, targetURL, ownerID string, now time.Time) (shortener.Link, error) {
	const op = "memstore.FindActiveByTarget"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *shortener.Link
	for _, l := range s.links {
		if l.TargetURL != targetURL || l.OwnerID != ownerID || !l.Live(now) {
			continue
		}
		if found == nil || l.CreatedAt.Before(found.CreatedAt) {
			found = l
		}
	}
	if found == nil {
		return shortener.Link{}, errx.E(op, errx.NotFound, errors.New("no live link for target"))
	}
	return *found, nil
}

func (s *Store) Deactivate(_ context.Context, code string) (shortener.Link, error) {
	const op = "memstore.Deactivate"

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[code]
	if !ok {
		return shortener.Link{}, errx.E(op, errx.NotFound, errors.New("no link with that code"))
	}
	l.IsActive = false
	l.UpdatedAt = s.now().UTC()
	return *l, nil
}

func (s *Store) RecordClick(_ context.Context, event shortener.ClickEvent) (bool, error) {
	const op = "memstore.RecordClick"

	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.links[event.Code]
	if !ok {
		return false, nil
	}

	if event.ID == uuid.Nil {
		id, err := s.ids.Generate()
		if err != nil {
			return false, errx.E(op, errx.Unavailable, err)
		}
		event.ID = id
	}

	at := event.ClickedAt
	l.ClickCount++
	l.LastAccessedAt = &at

	event.LinkID = l.ID
	s.clicks = append(s.clicks, event)
	return true, nil
}

func (s *Store) RecentClicks(_ context.Context, linkID uuid.UUID, limit int) ([]shortener.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []shortener.ClickEvent
	for _, ev := range s.clicks {
		if ev.LinkID == linkID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ClickedAt.After(out[j].ClickedAt) })
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]shortener.Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := s.ownedLocked(ownerID)
	sort.SliceStable(owned, func(i, j int) bool { return owned[i].CreatedAt.After(owned[j].CreatedAt) })

	if offset >= len(owned) {
		return []shortener.Link{}, nil
	}
	owned = owned[max(offset, 0):]
	if limit >= 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *Store) CountByOwner(_ context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.ownedLocked(ownerID))), nil
}

func (s *Store) ownedLocked(ownerID string) []shortener.Link {
	var owned []shortener.Link
	if ownerID == "" {
		return owned
	}
	for _, l := range s.links {
		if l.OwnerID == ownerID {
			owned = append(owned, *l)
		}
	}
	return owned
}

func (s *Store) NextSequence(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	return s.seq, nil
}

func (s *Store) DeactivateExpired(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []string
	for code, l := range s.links {
		if l.IsActive && l.Expired(now) {
			l.IsActive = false
			l.UpdatedAt = s.now().UTC()
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *Store) CountClicksBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, ev := range s.clicks {
		if ev.ClickedAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// DeleteClicksBefore removes at most limit events older than cutoff, oldest first.
func (s *Store) DeleteClicksBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		return 0, nil
	}

	var old []int
	for i, ev := range s.clicks {
		if ev.ClickedAt.Before(cutoff) {
			old = append(old, i)
		}
	}
	sort.SliceStable(old, func(a, b int) bool {
		return s.clicks[old[a]].ClickedAt.Before(s.clicks[old[b]].ClickedAt)
	})
	if len(old) > limit {
		old = old[:limit]
	}

	drop := make(map[int]struct{}, len(old))
	for _, i := range old {
		drop[i] = struct{}{}
	}

	kept := s.clicks[:0]
	for i, ev := range s.clicks {
		if _, ok := drop[i]; !ok {
			kept = append(kept, ev)
		}
	}
	s.clicks = kept
	return int64(len(drop)), nil
}

// DeleteDeadLinks removes inactive, never-clicked links created before cutoff
// along with any click events that still reference them.
func (s *Store) DeleteDeadLinks(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gone := make(map[uuid.UUID]struct{})
	for code, l := range s.links {
		if !l.IsActive && l.ClickCount == 0 && l.CreatedAt.Before(cutoff) {
			gone[l.ID] = struct{}{}
			delete(s.links, code)
		}
	}
	if len(gone) == 0 {
		return 0, nil
	}

	kept := s.clicks[:0]
	for _, ev := range s.clicks {
		if _, ok := gone[ev.LinkID]; !ok {
			kept = append(kept, ev)
		}
	}
	s.clicks = kept
	return int64(len(gone)), nil
}

// Len returns the number of stored links.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}

// ClickCount returns the number of stored click events.
func (s *Store) ClickCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clicks)
}

// Put stores a link as given, bypassing Create's stamping. Tests use it to
// seed expired or backdated rows.
func (s *Store) Put(link shortener.Link) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	stored := link
	s.links[link.Code] = &stored
}

// PutClick appends a click event as given, bypassing counters.
func (s *Store) PutClick(ev shortener.ClickEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.links[ev.Code]; ok && ev.LinkID == uuid.Nil {
		ev.LinkID = l.ID
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	s.clicks = append(s.clicks, ev)
}
