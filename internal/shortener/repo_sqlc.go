package shortener

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	db "github.com/sundayezeilo/shortlink/internal/db/sqlc"
	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
)

// querier is the subset of *db.Queries the repository uses.
type querier interface {
	CreateLink(ctx context.Context, arg db.CreateLinkParams) (db.Link, error)
	GetLinkByCode(ctx context.Context, code string) (db.Link, error)
	LinkCodeExists(ctx context.Context, code string) (bool, error)
	FindActiveLinkByTarget(ctx context.Context, arg db.FindActiveLinkByTargetParams) (db.Link, error)
	DeactivateLink(ctx context.Context, code string) (db.Link, error)
	RecordClick(ctx context.Context, arg db.RecordClickParams) (int64, error)
	ListRecentClicks(ctx context.Context, arg db.ListRecentClicksParams) ([]db.ClickEvent, error)
	ListLinksByOwner(ctx context.Context, arg db.ListLinksByOwnerParams) ([]db.Link, error)
	CountLinksByOwner(ctx context.Context, ownerID pgtype.Text) (int64, error)
	NextLinkSequence(ctx context.Context) (int64, error)
	DeactivateExpiredLinks(ctx context.Context, expiresAt pgtype.Timestamptz) ([]string, error)
	CountClickEventsBefore(ctx context.Context, clickedAt pgtype.Timestamptz) (int64, error)
	DeleteClickEventsBefore(ctx context.Context, arg db.DeleteClickEventsBeforeParams) (int64, error)
	DeleteDeadLinks(ctx context.Context, createdAt pgtype.Timestamptz) (int64, error)
}

type repo struct {
	q   querier
	ids idgen.Generator
}

// RepositoryConfig holds configuration for the repository
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Postgres-backed Repository.
func NewRepository(q querier, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}

	return &repo{
		q:   q,
		ids: idgen.OrDefault(config.IDGenerator),
	}
}

/***************
 * Conversions
 ***************/

func mustTime(ts pgtype.Timestamptz, field string) (time.Time, error) {
	if !ts.Valid {
		return time.Time{}, fmt.Errorf("%s unexpectedly NULL", field)
	}
	return ts.Time, nil
}

func timePtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func toNullTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return toTimestamptz(*t)
}

func toNullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func clampInt32(n int) int32 {
	switch {
	case n < 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(n)
	}
}

func toDomainLink(x db.Link) (Link, error) {
	createdAt, err := mustTime(x.CreatedAt, "created_at")
	if err != nil {
		return Link{}, err
	}
	updatedAt, err := mustTime(x.UpdatedAt, "updated_at")
	if err != nil {
		return Link{}, err
	}

	return Link{
		ID:             x.ID,
		Code:           x.Code,
		TargetURL:      x.TargetUrl,
		OwnerID:        x.OwnerID.String,
		ClickCount:     x.ClickCount,
		IsActive:       x.IsActive,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
		ExpiresAt:      timePtr(x.ExpiresAt),
		LastAccessedAt: timePtr(x.LastAccessedAt),
	}, nil
}

func toDomainClick(x db.ClickEvent) ClickEvent {
	return ClickEvent{
		ID:        x.ID,
		LinkID:    x.LinkID,
		ClickedAt: x.ClickedAt.Time,
		IPAddress: x.IpAddress.String,
		UserAgent: x.UserAgent.String,
		Referer:   x.Referer.String,
		Country:   x.Country.String,
		City:      x.City.String,
	}
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)

	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, err)

	default:
		return errx.E(op, errx.Unavailable, err)
	}
}

/***************
 * Links
 ***************/

func (r *repo) Create(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.repo.Create"

	if link.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return Link{}, errx.E(op, errx.Unavailable, err)
		}
		link.ID = id
	}

	row, err := r.q.CreateLink(ctx, db.CreateLinkParams{
		ID:        link.ID,
		Code:      link.Code,
		TargetUrl: link.TargetURL,
		OwnerID:   toNullText(link.OwnerID),
		ExpiresAt: toNullTimestamptz(link.ExpiresAt),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}

	return toDomainLink(row)
}

func (r *repo) GetByCode(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.GetByCode"

	row, err := r.q.GetLinkByCode(ctx, code)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) CodeExists(ctx context.Context, code string) (bool, error) {
	const op = "shortener.repo.CodeExists"

	exists, err := r.q.LinkCodeExists(ctx, code)
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return exists, nil
}

func (r *repo) FindActiveByTarget(ctx context.Context, targetURL, ownerID string, now time.Time) (Link, error) {
	const op = "shortener.repo.FindActiveByTarget"

	row, err := r.q.FindActiveLinkByTarget(ctx, db.FindActiveLinkByTargetParams{
		TargetUrl: targetURL,
		OwnerID:   toNullText(ownerID),
		Now:       toTimestamptz(now),
	})
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) Deactivate(ctx context.Context, code string) (Link, error) {
	const op = "shortener.repo.Deactivate"

	row, err := r.q.DeactivateLink(ctx, code)
	if err != nil {
		return Link{}, mapRepoError(op, err)
	}
	return toDomainLink(row)
}

func (r *repo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Link, error) {
	const op = "shortener.repo.ListByOwner"

	rows, err := r.q.ListLinksByOwner(ctx, db.ListLinksByOwnerParams{
		OwnerID: toNullText(ownerID),
		Limit:   clampInt32(limit),
		Offset:  clampInt32(offset),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	links := make([]Link, 0, len(rows))
	for _, row := range rows {
		link, err := toDomainLink(row)
		if err != nil {
			return nil, errx.E(op, errx.Internal, err)
		}
		links = append(links, link)
	}
	return links, nil
}

func (r *repo) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	const op = "shortener.repo.CountByOwner"

	n, err := r.q.CountLinksByOwner(ctx, toNullText(ownerID))
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}

func (r *repo) NextSequence(ctx context.Context) (uint64, error) {
	const op = "shortener.repo.NextSequence"

	n, err := r.q.NextLinkSequence(ctx)
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	if n < 0 {
		return 0, errx.E(op, errx.Internal, fmt.Errorf("negative sequence value %d", n))
	}
	return uint64(n), nil
}

/***************
 * Clicks
 ***************/

func (r *repo) RecordClick(ctx context.Context, event ClickEvent) (bool, error) {
	const op = "shortener.repo.RecordClick"

	if event.ID == uuid.Nil {
		id, err := r.ids.Generate()
		if err != nil {
			return false, errx.E(op, errx.Unavailable, err)
		}
		event.ID = id
	}

	n, err := r.q.RecordClick(ctx, db.RecordClickParams{
		ClickedAt: toTimestamptz(event.ClickedAt),
		Code:      event.Code,
		ID:        event.ID,
		IpAddress: toNullText(event.IPAddress),
		UserAgent: toNullText(event.UserAgent),
		Referer:   toNullText(event.Referer),
		Country:   toNullText(event.Country),
		City:      toNullText(event.City),
	})
	if err != nil {
		return false, mapRepoError(op, err)
	}
	return n > 0, nil
}

func (r *repo) RecentClicks(ctx context.Context, linkID uuid.UUID, limit int) ([]ClickEvent, error) {
	const op = "shortener.repo.RecentClicks"

	rows, err := r.q.ListRecentClicks(ctx, db.ListRecentClicksParams{
		LinkID: linkID,
		Limit:  clampInt32(limit),
	})
	if err != nil {
		return nil, mapRepoError(op, err)
	}

	clicks := make([]ClickEvent, 0, len(rows))
	for _, row := range rows {
		clicks = append(clicks, toDomainClick(row))
	}
	return clicks, nil
}

/***************
 * Maintenance
 ***************/

func (r *repo) DeactivateExpired(ctx context.Context, now time.Time) ([]string, error) {
	const op = "shortener.repo.DeactivateExpired"

	codes, err := r.q.DeactivateExpiredLinks(ctx, toTimestamptz(now))
	if err != nil {
		return nil, mapRepoError(op, err)
	}
	return codes, nil
}

func (r *repo) CountClicksBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "shortener.repo.CountClicksBefore"

	n, err := r.q.CountClickEventsBefore(ctx, toTimestamptz(cutoff))
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}

func (r *repo) DeleteClicksBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	const op = "shortener.repo.DeleteClicksBefore"

	n, err := r.q.DeleteClickEventsBefore(ctx, db.DeleteClickEventsBeforeParams{
		Cutoff:    toTimestamptz(cutoff),
		BatchSize: clampInt32(limit),
	})
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}

func (r *repo) DeleteDeadLinks(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "shortener.repo.DeleteDeadLinks"

	n, err := r.q.DeleteDeadLinks(ctx, toTimestamptz(cutoff))
	if err != nil {
		return 0, mapRepoError(op, err)
	}
	return n, nil
}
