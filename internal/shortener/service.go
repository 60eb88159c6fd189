package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sundayezeilo/shortlink/codegen"
	"github.com/sundayezeilo/shortlink/internal/errx"
)

const (
	DefaultCodeLength        = 7
	MinCodeLength            = 3
	MaxCodeLength            = 32
	MaxURLLength             = 2048
	DefaultAttemptsPerLength = 10
	DefaultMaxAttempts       = 30
	DefaultCacheTTL          = 60 * time.Minute
	DefaultRecentClicks      = 10
	DefaultPageSize          = 20
	MaxPageSize              = 100
)

// Strategy selects how candidate codes are produced.
type Strategy string

const (
	// StrategyRandom draws codes uniformly from the alphabet.
	StrategyRandom Strategy = "random"
	// StrategySequence encodes the next value of a store sequence, padded to the code length.
	StrategySequence Strategy = "sequence"
)

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	TargetURL  string
	CustomCode string     // Optional: if empty, a code will be generated
	ExpiresAt  *time.Time // Optional
	OwnerID    string     // Optional
}

// Service is the resolver: it owns code allocation on write and the
// cache-aside read path.
type Service interface {
	// Create returns the new link and true, or an existing live link for the
	// same target and owner and false.
	Create(ctx context.Context, req CreateLinkRequest) (Link, bool, error)
	// Lookup returns the target for a live code. A missing, inactive or
	// expired code yields found=false and a nil error.
	Lookup(ctx context.Context, code string) (target string, found bool, err error)
	Get(ctx context.Context, code string) (Link, error)
	Stats(ctx context.Context, code string, recent int) (LinkStats, error)
	Deactivate(ctx context.Context, code, ownerID string) (Link, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]Link, int64, error)
}

// service implements the Service interface.
type service struct {
	repo              Repository
	cache             Cache
	codes             codegen.Generator
	strategy          Strategy
	codeLength        int
	attemptsPerLength int
	maxAttempts       int
	cacheTTL          time.Duration
	logger            *slog.Logger
	now               func() time.Time
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Cache             Cache // nil disables caching
	CodeGenerator     codegen.Generator
	Strategy          Strategy
	CodeLength        int
	AttemptsPerLength int // attempts before the code grows by one glyph (default: 10)
	MaxAttempts       int // hard ceiling before failing with errx.Exhausted (default: 30)
	CacheTTL          time.Duration
	Logger            *slog.Logger
	Now               func() time.Time
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	s := &service{
		repo:              repo,
		cache:             config.Cache,
		codes:             config.CodeGenerator,
		strategy:          config.Strategy,
		codeLength:        config.CodeLength,
		attemptsPerLength: config.AttemptsPerLength,
		maxAttempts:       config.MaxAttempts,
		cacheTTL:          config.CacheTTL,
		logger:            config.Logger,
		now:               config.Now,
	}

	if s.cache == nil {
		s.cache = nopCache{}
	}
	if s.codes == nil {
		s.codes = codegen.New()
	}
	if s.strategy != StrategySequence {
		s.strategy = StrategyRandom
	}
	if s.codeLength < MinCodeLength || s.codeLength > MaxCodeLength {
		s.codeLength = DefaultCodeLength
	}
	if s.attemptsPerLength <= 0 {
		s.attemptsPerLength = DefaultAttemptsPerLength
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = DefaultCacheTTL
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

/***************
 * Write path
 ***************/

func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, bool, error) {
	const op = "shortener.service.Create"

	now := s.now()

	if err := validateURL(req.TargetURL); err != nil {
		return Link{}, false, errx.E(op, errx.Invalid, err)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return Link{}, false, errx.E(op, errx.Invalid, errors.New("expiry must be in the future"))
	}
	if req.CustomCode != "" {
		if err := validateCustomCode(req.CustomCode); err != nil {
			return Link{}, false, errx.E(op, errx.Invalid, err)
		}
	}

	// An existing live link for the same target and owner wins, even when
	// the request asked for a different code or expiry.
	existing, err := s.repo.FindActiveByTarget(ctx, req.TargetURL, req.OwnerID, now)
	switch {
	case err == nil:
		s.logger.DebugContext(ctx, "returning existing link", "code", existing.Code)
		return existing, false, nil
	case errx.KindOf(err) != errx.NotFound:
		return Link{}, false, errx.E(op, errx.KindOf(err), err)
	}

	link := Link{
		TargetURL: req.TargetURL,
		OwnerID:   req.OwnerID,
		ExpiresAt: req.ExpiresAt,
	}

	var created Link
	if req.CustomCode != "" {
		created, err = s.createWithCustomCode(ctx, link, req.CustomCode)
	} else {
		created, err = s.createWithGeneratedCode(ctx, link)
	}
	if err != nil {
		return Link{}, false, errx.E(op, errx.KindOf(err), err)
	}

	s.writeThrough(ctx, created)
	return created, true, nil
}

func (s *service) createWithCustomCode(ctx context.Context, link Link, code string) (Link, error) {
	const op = "shortener.service.createWithCustomCode"

	exists, err := s.repo.CodeExists(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	if exists {
		return Link{}, errx.E(op, errx.Conflict, fmt.Errorf("code %q is already taken", code))
	}

	link.Code = code
	created, err := s.repo.Create(ctx, link)
	if err != nil {
		// A Conflict here means a concurrent create won the race for this code.
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return created, nil
}

// createWithGeneratedCode probes candidates until one inserts cleanly. The
// code grows by one glyph every attemptsPerLength attempts.
func (s *service) createWithGeneratedCode(ctx context.Context, link Link) (Link, error) {
	const op = "shortener.service.createWithGeneratedCode"

	length := s.codeLength
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 && (attempt-1)%s.attemptsPerLength == 0 && length < MaxCodeLength {
			length++
			s.logger.WarnContext(ctx, "escalating code length", "length", length, "attempt", attempt)
		}

		code, err := s.candidate(ctx, length)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		if exists {
			continue
		}

		link.Code = code
		created, err := s.repo.Create(ctx, link)
		if err == nil {
			return created, nil
		}
		if errx.KindOf(err) != errx.Conflict {
			return Link{}, errx.E(op, errx.KindOf(err), err)
		}
		s.logger.DebugContext(ctx, "candidate lost insert race", "code", code, "attempt", attempt)
	}

	s.logger.ErrorContext(ctx, "code generation exhausted",
		"attempts", s.maxAttempts,
		"final_length", length,
		"strategy", string(s.strategy),
	)
	return Link{}, errx.E(op, errx.Exhausted,
		fmt.Errorf("no free code after %d attempts", s.maxAttempts))
}

func (s *service) candidate(ctx context.Context, length int) (string, error) {
	const op = "shortener.service.candidate"

	if s.strategy == StrategySequence {
		id, err := s.repo.NextSequence(ctx)
		if err != nil {
			return "", errx.E(op, errx.KindOf(err), err)
		}
		code, err := s.codes.GenerateFromID(id, length)
		if err != nil {
			return "", errx.E(op, errx.Internal, err)
		}
		return code, nil
	}

	code, err := s.codes.Generate(length)
	if err != nil {
		return "", errx.E(op, errx.Internal, err)
	}
	return code, nil
}

/***************
 * Read path
 ***************/

func (s *service) Lookup(ctx context.Context, code string) (string, bool, error) {
	const op = "shortener.service.Lookup"

	if code == "" {
		return "", false, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}
	if len(code) > MaxCodeLength {
		s.logMiss(ctx, code, "unknown")
		return "", false, nil
	}

	now := s.now()

	entry, hit, err := s.cache.Get(ctx, code)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed, reading store", "code", code, "error", err)
		hit = false
	}
	if hit {
		if !entry.Expired(now) {
			return entry.TargetURL, true, nil
		}
		s.evict(ctx, code)
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errx.KindOf(err) == errx.NotFound {
			s.logMiss(ctx, code, "unknown")
			return "", false, nil
		}
		return "", false, errx.E(op, errx.KindOf(err), err)
	}

	switch {
	case !link.IsActive:
		s.logMiss(ctx, code, "inactive")
		return "", false, nil
	case link.Expired(now):
		s.logMiss(ctx, code, "expired")
		return "", false, nil
	}

	s.writeThrough(ctx, link)
	return link.TargetURL, true, nil
}

func (s *service) Get(ctx context.Context, code string) (Link, error) {
	const op = "shortener.service.Get"

	if code == "" {
		return Link{}, errx.E(op, errx.Invalid, errors.New("code cannot be empty"))
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	return link, nil
}

func (s *service) Stats(ctx context.Context, code string, recent int) (LinkStats, error) {
	const op = "shortener.service.Stats"

	link, err := s.Get(ctx, code)
	if err != nil {
		return LinkStats{}, errx.E(op, errx.KindOf(err), err)
	}

	if recent <= 0 {
		recent = DefaultRecentClicks
	}
	clicks, err := s.repo.RecentClicks(ctx, link.ID, recent)
	if err != nil {
		return LinkStats{}, errx.E(op, errx.KindOf(err), err)
	}
	return LinkStats{Link: link, RecentClicks: clicks}, nil
}

/***************
 * Management
 ***************/

// Deactivate flips a link to inactive and evicts its cache entry. Only the
// owning caller may deactivate; anonymous links expire on their own.
func (s *service) Deactivate(ctx context.Context, code, ownerID string) (Link, error) {
	const op = "shortener.service.Deactivate"

	if ownerID == "" {
		return Link{}, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}

	link, err := s.Get(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	if link.OwnerID != ownerID {
		return Link{}, errx.E(op, errx.Forbidden, errors.New("link belongs to another owner"))
	}
	if !link.IsActive {
		return link, nil
	}

	updated, err := s.repo.Deactivate(ctx, code)
	if err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	s.evict(ctx, code)
	return updated, nil
}

func (s *service) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]Link, int64, error) {
	const op = "shortener.service.ListByOwner"

	if ownerID == "" {
		return nil, 0, errx.E(op, errx.Unauthorized, errors.New("owner is required"))
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	total, err := s.repo.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, 0, errx.E(op, errx.KindOf(err), err)
	}
	if total == 0 {
		return []Link{}, 0, nil
	}

	links, err := s.repo.ListByOwner(ctx, ownerID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, errx.E(op, errx.KindOf(err), err)
	}
	return links, total, nil
}

/***************
 * Cache helpers
 ***************/

// writeThrough caches the projection for at most cacheTTL and never past the
// link's own expiry. Failures are logged and ignored.
func (s *service) writeThrough(ctx context.Context, link Link) {
	ttl := s.cacheTTL
	if link.ExpiresAt != nil {
		until := link.ExpiresAt.Sub(s.now())
		if until <= 0 {
			return
		}
		ttl = min(ttl, until)
	}

	if err := s.cache.Set(ctx, link.Code, link.Projection(), ttl); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "code", link.Code, "error", err)
	}
}

func (s *service) evict(ctx context.Context, code string) {
	if err := s.cache.Evict(ctx, code); err != nil {
		s.logger.WarnContext(ctx, "cache evict failed", "code", code, "error", err)
	}
}

func (s *service) logMiss(ctx context.Context, code, reason string) {
	s.logger.DebugContext(ctx, "lookup miss", "code", code, "reason", reason)
}

/***************
 * Validation
 ***************/

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("url too long (max %d characters)", MaxURLLength)
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url format")
	}
	if !parsedURL.IsAbs() {
		return errors.New("url must include scheme (http or https)")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("url scheme must be http or https")
	}
	if parsedURL.Host == "" {
		return errors.New("url must include host")
	}
	return nil
}

func validateCustomCode(code string) error {
	if len(code) < MinCodeLength {
		return fmt.Errorf("code too short (minimum %d characters)", MinCodeLength)
	}
	if len(code) > MaxCodeLength {
		return fmt.Errorf("code too long (maximum %d characters)", MaxCodeLength)
	}

	if strings.HasPrefix(code, "-") || strings.HasPrefix(code, "_") ||
		strings.HasSuffix(code, "-") || strings.HasSuffix(code, "_") {
		return errors.New("code cannot start or end with dash or underscore")
	}

	for _, char := range code {
		if !isValidCodeChar(char) {
			return errors.New("code contains invalid characters (only alphanumeric, dash, and underscore allowed)")
		}
	}
	return nil
}

func isValidCodeChar(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	default:
		return false
	}
}
