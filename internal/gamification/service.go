package gamification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aurawellness/gamification-service/shared-libs/events"
)

const (
	defaultMaxAttempts   = 3
	defaultNotifyTimeout = 2 * time.Second
)

// Notifier accepts outbound notifications. Implementations must not block for long;
// the returned error is logged and never fails the activity.
type Notifier interface {
	Notify(ctx context.Context, req events.NotificationRequested) error
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithNotifier routes badge notifications to n.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithUnreadCounter lets GetSummary report the unread notification count.
func WithUnreadCounter(c UnreadCounter) Option {
	return func(s *Service) { s.unread = c }
}

// WithLogger overrides the logger used for non-fatal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithDefaultLocation sets the zone used for profiles without a stored timezone.
func WithDefaultLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.defaultLoc = loc
		}
	}
}

// WithMaxAttempts bounds how often a conflicting update is retried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithNotifyTimeout caps the time spent handing a single notification to the notifier.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// Service orchestrates streak and badge updates.
type Service struct {
	repo          Repository
	clock         Clock
	notifier      Notifier
	unread        UnreadCounter
	logger        *slog.Logger
	defaultLoc    *time.Location
	maxAttempts   int
	notifyTimeout time.Duration

	locations sync.Map // timezone name -> *time.Location
}

// NewService constructs a Service instance with the provided collaborators.
func NewService(repo Repository, clock Clock, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("repo is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}

	s := &Service{
		repo:          repo,
		clock:         clock,
		logger:        slog.Default(),
		defaultLoc:    time.UTC,
		maxAttempts:   defaultMaxAttempts,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordActivity updates the user's streak and badges for one activity and queues a
// notification per newly earned badge.
func (s *Service) RecordActivity(ctx context.Context, userID string, activityType ActivityType) (Result, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Result{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !activityType.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidActivity, activityType)
	}

	now := s.clock.Now()
	var outcome Outcome
	_, err := s.apply(ctx, userID, func(current Profile) (Profile, error) {
		o, err := Evaluate(current, Activity{UserID: userID, Type: activityType, OccurredAt: now}, s.locationFor(current))
		if err != nil {
			return Profile{}, err
		}
		outcome = o
		return o.Profile, nil
	})
	if err != nil {
		return Result{}, err
	}

	recordActivity(activityType, outcome)
	s.notify(ctx, outcome.Notifications)

	badges := outcome.NewBadges
	if badges == nil {
		badges = []Badge{}
	}
	return Result{NewStreak: outcome.Profile.StreakDays, NewBadges: badges}, nil
}

// EnsureProfile creates the baseline profile when missing. created reports whether a write happened.
func (s *Service) EnsureProfile(ctx context.Context, userID string) (profile Profile, created bool, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, false, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	now := s.clock.Now().UTC()
	profile = Profile{
		UserID:    userID,
		Badges:    []Badge{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.repo.Create(ctx, profile)
	switch {
	case err == nil:
		return profile, true, nil
	case errors.Is(err, ErrConflict):
		existing, err := s.repo.Get(ctx, userID)
		return existing, false, err
	default:
		return Profile{}, false, err
	}
}

// GetProfile returns the stored profile.
func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return Profile{}, ErrProfileNotFound
	}
	return s.repo.Get(ctx, userID)
}

// GetSummary returns the profile, the catalog annotated with earned state, and the unread count.
func (s *Service) GetSummary(ctx context.Context, userID string) (*Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrProfileNotFound
	}

	var (
		profile Profile
		unread  int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		p, err := s.repo.Get(gctx, userID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})

	if s.unread != nil {
		g.Go(func() error {
			n, err := s.unread.CountUnread(gctx, userID)
			if err != nil {
				return fmt.Errorf("count unread notifications: %w", err)
			}
			unread = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Summary{
		Profile:             profile,
		Catalog:             annotateCatalog(profile),
		UnreadNotifications: unread,
	}, nil
}

// SetTimezone stores the IANA zone used for the user's day boundaries. An empty value clears it.
// A day already counted in the old zone stays counted in the new one.
func (s *Service) SetTimezone(ctx context.Context, userID, timezone string) (Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	timezone = strings.TrimSpace(timezone)
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, timezone)
		}
		s.locations.Store(timezone, loc)
	}

	now := s.clock.Now()
	return s.apply(ctx, userID, func(current Profile) (Profile, error) {
		next := current.Clone()
		next.Timezone = timezone
		next.LastActiveDate = carryActiveDay(current.LastActiveDate, now, s.locationFor(current), s.locationFor(next))
		next.UpdatedAt = now.UTC()
		next.Version = current.Version + 1
		return next, nil
	})
}

// apply retries ErrConflict with fresh state up to maxAttempts.
func (s *Service) apply(ctx context.Context, userID string, fn MutateFunc) (Profile, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		profile, err := s.repo.Apply(ctx, userID, fn)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Profile{}, err
		}
		lastErr = err
		conflictCounter.Inc()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrPersistence, ctxErr)
		}
	}
	return Profile{}, lastErr
}

func (s *Service) notify(ctx context.Context, reqs []events.NotificationRequested) {
	if s.notifier == nil || len(reqs) == 0 {
		return
	}
	// The profile write is committed; a cancelled request must not drop its notifications.
	base := context.WithoutCancel(ctx)
	for _, req := range reqs {
		nctx, cancel := context.WithTimeout(base, s.notifyTimeout)
		err := s.notifier.Notify(nctx, req)
		cancel()
		if err != nil {
			notifyFailureCounter.Inc()
			s.logger.Warn("badge notification not queued",
				slog.String("userId", req.UserID),
				slog.String("message", req.Message),
				slog.Any("error", err),
			)
		}
	}
}

func (s *Service) locationFor(p Profile) *time.Location {
	if p.Timezone == "" {
		return s.defaultLoc
	}
	if cached, ok := s.locations.Load(p.Timezone); ok {
		return cached.(*time.Location)
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		s.logger.Warn("invalid stored timezone, using default",
			slog.String("userId", p.UserID),
			slog.String("timezone", p.Timezone),
		)
		return s.defaultLoc
	}
	s.locations.Store(p.Timezone, loc)
	return loc
}

func annotateCatalog(p Profile) []CatalogEntry {
	earned := make(map[BadgeID]time.Time, len(p.Badges))
	for _, b := range p.Badges {
		earned[b.ID] = b.EarnedAt
	}

	defs := Catalog()
	out := make([]CatalogEntry, 0, len(defs))
	for _, def := range defs {
		entry := CatalogEntry{BadgeDefinition: def}
		if at, ok := earned[def.ID]; ok {
			entry.Earned = true
			entry.EarnedAt = &at
		}
		out = append(out, entry)
	}
	return out
}
