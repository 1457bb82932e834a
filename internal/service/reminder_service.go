package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"backoffice/internal/cache"
	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/reminder"
	"backoffice/internal/repository"
)

const liveContentKey = "content:live"

// SeedReport summarises one seeding run.
type SeedReport struct {
	Planned int
	Created int64
}

// ReminderService seeds the reminder ledger and builds status snapshots.
type ReminderService struct {
	events   *repository.EventRepository
	ledger   *repository.ReminderRepository
	content  *repository.ContentRepository
	seeder   *reminder.Seeder
	computer *reminder.Computer
	cache    cache.Loader
	ttl      time.Duration
	clock    dates.Clock
	log      zerolog.Logger
}

func NewReminderService(
	events *repository.EventRepository,
	ledger *repository.ReminderRepository,
	content *repository.ContentRepository,
	settings reminder.Settings,
	c cache.Loader,
	ttl time.Duration,
	clock dates.Clock,
	log zerolog.Logger,
) *ReminderService {
	if clock == nil {
		clock = dates.SystemClock
	}
	return &ReminderService{
		events:   events,
		ledger:   ledger,
		content:  content,
		seeder:   reminder.NewSeeder(settings),
		computer: reminder.NewComputer(settings),
		cache:    c,
		ttl:      ttl,
		clock:    clock,
		log:      log.With().Str("component", "reminders").Logger(),
	}
}

// Seed creates the ledger rows missing for upcoming events.
func (s *ReminderService) Seed(ctx context.Context) (SeedReport, error) {
	events, err := s.events.ListAll(ctx)
	if err != nil {
		return SeedReport{}, err
	}
	existing, err := s.ledger.ListAll(ctx)
	if err != nil {
		return SeedReport{}, err
	}

	planned := s.seeder.Plan(events, existing, s.clock.Now())
	rep := SeedReport{Planned: len(planned)}
	if rep.Created, err = s.ledger.AppendMissing(ctx, planned); err != nil {
		return rep, err
	}
	if rep.Planned > 0 {
		s.log.Info().Int("planned", rep.Planned).Int64("created", rep.Created).Msg("reminders seeded")
	}
	return rep, nil
}

// Snapshot derives the current reminder status. Content rows are memoised
// for the configured TTL when a cache is set.
func (s *ReminderService) Snapshot(ctx context.Context) (reminder.Snapshot, error) {
	events, err := s.events.ListAll(ctx)
	if err != nil {
		return reminder.Snapshot{}, err
	}
	ledger, err := s.ledger.ListAll(ctx)
	if err != nil {
		return reminder.Snapshot{}, err
	}
	content, err := s.liveContent(ctx)
	if err != nil {
		return reminder.Snapshot{}, err
	}
	return s.computer.Compute(events, ledger, content, s.clock.Now()), nil
}

// InvalidateContent drops memoised content rows, e.g. after a publish run.
func (s *ReminderService) InvalidateContent() {
	if s.cache != nil {
		s.cache.Invalidate(liveContentKey)
	}
}

func (s *ReminderService) liveContent(ctx context.Context) ([]model.ContentPost, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.content.ListLive(ctx)
	}
	v, err := s.cache.GetOrLoad(liveContentKey, s.ttl, func() (any, error) {
		return s.content.ListLive(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.ContentPost), nil
}
