package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/rules"
)

// Notifier delivers freshly created urgent tasks to people.
type Notifier interface {
	NotifyTasks(ctx context.Context, tasks []model.Task) error
}

// RuleReport summarises one rule run.
type RuleReport struct {
	CodeRed     int
	Submitted   int
	Opening     int
	Duplicates  int
	MissingKeys int
	Created     int64
	Notified    int
}

// BidService runs the bid rules against the ledger.
type BidService struct {
	bids     *repository.BidRepository
	tasks    *repository.TaskRepository
	engine   *rules.Engine
	notifier Notifier
	clock    dates.Clock
	log      zerolog.Logger
}

func NewBidService(bids *repository.BidRepository, tasks *repository.TaskRepository, engine *rules.Engine, notifier Notifier, clock dates.Clock, log zerolog.Logger) *BidService {
	if clock == nil {
		clock = dates.SystemClock
	}
	return &BidService{
		bids:     bids,
		tasks:    tasks,
		engine:   engine,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "bid-rules").Logger(),
	}
}

// RunRules evaluates active and submitted bids and stores new tasks. A
// failed notification does not fail the run; the tasks are already stored.
func (s *BidService) RunRules(ctx context.Context) (RuleReport, error) {
	active, err := s.bids.ListByStage(ctx, model.BidStageActive)
	if err != nil {
		return RuleReport{}, err
	}
	submitted, err := s.bids.ListByStage(ctx, model.BidStageSubmitted)
	if err != nil {
		return RuleReport{}, err
	}
	taskIDs, err := s.tasks.ListIDs(ctx)
	if err != nil {
		return RuleReport{}, err
	}
	confirmed, err := s.bids.ConfirmedIDs(ctx)
	if err != nil {
		return RuleReport{}, err
	}

	now := s.clock.Now()
	res := s.engine.Evaluate(rules.Input{
		ActiveBids:      active,
		SubmittedBids:   submitted,
		ExistingTaskIDs: rules.NewIDSet(taskIDs...),
		KnownSubmitted:  rules.NewIDSet(confirmed...),
		Now:             now,
	})
	rep := RuleReport{
		CodeRed:     res.CodeRed,
		Submitted:   res.Submitted,
		Opening:     res.Opening,
		Duplicates:  res.Duplicates,
		MissingKeys: res.MissingKeys,
	}

	// Urgent tasks are claimed one by one so only rows this run actually
	// wrote are announced.
	var urgent, rest []model.Task
	for _, t := range res.Tasks {
		if t.Priority == model.PriorityRed {
			urgent = append(urgent, t)
		} else {
			rest = append(rest, t)
		}
	}
	created, err := s.tasks.CreateMany(ctx, rest)
	if err != nil {
		return rep, err
	}
	rep.Created = created
	var claimed []model.Task
	for _, t := range urgent {
		ok, err := s.tasks.Claim(ctx, t)
		if err != nil {
			return rep, err
		}
		if ok {
			claimed = append(claimed, t)
			rep.Created++
		}
	}
	if err := s.bids.RecordConfirmations(ctx, res.Confirmed, now); err != nil {
		return rep, fmt.Errorf("after %d tasks created: %w", rep.Created, err)
	}

	urgent = claimed
	if len(urgent) > 0 && s.notifier != nil {
		if err := s.notifier.NotifyTasks(ctx, urgent); err != nil {
			s.log.Warn().Err(err).Int("tasks", len(urgent)).Msg("notify urgent tasks")
		} else {
			rep.Notified = len(urgent)
		}
	}

	s.log.Info().
		Int("code_red", rep.CodeRed).
		Int("submitted", rep.Submitted).
		Int("opening", rep.Opening).
		Int("skipped_no_key", rep.MissingKeys).
		Int64("created", rep.Created).
		Msg("bid rules evaluated")
	return rep, nil
}
