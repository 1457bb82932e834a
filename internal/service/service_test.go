package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backoffice/internal/cache"
	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/reminder"
	"backoffice/internal/repository"
	"backoffice/internal/rules"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][]model.Task
	err   error
}

func (f *fakeNotifier) NotifyTasks(_ context.Context, tasks []model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tasks)
	return f.err
}

func seedBids(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&[]model.BidRecord{
		{
			SourceEmailID:  "abc123",
			Stage:          model.BidStageActive,
			Agency:         "City of Springfield",
			Recommendation: "Respond",
			Score:          "15.2",
			Relevance:      "High",
			DueDate:        "2025-01-10",
			DateAdded:      "2024-12-27",
			Status:         "New",
		},
		{
			SourceEmailID:  "quiet",
			Stage:          model.BidStageActive,
			Agency:         "Somewhere",
			Recommendation: "Skip",
			Score:          "3",
			DueDate:        "2025-03-01",
		},
		{SourceEmailID: "", Stage: model.BidStageActive, Agency: "No key"},
		{SourceEmailID: "sub-1", Stage: model.BidStageSubmitted, Agency: "County Schools", SubmittedDate: "2024-12-30"},
	}).Error)
}

func newBidService(db *gorm.DB, n Notifier) *BidService {
	return NewBidService(
		repository.NewBidRepository(db),
		repository.NewTaskRepository(db),
		rules.NewEngine(rules.DefaultOptions()),
		n,
		dates.Fixed(now),
		zerolog.Nop(),
	)
}

func TestBidServiceRunRulesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBids(t, db)
	n := &fakeNotifier{}
	svc := newBidService(db, n)

	rep, err := svc.RunRules(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.CodeRed)
	require.Equal(t, 1, rep.Submitted)
	require.Equal(t, 1, rep.MissingKeys)
	require.Equal(t, int64(2), rep.Created)
	require.Equal(t, 1, rep.Notified)
	require.Len(t, n.calls, 1)
	require.Equal(t, "bid-codered:abc123", n.calls[0][0].ID)

	ids, err := repository.NewBidRepository(db).ConfirmedIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sub-1"}, ids)

	rep, err = svc.RunRules(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), rep.Created)
	require.Equal(t, 0, rep.CodeRed)
	require.Len(t, n.calls, 1)

	taskIDs, err := repository.NewTaskRepository(db).ListIDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"bid-codered:abc123", "bid-submitted:sub-1"}, taskIDs)
}

func TestBidServiceConfirmationSurvivesTaskDeletion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBids(t, db)
	svc := newBidService(db, nil)

	_, err := svc.RunRules(ctx)
	require.NoError(t, err)
	require.NoError(t, db.Where("id = ?", "bid-submitted:sub-1").Delete(&model.Task{}).Error)

	rep, err := svc.RunRules(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Submitted)
	require.Equal(t, int64(0), rep.Created)
}

func TestBidServiceNotifyFailureKeepsTasks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBids(t, db)
	svc := newBidService(db, &fakeNotifier{err: errors.New("telegram down")})

	rep, err := svc.RunRules(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), rep.Created)
	require.Equal(t, 0, rep.Notified)
}

func TestBidServiceDoesNotAnnounceTasksAnotherRunWrote(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedBids(t, db)

	// Another run inserts the code-red task right after this run read the
	// existing task IDs.
	var raced bool
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("test:concurrent_insert", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "tasks" {
			return
		}
		raced = true
		require.NoError(t, db.Exec(
			"INSERT INTO tasks (id, title, priority, done) VALUES (?, ?, ?, ?)",
			"bid-codered:abc123", "other run", string(model.PriorityRed), false,
		).Error)
	}))

	n := &fakeNotifier{}
	rep, err := newBidService(db, n).RunRules(ctx)
	require.NoError(t, err)
	require.True(t, raced)
	require.Equal(t, 1, rep.CodeRed)
	require.Equal(t, int64(1), rep.Created)
	require.Equal(t, 0, rep.Notified)
	require.Empty(t, n.calls)
}

func newReminderService(db *gorm.DB, c cache.Loader) *ReminderService {
	return NewReminderService(
		repository.NewEventRepository(db),
		repository.NewReminderRepository(db),
		repository.NewContentRepository(db),
		reminder.DefaultSettings(),
		c,
		time.Hour,
		dates.Fixed(now),
		zerolog.Nop(),
	)
}

func TestReminderServiceSeed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(&[]model.Event{
		{ID: "w-42", Kind: "webinar", Title: "Grant writing 101", Date: "2025-01-15", Time: "2:00 PM"},
		{ID: "w-old", Kind: "webinar", Title: "Last year", Date: "2024-12-01", Time: "10:00"},
		{ID: "w-off", Kind: "webinar", Title: "Cancelled", Date: "2025-01-20", Time: "10:00", Status: "Cancelled"},
	}).Error)
	svc := newReminderService(db, nil)

	rep, err := svc.Seed(ctx)
	require.NoError(t, err)
	require.Equal(t, 6, rep.Planned)
	require.Equal(t, int64(6), rep.Created)

	rep, err = svc.Seed(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Planned)
	require.Equal(t, int64(0), rep.Created)

	entries, err := repository.NewReminderRepository(db).ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 6)
	for _, e := range entries {
		require.Equal(t, "w-42", e.TargetID)
	}
}

func TestReminderServiceSnapshotCachesContent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(&model.Event{ID: "w-42", Kind: "webinar", Title: "Grant writing 101", Date: "2025-01-15", Time: "2:00 PM"}).Error)
	svc := newReminderService(db, cache.NewMemory())

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Events, 1)
	social := func(s reminder.Snapshot) reminder.Status {
		for _, st := range s.Events[0].Slots {
			if st.Channel == reminder.ChannelSocial && st.Tier == "1week" {
				return st.Status
			}
		}
		return ""
	}
	require.Equal(t, reminder.StatusPending, social(snap))

	require.NoError(t, db.Create(&model.ContentPost{
		Title:    "One week to go",
		Purpose:  "webinar-1week",
		TargetID: "w-42",
		Status:   model.ContentScheduled,
	}).Error)

	snap, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, reminder.StatusPending, social(snap), "content rows are served from cache")

	svc.InvalidateContent()
	snap, err = svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, reminder.StatusPosted, social(snap))
}

func TestSchedulerRunAppliesTimeoutAndLogger(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop(), 50*time.Millisecond)

	var sawDeadline bool
	err := s.Run("probe", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		require.NotNil(t, zerolog.Ctx(ctx))
		return nil
	})
	require.NoError(t, err)
	require.True(t, sawDeadline)

	err = s.Run("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewSchedulerService(time.UTC, zerolog.Nop(), time.Second)
	_, err := s.Schedule("bad", "every now and then", func(context.Context) error { return nil })
	require.Error(t, err)

	_, err = s.Schedule("ok", "*/5 * * * *", func(context.Context) error { return nil })
	require.NoError(t, err)
}
