package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backoffice/internal/cache"
	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/reminder"
	"backoffice/internal/repository"
	"backoffice/internal/service"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests int
	failFor  int64
	failErr  error
	attempts map[int64]int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, fmt.Errorf("unexpected %T", c)
	}
	if f.attempts == nil {
		f.attempts = make(map[int64]int)
	}
	f.attempts[msg.ChatID]++
	if f.failFor != 0 && msg.ChatID == f.failFor {
		if f.failErr != nil {
			return tgbotapi.Message{}, f.failErr
		}
		return tgbotapi.Message{}, errors.New("connection reset")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	api := &fakeAPI{}
	clock := dates.Fixed(now)
	reminders := service.NewReminderService(
		repository.NewEventRepository(db),
		repository.NewReminderRepository(db),
		repository.NewContentRepository(db),
		reminder.DefaultSettings(),
		cache.NewMemory(),
		time.Minute,
		clock,
		zerolog.Nop(),
	)
	b := New(api, repository.NewSubscriberRepository(db), repository.NewTaskRepository(db), reminders, clock, zerolog.Nop())
	return b, api, db
}

func command(userID int64, text string) *tgbotapi.Message {
	cmd := strings.Fields(text)[0]
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Sam"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: len(cmd)},
		},
	}
}

func TestStartStopAndNotify(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)

	require.NoError(t, b.handleMessage(ctx, command(1, "/start")))
	require.Contains(t, api.last(t).Text, "Hi Sam")
	require.NoError(t, b.handleMessage(ctx, command(2, "/start")))
	require.NoError(t, b.handleMessage(ctx, command(2, "/stop")))

	before := len(api.sent)
	task := model.Task{
		ID:       "bid-codered:abc123",
		Title:    "City of Springfield",
		Priority: model.PriorityRed,
		DueAt:    "2025-01-10T23:59:00.000Z",
		RawText:  "CODE RED bid: City of Springfield",
		Notes:    "Agency: City of Springfield",
	}
	require.NoError(t, b.NotifyTasks(ctx, []model.Task{task}))
	require.Len(t, api.sent, before+1)
	alert := api.last(t)
	require.Equal(t, int64(1), alert.ChatID)
	require.Contains(t, alert.Text, "CODE RED bid")
	require.Contains(t, alert.Text, "in 9 days")
	require.Contains(t, alert.Text, "/done bid-codered:abc123")
}

func TestNotifyKeepsGoingPastFailures(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)
	require.NoError(t, b.handleMessage(ctx, command(1, "/start")))
	require.NoError(t, b.handleMessage(ctx, command(2, "/start")))
	api.failFor = 1

	before := len(api.sent)
	err := b.NotifyTasks(ctx, []model.Task{{ID: "bid-codered:x", Priority: model.PriorityRed, RawText: "x"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "notify 1")
	require.Len(t, api.sent, before+1)
	require.Equal(t, int64(2), api.last(t).ChatID)
	require.Equal(t, 4, api.attempts[1], "start plus one try and two retries")
}

func TestNotifyDoesNotRetryBlockedUser(t *testing.T) {
	ctx := context.Background()
	b, api, _ := newTestBot(t)
	require.NoError(t, b.handleMessage(ctx, command(1, "/start")))
	api.failFor = 1
	api.failErr = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}

	err := b.NotifyTasks(ctx, []model.Task{{ID: "bid-codered:x", Priority: model.PriorityRed, RawText: "x"}})
	require.Error(t, err)
	require.Equal(t, 2, api.attempts[1], "start plus a single alert attempt")
}

func TestTasksAndDone(t *testing.T) {
	ctx := context.Background()
	b, api, db := newTestBot(t)

	require.NoError(t, b.handleMessage(ctx, command(1, "/tasks")))
	require.Contains(t, api.last(t).Text, "Nothing open")

	_, err := repository.NewTaskRepository(db).CreateMany(ctx, []model.Task{
		{ID: "bid-opening:b", Title: "Opening soon", Priority: model.PriorityYellow, DueAt: "2025-01-03T23:59:00.000Z"},
		{ID: "bid-codered:a", Title: "Springfield", Priority: model.PriorityRed, DueAt: "2024-12-30T23:59:00.000Z"},
	})
	require.NoError(t, err)

	require.NoError(t, b.handleMessage(ctx, command(1, "/tasks")))
	list := api.last(t)
	require.Less(t, strings.Index(list.Text, "Springfield"), strings.Index(list.Text, "Opening soon"))
	require.Contains(t, list.Text, "overdue")
	markup, ok := list.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 2)

	require.NoError(t, b.handleMessage(ctx, command(1, "/done bid-codered:a")))
	require.Contains(t, api.last(t).Text, "done")
	require.NoError(t, b.handleMessage(ctx, command(1, "/done bid-codered:a")))
	require.Contains(t, api.last(t).Text, "No open task")

	require.NoError(t, b.handleCallback(ctx, &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 1},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}},
		Data:    "done:bid-opening:b",
	}))
	require.Equal(t, 1, api.requests)
	open, err := repository.NewTaskRepository(db).ListOpen(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestStatusCommand(t *testing.T) {
	ctx := context.Background()
	b, api, db := newTestBot(t)
	require.NoError(t, db.Create(&model.Event{ID: "w-42", Kind: "webinar", Title: "Grant writing 101", Date: "2025-01-15", Time: "2:00 PM"}).Error)

	require.NoError(t, b.handleMessage(ctx, command(1, "/status")))
	text := api.last(t).Text
	require.Contains(t, text, "Grant writing 101")
	require.Contains(t, text, "This week")
	require.Contains(t, text, "wednesday")
}

func TestFormatStatusSummary(t *testing.T) {
	text := formatStatus(reminder.Snapshot{
		Summary: reminder.Summary{
			Done:    1,
			Pending: 2,
			Overdue: 3,
			OverdueByChannel: map[reminder.Channel]int{
				reminder.ChannelWeekly: 1,
				reminder.ChannelEmail:  2,
			},
		},
	})
	require.Contains(t, text, "1 done, 2 pending, 3 overdue")
	require.Contains(t, text, "email 2, weekly 1")
}

func TestShortTitle(t *testing.T) {
	require.Equal(t, "short", shortTitle("  short ", 10))
	require.Equal(t, "Сприн…", shortTitle("Спрингфилд", 6))
}

func TestDaysLeft(t *testing.T) {
	require.Equal(t, "today", daysLeft(0))
	require.Equal(t, "tomorrow", daysLeft(1))
	require.Equal(t, "in 5 days", daysLeft(5))
}
