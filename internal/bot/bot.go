package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"backoffice/internal/dates"
	"backoffice/internal/model"
	"backoffice/internal/repository"
	"backoffice/internal/service"
)

const (
	cbDonePrefix = "done:"
	// Telegram rejects callback data longer than this.
	maxCallbackData = 64
	taskListLimit   = 20
)

const (
	iconRed     = "🔴"
	iconYellow  = "🟡"
	iconGreen   = "🟢"
	iconWhite   = "⚪"
	iconOverdue = "⚠️"
)

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the operator-facing Telegram front end: subscriptions, open
// tasks and reminder status.
type Bot struct {
	api         API
	subscribers *repository.SubscriberRepository
	tasks       *repository.TaskRepository
	reminders   *service.ReminderService
	clock       dates.Clock
	log         zerolog.Logger
	delivery    failsafe.Executor[tgbotapi.Message]
}

func New(api API, subscribers *repository.SubscriberRepository, tasks *repository.TaskRepository, reminders *service.ReminderService, clock dates.Clock, log zerolog.Logger) *Bot {
	if clock == nil {
		clock = dates.SystemClock
	}
	return &Bot{
		api:         api,
		subscribers: subscribers,
		tasks:       tasks,
		reminders:   reminders,
		clock:       clock,
		log:         log.With().Str("component", "bot").Logger(),
		delivery:    failsafe.With(alertRetryPolicy()),
	}
}

// alertRetryPolicy retries transient send failures. Client errors such as a
// user blocking the bot are final, except rate limiting.
func alertRetryPolicy() retrypolicy.RetryPolicy[tgbotapi.Message] {
	return retrypolicy.NewBuilder[tgbotapi.Message]().
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(2).
		HandleIf(func(_ tgbotapi.Message, err error) bool {
			if err == nil {
				return false
			}
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) {
				return apiErr.Code == 429 || apiErr.Code >= 500
			}
			return true
		}).
		Build()
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info().Msg("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error().Err(err).Msg("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error().Err(err).Msg("handle message")
			}
		}
	}

	return nil
}

// NotifyTasks sends an alert per task to every subscriber that is not muted.
// Delivery continues past individual failures.
func (b *Bot) NotifyTasks(ctx context.Context, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	subs, err := b.subscribers.ListActive(ctx)
	if err != nil {
		return err
	}
	now := b.clock.Now()
	var errs []error
	for _, sub := range subs {
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return err
			}
			msg := htmlMessage(sub.TelegramID, formatAlert(task, now))
			_, err := b.delivery.WithContext(ctx).Get(func() (tgbotapi.Message, error) {
				return b.api.Send(msg)
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("notify %d: %w", sub.TelegramID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Try /help.")
	}

	b.log.Debug().Int64("user", msg.From.ID).Str("command", msg.Command()).Str("args", msg.CommandArguments()).Msg("command")
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "stop":
		return b.handleStop(ctx, msg)
	case "help":
		return b.sendText(msg.Chat.ID, helpText)
	case "tasks":
		return b.handleTasks(ctx, msg.Chat.ID)
	case "done":
		return b.handleDone(ctx, msg)
	case "status":
		return b.handleStatus(ctx, msg.Chat.ID)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /tasks — open tasks, most urgent first\n" +
	"• /done &lt;id&gt; — mark a task done\n" +
	"• /status — reminder status for upcoming events and this week\n" +
	"• /stop — mute alerts (/start to resume)"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.subscribers.UpsertFromTelegram(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName); err != nil {
		return err
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Hi %s! You will get code-red bid alerts here.\n\n%s", escape(name), helpText))
}

func (b *Bot) handleStop(ctx context.Context, msg *tgbotapi.Message) error {
	if err := b.subscribers.SetMuted(ctx, msg.From.ID, true); err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, "🔕 Alerts muted. Send /start to turn them back on.")
}

func (b *Bot) handleTasks(ctx context.Context, chatID int64) error {
	tasks, err := b.tasks.ListOpen(ctx, taskListLimit)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not load tasks: %s", escape(err.Error())))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Nothing open. 🎉")
	}

	now := b.clock.Now()
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n\n")
	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		builder.WriteString(formatTask(task, now))
		if data := cbDonePrefix + task.ID; len(data) <= maxCallbackData {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+shortTitle(task.Title, 28), data),
			))
		}
	}

	msg := tgbotapi.NewMessage(chatID, strings.TrimSpace(builder.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleDone(ctx context.Context, msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: /done bid-codered:abc123")
	}
	return b.completeTask(ctx, msg.Chat.ID, id)
}

func (b *Bot) completeTask(ctx context.Context, chatID int64, id string) error {
	ok, err := b.tasks.MarkDone(ctx, id)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Error: %s", escape(err.Error())))
	}
	if !ok {
		return b.sendText(chatID, "No open task with that id.")
	}
	b.log.Info().Str("task", id).Msg("task marked done")
	return b.sendText(chatID, fmt.Sprintf("✅ <code>%s</code> done.", escape(id)))
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) error {
	snap, err := b.reminders.Snapshot(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Could not build status: %s", escape(err.Error())))
	}
	return b.sendText(chatID, formatStatus(snap))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("callback ack")
	}
	if id, ok := strings.CutPrefix(cb.Data, cbDonePrefix); ok && id != "" {
		return b.completeTask(ctx, cb.Message.Chat.ID, id)
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	_, err := b.api.Send(htmlMessage(chatID, text))
	return err
}

func htmlMessage(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return msg
}

func escape(s string) string {
	return html.EscapeString(s)
}
