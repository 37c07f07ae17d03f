package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"todobot/internal/service"
)

const (
	welcomeText = "Welcome to The Mighty To-Do List Bot!"

	helpText = "Here are the commands you can use with this bot:\n" +
		"/start - Start interacting with the bot.\n" +
		"/add - Add a new task. Usage: /add <description>; <category>; <deadline>\n" +
		"/list - List all your current tasks that are not yet completed.\n" +
		"/delete - Delete a task. Usage: /delete <task_id>\n" +
		"/complete - Mark a task as completed. Usage: /complete <task_id>\n" +
		"/help - Show this help message."

	addUsage      = "Usage: /add <description>; <category>; <deadline: YYYY-MM-DD HH:MM>"
	deleteUsage   = "Usage: /delete <task_id>"
	completeUsage = "Usage: /complete <task_id>"

	deleteNotFound   = "Task not found or does not belong to you."
	completeNotFound = "Task not found or already completed."

	unknownCommand = "Unknown command. Use /help to see available commands."
)

// NewAPI authorizes against the Telegram Bot API.
func NewAPI(token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("bot authorized")
	return api, nil
}

// Bot maps chat commands to ReminderService operations.
type Bot struct {
	api *tgbotapi.BotAPI
	svc *service.ReminderService
	log zerolog.Logger
}

func New(api *tgbotapi.BotAPI, svc *service.ReminderService, log zerolog.Logger) *Bot {
	return &Bot{api: api, svc: svc, log: log}
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
		msg := update.Message
		if msg == nil || msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
			continue
		}
		if !msg.IsCommand() {
			continue
		}

		b.log.Info().Int64("user_id", msg.From.ID).Str("command", msg.Command()).Msg("command received")
		reply := b.handleCommand(ctx, msg)
		if reply == "" {
			continue
		}
		if err := b.sendText(msg.Chat.ID, reply); err != nil {
			b.log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("send reply failed")
		}
	}

	return nil
}

// handleCommand returns the reply text for one command. Every service
// error is translated here; nothing propagates into the polling loop.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) string {
	owner := msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return welcomeText
	case "help":
		return helpText
	case "add":
		return b.addReply(ctx, owner, msg.Chat.ID, args)
	case "list":
		return b.listReply(ctx, owner)
	case "delete":
		return b.deleteReply(ctx, owner, args)
	case "complete":
		return b.completeReply(ctx, owner, args)
	default:
		return unknownCommand
	}
}

func (b *Bot) addReply(ctx context.Context, owner, chatID int64, args string) string {
	parts := strings.Split(args, ";")
	if args == "" || len(parts) != 3 {
		return addUsage
	}

	id, err := b.svc.AddTask(ctx, owner, chatID, parts[0], parts[1], parts[2])
	if err != nil {
		return b.replyForError("add", err, "")
	}
	return fmt.Sprintf("Task %d added successfully!", id)
}

func (b *Bot) listReply(ctx context.Context, owner int64) string {
	tasks, err := b.svc.ListTasks(ctx, owner)
	if err != nil {
		return b.replyForError("list", err, "")
	}
	return service.RenderTasks(tasks)
}

func (b *Bot) deleteReply(ctx context.Context, owner int64, args string) string {
	taskID, ok := parseTaskID(args)
	if !ok {
		return deleteUsage
	}

	if err := b.svc.DeleteTask(ctx, owner, taskID); err != nil {
		return b.replyForError("delete", err, deleteNotFound)
	}
	return "Task deleted successfully!"
}

func (b *Bot) completeReply(ctx context.Context, owner int64, args string) string {
	taskID, ok := parseTaskID(args)
	if !ok {
		return completeUsage
	}

	if err := b.svc.CompleteTask(ctx, owner, taskID); err != nil {
		return b.replyForError("complete", err, completeNotFound)
	}
	return "Task marked as completed successfully!"
}

// replyForError maps the service error taxonomy to a user reply.
// Validation messages are user-facing as-is; store and unexpected
// failures are logged and replaced with a generic per-operation text.
func (b *Bot) replyForError(op string, err error, notFoundText string) string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	var nferr *service.NotFoundError
	if errors.As(err, &nferr) && notFoundText != "" {
		return notFoundText
	}

	var serr *service.StoreError
	if errors.As(err, &serr) {
		b.log.Error().Err(serr).Str("op", op).Msg("database error")
		return fmt.Sprintf("Failed to %s task due to a database error.", op)
	}

	b.log.Error().Err(err).Str("op", op).Msg("unexpected error")
	return fmt.Sprintf("Failed to %s task due to an unexpected error.", op)
}

func parseTaskID(args string) (uint, bool) {
	value, err := strconv.ParseUint(args, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(value), true
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
