package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/repository"
)

// Message is a rendered notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers rendered messages. Email transport lives outside this
// service; LogMailer stands in for it.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	Log *slog.Logger
}

// Send implements Mailer.
func (m LogMailer) Send(_ context.Context, msg Message) error {
	log := m.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notification", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}

// Handler processes registration notice tasks.
type Handler struct {
	users  repository.UserDirectory
	events repository.EventStore
	mailer Mailer
	log    *slog.Logger
}

// NewHandler returns a Handler resolving recipients from users and events.
func NewHandler(users repository.UserDirectory, events repository.EventStore, mailer Mailer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{users: users, events: events, mailer: mailer, log: log}
}

// ProcessTask implements asynq.Handler. Malformed payloads and unknown
// users or events are not retried.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var n model.Notice
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("decode notice: %v: %w", err, asynq.SkipRetry)
	}

	user, err := h.users.GetByID(ctx, n.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.log.Warn("notice for unknown user dropped", "user_id", n.UserID, "registration_id", n.RegistrationID)
			return fmt.Errorf("user %s: %w", n.UserID, asynq.SkipRetry)
		}
		return fmt.Errorf("load user: %w", err)
	}
	event, err := h.events.GetByID(ctx, n.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("event %s: %w", n.EventID, asynq.SkipRetry)
		}
		return fmt.Errorf("load event: %w", err)
	}
	if user.Email == "" {
		h.log.Info("notice skipped, user has no email", "user_id", user.ID, "kind", n.Kind)
		return nil
	}

	msg := Render(n, *user, *event)
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s notice: %w", n.Kind, err)
	}
	return nil
}

// Render builds the message for a notice.
func Render(n model.Notice, user model.User, event model.Event) Message {
	name := user.Name
	if name == "" {
		name = "there"
	}
	msg := Message{To: user.Email}
	switch n.Kind {
	case model.NoticeRegistered:
		msg.Subject = "You're registered for " + event.Title
		msg.Body = fmt.Sprintf("Hi %s, your spot at %s is confirmed.", name, event.Title)
	case model.NoticeWaitlisted:
		msg.Subject = "You're on the waitlist for " + event.Title
		msg.Body = fmt.Sprintf("Hi %s, %s is full. You are number %s on the waitlist.", name, event.Title, position(n))
	case model.NoticePromoted:
		msg.Subject = "A spot opened up at " + event.Title
		msg.Body = fmt.Sprintf("Hi %s, you have been moved off the waitlist. Your spot at %s is confirmed.", name, event.Title)
	case model.NoticeDemoted:
		msg.Subject = "Your registration for " + event.Title + " changed"
		msg.Body = fmt.Sprintf("Hi %s, your registration for %s was moved to the waitlist at number %s.", name, event.Title, position(n))
	case model.NoticeCancelled:
		msg.Subject = "Registration cancelled: " + event.Title
		msg.Body = fmt.Sprintf("Hi %s, your registration for %s has been cancelled.", name, event.Title)
	default:
		msg.Subject = "Update on " + event.Title
		msg.Body = fmt.Sprintf("Hi %s, your registration for %s was updated.", name, event.Title)
	}
	return msg
}

func position(n model.Notice) string {
	if n.WaitlistPosition == nil {
		return "?"
	}
	return fmt.Sprint(*n.WaitlistPosition)
}
