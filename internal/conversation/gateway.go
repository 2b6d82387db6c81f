package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/ava/internal/assistant"
	"github.com/MikeSquared-Agency/ava/internal/hermes"
	"github.com/MikeSquared-Agency/ava/internal/poll"
)

// PendingReply is returned in place of an assistant reply when the run has not
// answered within the poll budget. It is a normal reply, not an error.
const PendingReply = "I'm still pulling that together. Please ask me again in a moment."

// Profile is what a user tells AVA before the first turn.
type Profile struct {
	Role                 string   `json:"role"`
	Location             string   `json:"location"`
	CareType             string   `json:"careType"`
	PaymentMethod        string   `json:"paymentMethod"`
	Concerns             string   `json:"concerns"`
	LifestylePreferences []string `json:"lifestylePreferences"`
}

// Publisher emits domain events. Nil disables publishing.
type Publisher interface {
	Publish(subject string, data any) error
}

// Gateway opens conversation threads and relays turns to the assistant.
type Gateway struct {
	api    assistant.API
	policy poll.Policy
	events Publisher
	logger *slog.Logger
	now    func() time.Time
}

func New(api assistant.API, policy poll.Policy, events Publisher, logger *slog.Logger) *Gateway {
	return &Gateway{
		api:    api,
		policy: policy,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// OpenThread creates an empty thread.
func (g *Gateway) OpenThread(ctx context.Context) (string, error) {
	id, err := g.api.CreateThread(ctx, "")
	if err != nil {
		return "", fmt.Errorf("open thread: %w", err)
	}
	g.logger.Info("thread opened", "thread_id", id)
	return id, nil
}

// StartConversation creates a thread seeded with an opening message built
// from the profile.
func (g *Gateway) StartConversation(ctx context.Context, p Profile) (string, error) {
	log := g.logger.With("role", p.Role, "location", p.Location)

	id, err := g.api.CreateThread(ctx, OpeningMessage(p))
	if err != nil {
		log.Error("failed to start conversation", "error", err)
		return "", fmt.Errorf("start conversation: %w", err)
	}

	log.Info("conversation started", "thread_id", id)
	g.publish(hermes.SubjectConversationStarted, hermes.ConversationStarted{
		EventID:   hermes.NewEventID(),
		ThreadID:  id,
		Role:      p.Role,
		Location:  p.Location,
		CareType:  p.CareType,
		Timestamp: g.now().UTC(),
	})
	return id, nil
}

// SendTurn appends text to the thread, starts an assistant run and polls for
// its reply. When the poll budget runs out it returns PendingReply with a nil
// error. The turn runs to completion even if ctx is cancelled.
func (g *Gateway) SendTurn(ctx context.Context, threadID, text string) (string, error) {
	ctx = context.WithoutCancel(ctx)
	log := g.logger.With("thread_id", threadID)

	if err := g.api.AddMessage(ctx, threadID, text); err != nil {
		log.Error("failed to post user message", "error", err)
		return "", fmt.Errorf("send turn: %w", err)
	}

	runID, err := g.api.StartRun(ctx, threadID)
	if err != nil {
		log.Error("failed to start run", "error", err)
		return "", fmt.Errorf("send turn: %w", err)
	}
	log = log.With("run_id", runID)

	res, err := poll.Until(ctx, g.policy, func(ctx context.Context, attempt int) (string, bool, error) {
		msgs, err := g.api.RunMessages(ctx, threadID, runID)
		if err != nil {
			return "", false, err
		}
		reply, ok := latestReply(msgs)
		if !ok {
			log.Debug("reply not ready", "attempt", attempt)
		}
		return reply, ok, nil
	}, PendingReply)
	if err != nil {
		log.Error("failed to poll run", "attempts", res.Attempts, "error", err)
		return "", fmt.Errorf("send turn: %w", err)
	}

	outcome := hermes.OutcomeReplied
	if res.Exhausted {
		outcome = hermes.OutcomeExhausted
		log.Warn("run did not reply within poll budget", "attempts", res.Attempts)
	} else {
		log.Info("turn answered", "attempts", res.Attempts)
	}

	g.publish(hermes.SubjectTurnRelayed, hermes.TurnRelayed{
		EventID:   hermes.NewEventID(),
		ThreadID:  threadID,
		RunID:     runID,
		Outcome:   outcome,
		Attempts:  res.Attempts,
		Timestamp: g.now().UTC(),
	})
	return res.Value, nil
}

// OpeningMessage renders the profile as the first message of a conversation.
func OpeningMessage(p Profile) string {
	prefs := strings.Join(p.LifestylePreferences, ", ")

	var sb strings.Builder
	sb.WriteString("I'm looking for senior care and here is my situation.\n")
	fmt.Fprintf(&sb, "Role: %s\n", orUnspecified(p.Role))
	fmt.Fprintf(&sb, "Location: %s\n", orUnspecified(p.Location))
	fmt.Fprintf(&sb, "Care type: %s\n", orUnspecified(p.CareType))
	fmt.Fprintf(&sb, "Payment method: %s\n", orUnspecified(p.PaymentMethod))
	fmt.Fprintf(&sb, "Concerns: %s\n", orUnspecified(p.Concerns))
	fmt.Fprintf(&sb, "Lifestyle preferences: %s", orUnspecified(prefs))
	return sb.String()
}

// latestReply picks the newest assistant message with text. msgs is newest first.
func latestReply(msgs []assistant.Message) (string, bool) {
	for _, m := range msgs {
		if m.Role == assistant.RoleAssistant && strings.TrimSpace(m.Text) != "" {
			return m.Text, true
		}
	}
	return "", false
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "not specified"
	}
	return s
}

func (g *Gateway) publish(subject string, evt any) {
	if g.events == nil {
		return
	}
	if err := g.events.Publish(subject, evt); err != nil {
		g.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
