package hermes

import (
	"time"

	"github.com/google/uuid"
)

// NATS subjects for AVA domain events.
const (
	SubjectConversationStarted = "ava.conversation.started"
	SubjectTurnRelayed         = "ava.turn.relayed"
	SubjectFacilitiesSearched  = "ava.facilities.searched"
)

// Turn outcomes carried by TurnRelayed.
const (
	OutcomeReplied   = "replied"
	OutcomeExhausted = "exhausted"
)

// ConversationStarted is published when a thread is opened from a user profile.
type ConversationStarted struct {
	EventID   string    `json:"event_id"`
	ThreadID  string    `json:"thread_id"`
	Role      string    `json:"role,omitempty"`
	Location  string    `json:"location,omitempty"`
	CareType  string    `json:"care_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnRelayed is published after a user turn has been answered or the poll
// budget ran out.
type TurnRelayed struct {
	EventID   string    `json:"event_id"`
	ThreadID  string    `json:"thread_id"`
	RunID     string    `json:"run_id"`
	Outcome   string    `json:"outcome"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// FacilitiesSearched is published after a facility lookup.
type FacilitiesSearched struct {
	EventID   string    `json:"event_id"`
	Location  string    `json:"location"`
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventID returns a fresh event identifier.
func NewEventID() string {
	return uuid.NewString()
}
