package assistant

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/ava/internal/upstream"
)

// RoleAssistant is the role of messages written by an assistant run.
const RoleAssistant = "assistant"

// pageSize bounds how many messages one run listing fetches.
const pageSize = 20

// Message is a thread message reduced to what the gateway reads.
type Message struct {
	ID   string
	Role string
	Text string
}

// API is the thread/run protocol of the completion provider.
type API interface {
	CreateThread(ctx context.Context, seed string) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID string) (string, error)
	RunMessages(ctx context.Context, threadID, runID string) ([]Message, error)
}

// Client talks to the OpenAI Assistants API.
type Client struct {
	client      *openai.Client
	assistantID string
}

// NewClient creates a client for assistantID. An empty baseURL uses the
// public OpenAI endpoint.
func NewClient(apiKey, baseURL, assistantID string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	return &Client{
		client:      openai.NewClientWithConfig(cfg),
		assistantID: assistantID,
	}
}

// CreateThread opens a thread. A non-empty seed becomes its first user message.
func (c *Client) CreateThread(ctx context.Context, seed string) (string, error) {
	var req openai.ThreadRequest
	if seed != "" {
		req.Messages = []openai.ThreadMessage{
			{Role: openai.ThreadMessageRoleUser, Content: seed},
		}
	}

	thread, err := c.client.CreateThread(ctx, req)
	if err != nil {
		return "", upstream.Unavailable("create thread", err)
	}
	return thread.ID, nil
}

// AddMessage appends a user message to the thread.
func (c *Client) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: text,
	})
	if err != nil {
		return upstream.Unavailable("add message", err)
	}
	return nil
}

// StartRun asks the assistant to answer the thread and returns the run ID.
func (c *Client) StartRun(ctx context.Context, threadID string) (string, error) {
	run, err := c.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: c.assistantID,
	})
	if err != nil {
		return "", upstream.Unavailable("create run", err)
	}
	return run.ID, nil
}

// RunMessages lists the messages the run has produced so far, newest first.
func (c *Client) RunMessages(ctx context.Context, threadID, runID string) ([]Message, error) {
	limit := pageSize
	order := "desc"

	var run *string
	if runID != "" {
		run = &runID
	}

	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, run)
	if err != nil {
		return nil, upstream.Unavailable("list messages", err)
	}

	out := make([]Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		out = append(out, Message{ID: m.ID, Role: m.Role, Text: messageText(m)})
	}
	return out, nil
}

// messageText joins the text parts of a message.
func messageText(m openai.Message) string {
	var parts []string
	for _, c := range m.Content {
		if c.Text != nil && c.Text.Value != "" {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}
