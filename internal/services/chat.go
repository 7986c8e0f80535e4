package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"astrohub/internal/completion"
	"astrohub/internal/models"
	"astrohub/internal/upstream"
)

const (
	chatPersona = "You are a helpful space and astronomy assistant. Provide concise, accurate information about space, planets, stars, NASA missions, and astronomical phenomena. When appropriate, suggest stargazing tips or interesting facts about the cosmos."

	chatMaxTokens   = 800
	chatTemperature = 0.7
)

// ErrCompletionUnavailable means every model failed; chat has no fallback data
var ErrCompletionUnavailable = errors.New("completion service unavailable")

// ChatService answers free-form astronomy questions
type ChatService struct {
	caller      TextCompleter
	enabled     bool
	models      []string
	maxAttempts int
	timeout     time.Duration
	markdown    goldmark.Markdown
	metrics     *Metrics
}

// NewChatService creates the chat service. enabled is false when the
// completion credential is missing.
func NewChatService(caller TextCompleter, enabled bool, models []string, maxAttempts int, timeout time.Duration) *ChatService {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatService{
		caller:      caller,
		enabled:     enabled,
		models:      models,
		maxAttempts: maxAttempts,
		timeout:     timeout,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM, // GitHub Flavored Markdown (includes Table, Strikethrough, Linkify, TaskList)
			),
		),
		metrics: GetMetrics(),
	}
}

// Reply sends message with the assistant persona and returns the answer as
// Markdown text plus rendered HTML
func (s *ChatService) Reply(ctx context.Context, message string) (*models.ChatReply, error) {
	start := time.Now()
	s.metrics.RecordChatRequest()
	defer func() { s.metrics.RecordChatLatency(time.Since(start).Seconds()) }()

	if !s.enabled {
		s.metrics.RecordChatError(upstream.KindCredentialMissing.String())
		return nil, upstream.MissingCredential("completion", "GROQ_API_KEY")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.caller.Complete(ctx, completion.Request{
		System:      chatPersona,
		Prompt:      strings.TrimSpace(message),
		Models:      s.models,
		MaxAttempts: s.maxAttempts,
		MaxTokens:   chatMaxTokens,
		Temperature: chatTemperature,
	})
	if err != nil {
		s.metrics.RecordChatError(upstream.KindOf(err).String())
		return nil, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}

	var html bytes.Buffer
	if err := s.markdown.Convert([]byte(text), &html); err != nil {
		s.metrics.RecordChatError("render")
		html.Reset()
	}

	return &models.ChatReply{Response: text, HTML: html.String()}, nil
}
