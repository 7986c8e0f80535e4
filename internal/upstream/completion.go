package upstream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	DefaultCompletionBaseURL = "https://api.groq.com/openai/v1"

	completionService = "completion"
)

// CompletionRequest is a single chat completion against one model
type CompletionRequest struct {
	Model       string
	System      string // optional system persona
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer turns a prompt into free text
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompletionClient talks to an OpenAI-compatible chat completions endpoint
type CompletionClient struct {
	apiKey  string
	client  *openai.Client
	limiter *rate.Limiter
}

// NewCompletionClient creates a completion client for baseURL, paced at
// ratePerSec requests per second with the given burst
func NewCompletionClient(apiKey, baseURL string, timeout time.Duration, ratePerSec float64, burst int) *CompletionClient {
	if baseURL == "" {
		baseURL = DefaultCompletionBaseURL
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	if burst < 1 {
		burst = 1
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(baseURL, "/")
	cfg.HTTPClient = &retryAfterRecorder{next: NewHTTPClient(timeout)}

	return &CompletionClient{
		apiKey:  apiKey,
		client:  openai.NewClientWithConfig(cfg),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst),
	}
}

// Configured reports whether the API key is set
func (c *CompletionClient) Configured() bool {
	return c.apiKey != ""
}

// Complete sends one chat completion request and returns the first choice's text
func (c *CompletionClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", MissingCredential(completionService, "GROQ_API_KEY")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", ClassifyError(completionService, err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	hint := &retryAfterHint{}
	ctx = context.WithValue(ctx, retryAfterKey{}, hint)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", classifyCompletionError(err, hint.get())
	}

	if len(resp.Choices) == 0 {
		return "", &Error{Service: completionService, Kind: KindTransient, Message: "completion returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyCompletionError maps go-openai errors onto the upstream taxonomy
func classifyCompletionError(err error, retryAfter time.Duration) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		upErr := ClassifyHTTPError(completionService, apiErr.HTTPStatusCode, nil, apiErr.Message)
		upErr.RetryAfter = retryAfter
		upErr.Cause = err
		return upErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		upErr := ClassifyHTTPError(completionService, reqErr.HTTPStatusCode, nil, string(reqErr.Body))
		upErr.RetryAfter = retryAfter
		upErr.Cause = err
		return upErr
	}

	return ClassifyError(completionService, err)
}

type retryAfterKey struct{}

// retryAfterHint carries the Retry-After header of a 429 back to Complete,
// since go-openai's error types do not expose response headers
type retryAfterHint struct {
	mu    sync.Mutex
	value time.Duration
}

func (h *retryAfterHint) set(d time.Duration) {
	h.mu.Lock()
	h.value = d
	h.mu.Unlock()
}

func (h *retryAfterHint) get() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value
}

// retryAfterRecorder is the go-openai HTTP doer; it records Retry-After on 429s
type retryAfterRecorder struct {
	next *http.Client
}

func (r *retryAfterRecorder) Do(req *http.Request) (*http.Response, error) {
	resp, err := r.next.Do(req)
	if err != nil || resp.StatusCode != http.StatusTooManyRequests {
		return resp, err
	}
	if hint, ok := req.Context().Value(retryAfterKey{}).(*retryAfterHint); ok {
		hint.set(ParseRetryAfter(resp.Header.Get("Retry-After")))
	}
	return resp, nil
}
