// Package completion wraps the completion adapter with rate-limit backoff,
// multi-model fallback and a hard attempt ceiling.
package completion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"astrohub/internal/upstream"
)

// Request describes one logical completion across a model priority list
type Request struct {
	System      string
	Prompt      string
	Models      []string
	MaxAttempts int // per model
	MaxTokens   int
	Temperature float32
}

// Attempt records the outcome of one failed upstream call
type Attempt struct {
	Model  string
	Number int // 1-based within the model
	Kind   upstream.Kind
	Err    error
}

// TerminalFailure is returned when no model produced text
type TerminalFailure struct {
	Attempts []Attempt
	Aborted  bool // auth failure or missing credential stopped the walk early
}

func (e *TerminalFailure) Error() string {
	if len(e.Attempts) == 0 {
		return "completion failed: no attempts made"
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s#%d: %s", a.Model, a.Number, a.Kind))
	}
	prefix := "completion failed on every model"
	if e.Aborted {
		prefix = "completion aborted"
	}
	return fmt.Sprintf("%s (%s): %v", prefix, strings.Join(parts, ", "), e.Attempts[len(e.Attempts)-1].Err)
}

// Unwrap exposes the last attempt's error so callers can inspect its kind
func (e *TerminalFailure) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// AttemptObserver is notified after every upstream call
type AttemptObserver func(model, outcome string)

// Caller is stateless between calls; one instance is shared by all requests
type Caller struct {
	client  upstream.Completer
	backoff *Backoff
	sleep   SleepFunc
	observe AttemptObserver
}

// NewCaller creates a caller over client with the given backoff policy
func NewCaller(client upstream.Completer, backoff *Backoff) *Caller {
	if backoff == nil {
		backoff = NewBackoff(0, 0)
	}
	return &Caller{
		client:  client,
		backoff: backoff,
		sleep:   sleepContext,
	}
}

// SetSleep replaces the wait function
func (c *Caller) SetSleep(sleep SleepFunc) {
	c.sleep = sleep
}

// SetObserver registers a hook called after every upstream call
func (c *Caller) SetObserver(observe AttemptObserver) {
	c.observe = observe
}

// Complete walks the model list and returns the first successful text.
//
// Rate limits wait and retry the same model, bad requests advance to the next
// model, auth failures and missing credentials abort the whole call, and
// transient failures back off and retry until the per-model ceiling.
func (c *Caller) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", &upstream.Error{Service: "completion", Kind: upstream.KindBadRequest, Message: "empty prompt"}
	}
	if len(req.Models) == 0 {
		return "", &upstream.Error{Service: "completion", Kind: upstream.KindBadRequest, Message: "no models configured"}
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	failure := &TerminalFailure{}

	for _, model := range req.Models {
	attempts:
		for attempt := 0; attempt < maxAttempts; attempt++ {
			text, err := c.client.Complete(ctx, upstream.CompletionRequest{
				Model:       model,
				System:      req.System,
				Prompt:      req.Prompt,
				MaxTokens:   req.MaxTokens,
				Temperature: req.Temperature,
			})
			if err == nil {
				c.record(model, "success")
				return text, nil
			}

			kind := upstream.KindOf(err)
			c.record(model, kind.String())
			failure.Attempts = append(failure.Attempts, Attempt{Model: model, Number: attempt + 1, Kind: kind, Err: err})

			switch kind {
			case upstream.KindAuthFailure, upstream.KindCredentialMissing:
				log.Printf("❌ [COMPLETION] %s on model %s, aborting: %v", kind, model, err)
				failure.Aborted = true
				return "", failure

			case upstream.KindBadRequest, upstream.KindFeedFailure:
				log.Printf("⚠️  [COMPLETION] Model %s rejected the request, trying next model: %v", model, err)
				break attempts
			}

			if ctx.Err() != nil {
				failure.Aborted = true
				return "", failure
			}
			if attempt == maxAttempts-1 {
				log.Printf("⚠️  [COMPLETION] Model %s exhausted after %d attempts", model, maxAttempts)
				break
			}

			wait := c.backoff.Delay(attempt)
			var upErr *upstream.Error
			if kind == upstream.KindRateLimited && errors.As(err, &upErr) {
				wait = c.backoff.RateLimitDelay(attempt, upErr.RetryAfter)
			}

			log.Printf("⏳ [COMPLETION] %s on model %s (attempt %d/%d), retrying in %v", kind, model, attempt+1, maxAttempts, wait)
			if err := c.sleep(ctx, wait); err != nil {
				failure.Aborted = true
				failure.Attempts = append(failure.Attempts, Attempt{Model: model, Number: attempt + 1, Kind: upstream.KindTransient, Err: err})
				return "", failure
			}
		}
	}

	return "", failure
}

func (c *Caller) record(model, outcome string) {
	if c.observe != nil {
		c.observe(model, outcome)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
