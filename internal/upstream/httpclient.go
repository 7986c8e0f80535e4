package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"astrohub/internal/logging"
)

const (
	defaultUserAgent   = "AstroHub/1.0 (+https://github.com/astrohub/astrohub)"
	maxJSONBodySize    = 8 * 1024 * 1024 // 8MB
	maxErrorBodyLength = 2048
)

// NewHTTPClient creates an HTTP client with pooled connections and a fixed
// overall timeout. Every adapter gets its own client so timeouts stay per-service.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20, // default is 2
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects (max 10)")
			}
			return nil
		},
	}
}

// getJSON performs a GET and decodes a 2xx JSON body into dst.
// Failures are returned as classified *Error values.
func getJSON(ctx context.Context, client *http.Client, service, rawURL string, headers map[string]string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &Error{Service: service, Kind: KindBadRequest, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ClassifyError(service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		upErr := ClassifyHTTPError(service, resp.StatusCode, resp.Header, string(body))
		logging.WithUpstream(slog.Default(), service).Debug("upstream returned error status",
			"status", resp.StatusCode, "kind", upErr.Kind.String())
		return upErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBodySize)).Decode(dst); err != nil {
		return &Error{
			Service:    service,
			Kind:       KindTransient,
			StatusCode: resp.StatusCode,
			Message:    "invalid JSON response",
			Cause:      err,
		}
	}
	return nil
}

// asFeedFailure reclassifies an adapter error for read-only feeds. Missing
// credentials keep their kind; everything else becomes a feed failure.
func asFeedFailure(err error) error {
	upErr := ClassifyError("", err)
	if upErr == nil || upErr.Kind == KindCredentialMissing {
		return upErr
	}
	out := *upErr
	out.Kind = KindFeedFailure
	return &out
}
