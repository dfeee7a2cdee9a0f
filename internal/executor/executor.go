// Package executor sends the fixed greeting request to a platform and
// normalizes the outcome.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/router-for-me/APIConsole/internal/resolver"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout bounds one outbound test call.
	DefaultTimeout = 30 * time.Second
	// greetingMaxTokens caps the completion length of test calls.
	greetingMaxTokens = 50
	// maxResponseBytes caps how much of the upstream body is read.
	maxResponseBytes = 4 << 20
)

// Doer is the HTTP collaborator used for the outbound call.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the normalized outcome of a test call. Success reports that an
// HTTP exchange completed; callers inspect Status and Data for upstream errors.
type Result struct {
	Success        bool            `json:"success"`
	Status         int             `json:"status,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	ResponseTimeMS int64           `json:"response_time_ms,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// Executor performs test calls against chat completion APIs.
type Executor struct {
	client  Doer
	timeout time.Duration
	now     func() time.Time
}

// New constructs an Executor. A nil client selects an http.Client; timeout <= 0 selects DefaultTimeout.
func New(client Doer, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Executor{client: client, timeout: timeout, now: time.Now}
}

// Execute posts the greeting prompt for target.Model to the target's chat completions endpoint.
// It makes exactly one attempt and never returns an error: transport failures are reported
// through Result.Error.
func (e *Executor) Execute(ctx context.Context, target resolver.Target) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload := resolver.GreetingRequest(target.Model)
	payload.MaxTokens = greetingMaxTokens
	body, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return failure(fmt.Errorf("encode request: %w", errMarshal))
	}

	req, errReq := http.NewRequestWithContext(requestCtx, http.MethodPost, resolver.Endpoint(target.BaseURL), bytes.NewReader(body))
	if errReq != nil {
		return failure(fmt.Errorf("build request: %w", errReq))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.APIKey)

	started := e.now()
	resp, errDo := e.client.Do(req)
	if errDo != nil {
		return failure(fmt.Errorf("request failed: %w", errDo))
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("executor: close response body failed")
		}
	}()

	raw, errRead := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if errRead != nil {
		return failure(fmt.Errorf("read response: %w", errRead))
	}
	elapsed := e.now().Sub(started)

	if !json.Valid(raw) {
		return failure(fmt.Errorf("malformed response: upstream returned status %d with a non-JSON body", resp.StatusCode))
	}

	return Result{
		Success:        true,
		Status:         resp.StatusCode,
		Data:           json.RawMessage(raw),
		ResponseTimeMS: elapsed.Milliseconds(),
	}
}

func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}
