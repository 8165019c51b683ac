// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the retry policy and retrying GET used for every
// OpenAlex request.
//
// The policy is a pure function (Decide) returning Success, Retry(delay) or
// Fatal(class); Get owns the loop and the sleeping, through a Sleeper so
// tests never wait on a real clock.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pdiddy/research-gap/pkg/types"
)

// Kind is the outcome of one attempt.
type Kind int

const (
	Success Kind = iota
	Retry
	Fatal
)

// Class names the failure category behind a Retry or Fatal decision.
type Class string

const (
	ClassNone      Class = ""
	ClassThrottled Class = "throttled"
	ClassForbidden Class = "forbidden"
	ClassHTTP      Class = "http"
	ClassNetwork   Class = "network"
	ClassMalformed Class = "malformed"
	ClassCancelled Class = "cancelled"
)

// Decision is what the caller should do after an attempt.
type Decision struct {
	Kind  Kind
	Delay time.Duration
	Class Class
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts    int
	ThrottleBase   time.Duration
	HTTPErrorDelay time.Duration
	NetworkDelay   time.Duration
}

const (
	defaultMaxAttempts = 3

	// MaxThrottleDelay caps the exponential wait after a 429.
	MaxThrottleDelay = 5 * time.Minute
)

// DefaultPolicy returns 3 attempts, 2^attempt seconds after 429, 1s after
// other HTTP errors and 2s after network errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    defaultMaxAttempts,
		ThrottleBase:   time.Second,
		HTTPErrorDelay: time.Second,
		NetworkDelay:   2 * time.Second,
	}
}

// PolicyFromConfig fills unset fields of cfg with the defaults.
func PolicyFromConfig(cfg types.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.ThrottleBase > 0 {
		p.ThrottleBase = cfg.ThrottleBase
	}
	if cfg.HTTPErrorDelay > 0 {
		p.HTTPErrorDelay = cfg.HTTPErrorDelay
	}
	if cfg.NetworkDelay > 0 {
		p.NetworkDelay = cfg.NetworkDelay
	}
	return p
}

// Decide classifies attempt number attempt (zero-based) given either a
// transport error or an HTTP status. It performs no I/O.
func Decide(attempt, status int, err error, p Policy) Decision {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	last := attempt >= p.MaxAttempts-1

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Decision{Kind: Fatal, Class: ClassCancelled}
		}
		if last {
			return Decision{Kind: Fatal, Class: ClassNetwork}
		}
		return Decision{Kind: Retry, Delay: p.NetworkDelay, Class: ClassNetwork}
	}

	switch {
	case status >= 200 && status < 300:
		return Decision{Kind: Success}
	case status == http.StatusTooManyRequests:
		if last {
			return Decision{Kind: Fatal, Class: ClassThrottled}
		}
		return Decision{Kind: Retry, Delay: throttleDelay(p.ThrottleBase, attempt), Class: ClassThrottled}
	case status == http.StatusForbidden:
		return Decision{Kind: Fatal, Class: ClassForbidden}
	default:
		if last {
			return Decision{Kind: Fatal, Class: ClassHTTP}
		}
		return Decision{Kind: Retry, Delay: p.HTTPErrorDelay, Class: ClassHTTP}
	}
}

// throttleDelay is base * 2^attempt, capped at MaxThrottleDelay.
func throttleDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < MaxThrottleDelay; i++ {
		d *= 2
	}
	return min(d, MaxThrottleDelay)
}

// FatalError is returned once the retry budget is spent or a non-retryable
// condition is hit.
type FatalError struct {
	Class    Class
	Status   int
	Attempts int
	Err      error
}

func (e *FatalError) Error() string {
	msg := string(e.Class) + " failure"
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FatalError) Unwrap() error { return e.Err }

// Sleeper suspends the caller between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RealSleeper waits on the wall clock and returns early with ctx.Err() when
// the context is cancelled.
type RealSleeper struct{}

// Sleep blocks for d or until ctx is done.
func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// maxErrorBody caps how much of a failed response body is kept for the
// diagnostic.
const maxErrorBody = 512

// Get issues GET url until Decide returns Success or Fatal. On Retry it
// drains and closes the body, reports the wait on w and sleeps through s.
// The successful body is returned in full; failures come back as
// *FatalError.
func Get(ctx context.Context, client *http.Client, url string, header http.Header, p Policy, s Sleeper, w io.Writer) ([]byte, error) {
	if s == nil {
		s = RealSleeper{}
	}
	if w == nil {
		w = io.Discard
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		status := 0
		var body []byte
		resp, doErr := client.Do(req)
		if doErr == nil {
			status = resp.StatusCode
			if status >= 200 && status < 300 {
				body, doErr = io.ReadAll(resp.Body)
			} else {
				body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
				io.Copy(io.Discard, resp.Body)
			}
			resp.Body.Close()
			if doErr != nil {
				status = 0
			}
		}

		// The caller's context expiring is never retried; http.Client
		// timeouts are, like any other network failure.
		if doErr != nil && ctx.Err() != nil {
			return nil, &FatalError{Class: ClassCancelled, Attempts: attempt + 1, Err: ctx.Err()}
		}

		d := Decide(attempt, status, doErr, p)
		switch d.Kind {
		case Success:
			return body, nil
		case Fatal:
			fe := &FatalError{Class: d.Class, Status: status, Attempts: attempt + 1, Err: doErr}
			if fe.Err == nil && len(body) > 0 {
				fe.Err = fmt.Errorf("%s", body)
			}
			return nil, fe
		}

		if doErr != nil {
			fmt.Fprintf(w, "  %s error: %v, retrying in %v (attempt %d/%d)\n", d.Class, doErr, d.Delay, attempt+1, p.MaxAttempts)
		} else {
			fmt.Fprintf(w, "  HTTP %d, retrying in %v (attempt %d/%d)\n", status, d.Delay, attempt+1, p.MaxAttempts)
		}

		if err := s.Sleep(ctx, d.Delay); err != nil {
			return nil, &FatalError{Class: ClassCancelled, Status: status, Attempts: attempt + 1, Err: err}
		}
	}
}
