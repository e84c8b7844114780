package alert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Headers stamped on every delivery so receivers can route without parsing
// the body.
const (
	HeaderEvent    = "X-Pactline-Event"
	HeaderContract = "X-Pactline-Contract"
	HeaderVersion  = "X-Pactline-Version"
)

const (
	deliveryTimeout = 5 * time.Second
	maxAttempts     = 3
	maxBackoff      = 30 * time.Second
)

var (
	httpClient = &http.Client{Timeout: deliveryTimeout}
	retryDelay = time.Second
)

// errPermanent marks a delivery the receiver refused outright.
var errPermanent = errors.New("webhook rejected")

// delivery is one rendered event bound for one endpoint.
type delivery struct {
	cfg   Config
	event Event
	body  []byte
}

// Send posts event to cfg.URL. 5xx, 429 and transport errors are retried
// with linear backoff; any other 4xx fails immediately.
func Send(ctx context.Context, cfg Config, event Event) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("render %s payload: %w", cfg.Format, err)
	}
	d := delivery{cfg: cfg, event: event, body: body}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		wait, err := d.attempt(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, errPermanent) || ctx.Err() != nil {
			return err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		if wait == 0 {
			wait = time.Duration(attempt) * retryDelay
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("deliver %s for %s: gave up after %d attempts: %w",
		event.Event, event.ContractID, maxAttempts, lastErr)
}

// attempt performs a single POST. The returned duration is the receiver's
// Retry-After hint, zero when absent.
func (d delivery) attempt(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.URL, bytes.NewReader(d.body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.event.Event != "" {
		req.Header.Set(HeaderEvent, d.event.Event)
	}
	if d.event.ContractID != "" {
		req.Header.Set(HeaderContract, d.event.ContractID)
	}
	if d.event.Version > 0 {
		req.Header.Set(HeaderVersion, strconv.Itoa(d.event.Version))
	}
	for k, v := range d.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return 0, nil
	case code == http.StatusTooManyRequests:
		return retryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("receiver throttled: HTTP %d", code)
	case code >= 400 && code < 500:
		return 0, fmt.Errorf("%w: HTTP %d", errPermanent, code)
	default:
		return 0, fmt.Errorf("receiver error: HTTP %d", code)
	}
}

// retryAfter reads a delay-seconds Retry-After value, capped at maxBackoff.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	if d := time.Duration(secs) * time.Second; d < maxBackoff {
		return d
	}
	return maxBackoff
}
