// Package gateway is the network-facing adapter between the saga and the
// inventory authority. Calls are bounded by timeout and retried a fixed number
// of times, always carrying the same request identifier; retries must never
// mint a new one or idempotency is defeated.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/eveiled/hotel-booking/internal/correlation"
	"github.com/eveiled/hotel-booking/internal/domain"
	"github.com/eveiled/hotel-booking/internal/observability"
	"github.com/eveiled/hotel-booking/internal/saga"
)

type Client struct {
	base   string
	http   *http.Client
	logger observability.Logger

	acquireTimeout time.Duration
	mutateTimeout  time.Duration
	acquireRetries int
	mutateRetries  int
}

type Option func(*Client)

func WithTimeouts(acquire, mutate time.Duration) Option {
	return func(c *Client) {
		c.acquireTimeout = acquire
		c.mutateTimeout = mutate
	}
}

func WithRetries(acquire, mutate int) Option {
	return func(c *Client) {
		if acquire > 0 {
			c.acquireRetries = acquire
		}
		if mutate > 0 {
			c.mutateRetries = mutate
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(base string, logger observability.Logger, opts ...Option) *Client {
	c := &Client{
		base:           base,
		http:           &http.Client{},
		logger:         logger,
		acquireTimeout: 10 * time.Second,
		mutateTimeout:  5 * time.Second,
		acquireRetries: 3,
		mutateRetries:  2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ saga.Inventory = (*Client)(nil)

type holdRequest struct {
	RequestID string    `json:"request_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type holdResponse struct {
	Granted bool `json:"granted"`
}

// AcquireHold maps the remote decision onto a tagged outcome. Transport
// errors and non-2xx replies exhaust the retry budget and come back as
// HoldFailed; the saga compensates from there.
func (c *Client) AcquireHold(ctx context.Context, roomID uuid.UUID, requestID string, start, end time.Time) (saga.HoldOutcome, error) {
	body, err := json.Marshal(holdRequest{RequestID: requestID, StartDate: start, EndDate: end})
	if err != nil {
		return saga.HoldFailed, err
	}

	var out holdResponse
	err = c.do(ctx, fmt.Sprintf("%s/v1/rooms/%s/hold", c.base, roomID), body, c.acquireTimeout, c.acquireRetries, &out)
	if err != nil {
		return saga.HoldFailed, err
	}
	if out.Granted {
		return saga.HoldGranted, nil
	}
	return saga.HoldDeclined, nil
}

func (c *Client) ReleaseHold(ctx context.Context, roomID uuid.UUID, requestID string) error {
	url := fmt.Sprintf("%s/v1/rooms/%s/release?request_id=%s", c.base, roomID, requestID)
	return c.do(ctx, url, nil, c.mutateTimeout, c.mutateRetries, nil)
}

func (c *Client) FinalizeHold(ctx context.Context, roomID uuid.UUID) error {
	url := fmt.Sprintf("%s/v1/rooms/%s/finalize", c.base, roomID)
	return c.do(ctx, url, nil, c.mutateTimeout, c.mutateRetries, nil)
}

type roomPayload struct {
	ID          uuid.UUID `json:"id"`
	HotelID     uuid.UUID `json:"hotel_id"`
	Number      string    `json:"number"`
	Available   bool      `json:"available"`
	TimesBooked int       `json:"times_booked"`
}

func (c *Client) AvailableRoomsByPopularity(ctx context.Context) ([]domain.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, c.acquireTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/rooms/recommend", nil)
	if err != nil {
		return nil, err
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "list recommended rooms")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("inventory returned status %d", resp.StatusCode)
	}

	var payload []roomPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	rooms := make([]domain.Room, len(payload))
	for i, p := range payload {
		rooms[i] = domain.Room{
			ID:          p.ID,
			HotelID:     p.HotelID,
			Number:      p.Number,
			Available:   p.Available,
			TimesBooked: p.TimesBooked,
		}
	}
	return rooms, nil
}

// do POSTs with a per-attempt timeout and exponential backoff between
// attempts. The request body is byte-identical on every retry.
func (c *Client) do(ctx context.Context, url string, body []byte, timeout time.Duration, attempts int, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			observability.GatewayRetries.Inc()
			backoff := time.Duration(1<<uint(attempt-1)) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		lastErr = c.attempt(ctx, url, body, timeout, out)
		if lastErr == nil {
			return nil
		}
		c.logger.WithError(lastErr).WithField("url", url).WithField("attempt", attempt+1).Warn("inventory call failed")
	}
	return errors.Wrapf(lastErr, "inventory call failed after %d attempts", attempts)
}

func (c *Client) attempt(ctx context.Context, url string, body []byte, timeout time.Duration, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("inventory returned status %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// decorate attaches the correlation id as call metadata so inventory-side
// logs can be joined with ours.
func (c *Client) decorate(req *http.Request) {
	if id := correlation.FromContext(req.Context()); id != "" {
		req.Header.Set(correlation.Header, id)
	}
}
