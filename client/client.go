package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jghoshh/momentum/models"
)

// APIError is returned when the tracker API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether the error is a server-side or throttling
// failure worth retrying.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TrackerClient is the HTTP wrapper around the remote tracker API. It covers
// the read endpoints the aggregator consumes (dashboard months, habits,
// server date) and the write endpoints the mutation controller drives
// (completions, mood, gratitudes, habit management). Reads are retried on
// 5xx/429 with exponential backoff; writes are attempted exactly once, since
// write retry policy belongs to the mutation controller.
type TrackerClient struct {
	baseURL    string
	httpClient *http.Client

	// readRetries bounds the automatic retry loop for GET requests.
	readRetries int
	// backoffBase is doubled per retry attempt; kept short in tests.
	backoffBase time.Duration
}

// NewTrackerClient creates a client for the tracker API at baseURL.
func NewTrackerClient(baseURL string) *TrackerClient {
	return &TrackerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		readRetries: 3,
		backoffBase: 500 * time.Millisecond,
	}
}

// do issues a request with a JSON body (may be nil) and decodes the JSON
// response into out (may be nil).
func (c *TrackerClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	urlStr := c.baseURL + path
	if len(query) > 0 {
		urlStr += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(message)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// get issues a GET with retry on retryable API errors.
func (c *TrackerClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	var lastErr error
	delay := c.backoffBase
	for attempt := 0; attempt < c.readRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		lastErr = c.do(ctx, http.MethodGet, path, query, nil, out)
		if lastErr == nil {
			return nil
		}
		if apiErr, ok := lastErr.(*APIError); !ok || !apiErr.IsRetryable() {
			return lastErr
		}
	}
	return lastErr
}

// CurrentDate returns the authoritative current date in the user's timezone.
// The endpoint may answer with a loading placeholder while the server is
// still resolving the timezone; the value is passed through untouched and
// interpreted by the clock adapter.
func (c *TrackerClient) CurrentDate(ctx context.Context) (string, error) {
	var payload struct {
		Date string `json:"date"`
	}
	if err := c.get(ctx, "/api/time", nil, &payload); err != nil {
		return "", err
	}
	return payload.Date, nil
}

// FetchHabits returns the user's current habit list.
func (c *TrackerClient) FetchHabits(ctx context.Context) ([]models.Habit, error) {
	var habits []models.Habit
	if err := c.get(ctx, "/api/habits", nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// FetchDashboardEntries returns the raw per-date records for the given
// YYYY-MM month label, keyed by date.
func (c *TrackerClient) FetchDashboardEntries(ctx context.Context, monthLabel string) (map[string]models.RawDashboardRecord, error) {
	query := url.Values{}
	query.Set("month", monthLabel)

	var records map[string]models.RawDashboardRecord
	if err := c.get(ctx, "/api/dashboard", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteHabitCompletion sets the completion state of a habit on a date.
func (c *TrackerClient) WriteHabitCompletion(ctx context.Context, habitID int, date string, completed bool) error {
	body := map[string]interface{}{
		"habit_id":  habitID,
		"date":      date,
		"completed": completed,
	}
	return c.do(ctx, http.MethodPut, "/api/completions", nil, body, nil)
}

// WriteMoodRating writes the mood ratings for a date.
func (c *TrackerClient) WriteMoodRating(ctx context.Context, date string, ratings models.MoodRatings) error {
	body := map[string]interface{}{
		"date":      date,
		"happiness": ratings.Happiness,
		"focus":     ratings.Focus,
		"stress":    ratings.Stress,
	}
	return c.do(ctx, http.MethodPut, "/api/mood", nil, body, nil)
}

// AddGratitude appends a gratitude entry to a date and returns the stored record.
func (c *TrackerClient) AddGratitude(ctx context.Context, date, text string) (*models.GratitudeEntry, error) {
	body := map[string]interface{}{
		"date": date,
		"text": text,
	}
	var entry models.GratitudeEntry
	if err := c.do(ctx, http.MethodPost, "/api/gratitudes", nil, body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// CreateHabit creates a habit with the given name and returns the stored record.
func (c *TrackerClient) CreateHabit(ctx context.Context, name string) (*models.Habit, error) {
	body := map[string]interface{}{
		"name": name,
	}
	var habit models.Habit
	if err := c.do(ctx, http.MethodPost, "/api/habits", nil, body, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// HabitUpdate carries the optional fields of a habit update. Nil fields are
// left unchanged by the server.
type HabitUpdate struct {
	Name       *string `json:"name,omitempty"`
	IsFavorite *bool   `json:"is_favorite,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// UpdateHabit applies a partial update to a habit and returns the stored record.
func (c *TrackerClient) UpdateHabit(ctx context.Context, habitID int, update HabitUpdate) (*models.Habit, error) {
	var habit models.Habit
	path := fmt.Sprintf("/api/habits/%d", habitID)
	if err := c.do(ctx, http.MethodPatch, path, nil, update, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// DeleteHabit removes a habit from future visibility. Historical completion
// records referencing it remain on the server.
func (c *TrackerClient) DeleteHabit(ctx context.Context, habitID int) error {
	path := fmt.Sprintf("/api/habits/%d", habitID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}
