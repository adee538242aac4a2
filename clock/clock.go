package clock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jghoshh/momentum/models"
)

// LoadingSentinel is the placeholder value some upstream date providers emit
// before they have resolved the user's timezone. The adapter absorbs it: as
// long as the provider keeps returning the sentinel, the adapter reports not
// ready instead of exposing the placeholder string to consumers.
const LoadingSentinel = "LOADING_DATE"

// ErrNotReady is returned when the authoritative date has not been resolved yet.
var ErrNotReady = errors.New("current date not available yet")

// Provider supplies the authoritative "today" in the user's timezone.
// Implementations are expected to consult the server, never the local system
// clock. A provider may return LoadingSentinel while its upstream is still
// initializing.
type Provider interface {
	CurrentDate(ctx context.Context) (string, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context) (string, error)

// CurrentDate implements Provider.
func (f ProviderFunc) CurrentDate(ctx context.Context) (string, error) {
	return f(ctx)
}

// Adapter wraps a Provider and exposes the authoritative date as a
// comparably-ordered YYYY-MM-DD string, together with pure past/today/future
// predicates against it. It is safe for concurrent use.
type Adapter struct {
	provider Provider

	mu    sync.RWMutex
	today string
}

// NewAdapter creates an Adapter over the given provider. The date is not
// fetched until the first call to Ensure.
func NewAdapter(provider Provider) *Adapter {
	return &Adapter{provider: provider}
}

// NewFixedAdapter creates an Adapter pinned to the given date, bypassing any
// provider. Intended for tests.
func NewFixedAdapter(today string) *Adapter {
	return &Adapter{today: today}
}

// Ensure resolves the authoritative date, fetching from the provider if it is
// not known yet. It returns ErrNotReady if the provider is still emitting the
// loading sentinel.
func (a *Adapter) Ensure(ctx context.Context) (string, error) {
	a.mu.RLock()
	today := a.today
	a.mu.RUnlock()
	if today != "" {
		return today, nil
	}

	if a.provider == nil {
		return "", ErrNotReady
	}

	date, err := a.provider.CurrentDate(ctx)
	if err != nil {
		return "", err
	}
	if date == "" || date == LoadingSentinel {
		return "", ErrNotReady
	}
	if _, err := time.Parse(models.DateFormat, date); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.today = date
	a.mu.Unlock()
	return date, nil
}

// CurrentDate returns the resolved date and true, or "" and false while the
// upstream provider has not produced a real date yet.
func (a *Adapter) CurrentDate() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.today, a.today != ""
}

// Advance replaces the resolved date. The stub server's date endpoint is
// polled once per session in production, but tests and the midnight-rollover
// path use Advance to move the authoritative day forward.
func (a *Adapter) Advance(today string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.today = today
}

// IsPast reports whether the given date is strictly before the authoritative
// today. While the date is unresolved it returns false; callers gate on
// CurrentDate or Ensure before trusting the predicates.
func (a *Adapter) IsPast(date string) bool {
	today, ok := a.CurrentDate()
	return ok && date < today
}

// IsToday reports whether the given date is the authoritative today.
func (a *Adapter) IsToday(date string) bool {
	today, ok := a.CurrentDate()
	return ok && date == today
}

// IsFuture reports whether the given date is strictly after the authoritative
// today.
func (a *Adapter) IsFuture(date string) bool {
	today, ok := a.CurrentDate()
	return ok && date > today
}
