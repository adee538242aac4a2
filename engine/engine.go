package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jghoshh/momentum/client"
	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/models"
	storage "github.com/jghoshh/momentum/storage/cache"
)

// DefaultTTL is how long an aggregated month stays cached. It is short
// enough that a mutation in the same session becomes visible right after
// invalidation, and long enough that flipping back and forth between months
// does not refetch on every repaint.
const DefaultTTL = 5 * time.Minute

// Service is the remote tracker API surface the engine consumes. It is
// implemented by client.TrackerClient; tests substitute a scripted fake.
type Service interface {
	FetchHabits(ctx context.Context) ([]models.Habit, error)
	FetchDashboardEntries(ctx context.Context, monthLabel string) (map[string]models.RawDashboardRecord, error)
	WriteHabitCompletion(ctx context.Context, habitID int, date string, completed bool) error
	WriteMoodRating(ctx context.Context, date string, ratings models.MoodRatings) error
	AddGratitude(ctx context.Context, date, text string) (*models.GratitudeEntry, error)
	CreateHabit(ctx context.Context, name string) (*models.Habit, error)
	UpdateHabit(ctx context.Context, habitID int, update client.HabitUpdate) (*models.Habit, error)
	DeleteHabit(ctx context.Context, habitID int) error
}

// Subscriber is notified with the affected YYYY-MM month label every time
// the engine invalidates cached state. This is the explicit contract between
// "a write happened" and "a refresh must occur"; there is no implicit
// broadcast anywhere else.
type Subscriber func(month string)

// Engine is the daily-tracking aggregation engine. It owns the in-memory
// calendar entries and the cache exclusively; every external read goes
// through the aggregator and every external write through the mutation
// methods, with a cache invalidation strictly between a successful write and
// the re-aggregation that follows it.
type Engine struct {
	service Service
	clock   *clock.Adapter
	cache   storage.CacheInterface
	ttl     time.Duration

	mu           sync.Mutex
	habits       []models.Habit
	entries      map[string]*models.DailyCalendarEntry
	currentMonth string
	loadSeq      uint64
	// completions indexes completed marks by date then habit id, fed by
	// every aggregation pass and optimistic toggle. The stats engine reads
	// only this index, never the network.
	completions map[string]map[int]bool

	// pending serializes mutations per (date, habitId) and records the
	// latest user intent for each key.
	pending map[string]*pendingToggle

	subMu       sync.Mutex
	subscribers []Subscriber

	// retryBase is the first backoff delay for mood write retries; sleep is
	// swappable so tests can run the backoff without real delays.
	retryBase time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
}

type pendingToggle struct {
	mu     sync.Mutex // serializes writes for the key
	intent bool       // latest requested value
}

// New creates an Engine over the given service, clock adapter, and cache.
// A zero ttl falls back to DefaultTTL.
func New(service Service, clockAdapter *clock.Adapter, cache storage.CacheInterface, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{
		service:     service,
		clock:       clockAdapter,
		cache:       cache,
		ttl:         ttl,
		entries:     make(map[string]*models.DailyCalendarEntry),
		completions: make(map[string]map[int]bool),
		pending:     make(map[string]*pendingToggle),
		retryBase:   defaultRetryBase,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a callback invoked with the affected month label after
// every cache invalidation.
func (e *Engine) Subscribe(s Subscriber) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, s)
}

// notifyInvalidated fires every subscriber for the given month.
func (e *Engine) notifyInvalidated(month string) {
	e.subMu.Lock()
	subs := make([]Subscriber, len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.Unlock()

	for _, s := range subs {
		s(month)
	}
}

// GetCalendarEntryForDate returns the aggregated entry for a date in the
// currently loaded month, or nil if none is loaded.
func (e *Engine) GetCalendarEntryForDate(date string) *models.DailyCalendarEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entries[date]
}

// Habits returns a copy of the currently known habit list.
func (e *Engine) Habits() []models.Habit {
	e.mu.Lock()
	defer e.mu.Unlock()
	habits := make([]models.Habit, len(e.habits))
	copy(habits, e.habits)
	return habits
}

// Today returns the server-authoritative current date. The boolean is false
// until the clock has resolved a real date.
func (e *Engine) Today() (string, bool) {
	return e.clock.CurrentDate()
}

// CurrentMonth returns the YYYY-MM label of the loaded month, or "" before
// the first successful aggregation.
func (e *Engine) CurrentMonth() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentMonth
}

// RefreshCache drops every cached aggregate and reloads the current month
// from the source of truth.
func (e *Engine) RefreshCache(ctx context.Context) error {
	if err := e.cache.Clear(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	month := e.currentMonth
	e.mu.Unlock()
	if month == "" {
		return nil
	}

	e.notifyInvalidated(month)

	first, err := time.Parse("2006-01", month)
	if err != nil {
		return err
	}
	_, err = e.LoadMonth(ctx, first)
	return err
}

// GetCacheStats exposes the cache's introspection snapshot.
func (e *Engine) GetCacheStats(ctx context.Context) storage.CacheStats {
	return e.cache.Stats(ctx)
}

// toggleKey builds the serialization key for a (date, habitId) pair.
func toggleKey(date string, habitID int) string {
	return storage.Key("toggle", date, strconv.Itoa(habitID))
}
