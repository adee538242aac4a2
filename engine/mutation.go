package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/jghoshh/momentum/client"
	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/lib/utils"
	"github.com/jghoshh/momentum/models"
)

// ErrEmptyGratitude is returned when a gratitude entry has no text.
var ErrEmptyGratitude = errors.New("gratitude text must not be empty")

// moodRetryAttempts caps the retry loop for mood writes.
const moodRetryAttempts = 3

// defaultRetryBase is the first backoff delay for mood write retries; it
// doubles per attempt.
const defaultRetryBase = 500 * time.Millisecond

// mutate is the one optimistic-mutation helper every write shares: apply the
// local change, attempt the remote write, revert the local change when the
// write fails. apply returns the revert closure, which may be nil when there
// was no local state to change.
func (e *Engine) mutate(ctx context.Context, apply func() func(), attempt func(context.Context) error) error {
	revert := apply()
	if err := attempt(ctx); err != nil {
		if revert != nil {
			revert()
		}
		return err
	}
	return nil
}

// ensureToday resolves the authoritative date, mapping a still-initializing
// clock to ErrClockNotReady.
func (e *Engine) ensureToday(ctx context.Context) (string, error) {
	today, err := e.clock.Ensure(ctx)
	if err != nil {
		if errors.Is(err, clock.ErrNotReady) {
			return "", ErrClockNotReady
		}
		return "", err
	}
	return today, nil
}

// pendingFor returns the serialization slot for a (date, habitId) key.
func (e *Engine) pendingFor(key string) *pendingToggle {
	e.mu.Lock()
	defer e.mu.Unlock()
	pt, ok := e.pending[key]
	if !ok {
		pt = &pendingToggle{}
		e.pending[key] = pt
	}
	return pt
}

// ToggleHabitCompletion sets the completion state of a habit on a date. The
// in-memory entry is updated immediately; the remote write follows, and on
// failure the entry is restored to its prior state. Mutations on the same
// (date, habitId) key are serialized and the latest intent wins: a toggle
// superseded by a newer one before its write was issued skips the write
// entirely. On success the month's cache entry is invalidated before the
// aggregator re-runs, so server-computed fields such as streaks refresh.
//
// Toggling to the value the habit already holds is accepted and the write is
// still issued; the server owns streak recomputation and a suppressed write
// could strand a divergent server state.
func (e *Engine) ToggleHabitCompletion(ctx context.Context, date string, habitID int, completed bool) error {
	if _, err := e.ensureToday(ctx); err != nil {
		return err
	}
	if e.IsDateReadOnly(date) {
		return ErrPastDateImmutable
	}

	key := toggleKey(date, habitID)
	pt := e.pendingFor(key)

	err := e.mutate(ctx,
		func() func() {
			e.mu.Lock()
			defer e.mu.Unlock()

			pt.intent = completed

			entry, ok := e.entries[date]
			if !ok {
				return nil
			}
			completion := entry.CompletionFor(habitID)
			if completion == nil {
				return nil
			}

			prior := *completion
			completion.Completed = completed
			if completed {
				now := time.Now().UTC()
				completion.CompletedAt = &now
			} else {
				completion.CompletedAt = nil
			}
			e.setCompletionMarkLocked(date, habitID, completed)

			return func() {
				e.mu.Lock()
				defer e.mu.Unlock()
				// Only roll back if no newer intent has been applied on
				// top of this one in the meantime.
				if pt.intent != completed {
					return
				}
				if entry, ok := e.entries[date]; ok {
					if completion := entry.CompletionFor(habitID); completion != nil && completion.Completed == completed {
						*completion = prior
						e.setCompletionMarkLocked(date, habitID, prior.Completed)
					}
				}
			}
		},
		func(ctx context.Context) error {
			pt.mu.Lock()
			defer pt.mu.Unlock()

			// A newer toggle for this key arrived while we waited our
			// turn; its write carries the final intent, ours would only
			// interleave, so it is skipped.
			e.mu.Lock()
			superseded := pt.intent != completed
			e.mu.Unlock()
			if superseded {
				return nil
			}

			if err := e.service.WriteHabitCompletion(ctx, habitID, date, completed); err != nil {
				return &WriteFailure{Op: "toggle habit completion", Attempts: 1, Err: err}
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	e.invalidateAndReload(ctx, date)
	return nil
}

// setCompletionMarkLocked maintains the stats index. Callers must hold e.mu.
func (e *Engine) setCompletionMarkLocked(date string, habitID int, completed bool) {
	if completed {
		if e.completions[date] == nil {
			e.completions[date] = make(map[int]bool)
		}
		e.completions[date][habitID] = true
		return
	}
	if marks, ok := e.completions[date]; ok {
		delete(marks, habitID)
		if len(marks) == 0 {
			delete(e.completions, date)
		}
	}
}

// SaveMoodData validates and writes the mood ratings for a date; an empty
// date targets today. Transient write failures are retried with exponential
// backoff up to three attempts, and every retry re-checks that the target
// date has not become locked in the meantime, which guards against a retry
// racing past midnight. The optimistic local entry is rolled back before a
// persistent failure is surfaced.
func (e *Engine) SaveMoodData(ctx context.Context, ratings models.MoodRatings, date string) error {
	for _, rating := range []int{ratings.Happiness, ratings.Focus, ratings.Stress} {
		if rating < 0 || rating > 5 {
			return ErrInvalidRating
		}
	}

	today, err := e.ensureToday(ctx)
	if err != nil {
		return err
	}
	if date == "" {
		date = today
	}
	if e.IsDateReadOnly(date) {
		return ErrPastDateImmutable
	}

	err = e.mutate(ctx,
		func() func() {
			e.mu.Lock()
			defer e.mu.Unlock()

			entry, ok := e.entries[date]
			if !ok {
				return nil
			}

			prior := entry.MoodEntry
			entry.MoodEntry = &models.MoodEntry{
				Date:      date,
				Happiness: ratings.Happiness,
				Focus:     ratings.Focus,
				Stress:    ratings.Stress,
			}

			return func() {
				e.mu.Lock()
				defer e.mu.Unlock()
				if entry, ok := e.entries[date]; ok {
					entry.MoodEntry = prior
				}
			}
		},
		func(ctx context.Context) error {
			var lastErr error
			delay := e.retryBase
			for attempt := 1; attempt <= moodRetryAttempts; attempt++ {
				if attempt > 1 {
					if err := e.sleep(ctx, delay); err != nil {
						return err
					}
					delay *= 2
					if e.IsDateReadOnly(date) {
						return ErrPastDateImmutable
					}
				}

				lastErr = e.service.WriteMoodRating(ctx, date, ratings)
				if lastErr == nil {
					return nil
				}
			}
			return &WriteFailure{Op: "save mood", Attempts: moodRetryAttempts, Err: lastErr}
		},
	)
	if err != nil {
		return err
	}

	e.invalidateAndReload(ctx, date)
	return nil
}

// AddGratitude writes a gratitude entry for a date; an empty date targets
// today. The server assigns the id, so there is no optimistic local insert;
// the new entry lands through the re-aggregation.
func (e *Engine) AddGratitude(ctx context.Context, text, date string) (*models.GratitudeEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyGratitude
	}

	today, err := e.ensureToday(ctx)
	if err != nil {
		return nil, err
	}
	if date == "" {
		date = today
	}
	if e.IsDateReadOnly(date) {
		return nil, ErrPastDateImmutable
	}

	entry, err := e.service.AddGratitude(ctx, date, strings.TrimSpace(text))
	if err != nil {
		return nil, &WriteFailure{Op: "add gratitude", Attempts: 1, Err: err}
	}

	e.invalidateAndReload(ctx, date)
	return entry, nil
}

// CreateHabit creates a habit and refreshes the current view.
func (e *Engine) CreateHabit(ctx context.Context, name string) (*models.Habit, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 50 {
		return nil, ErrInvalidHabitName
	}

	habit, err := e.service.CreateHabit(ctx, name)
	if err != nil {
		return nil, &WriteFailure{Op: "create habit", Attempts: 1, Err: err}
	}

	e.reloadCurrent(ctx)
	return habit, nil
}

// RenameHabit renames a habit and refreshes the current view.
func (e *Engine) RenameHabit(ctx context.Context, habitID int, name string) (*models.Habit, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 50 {
		return nil, ErrInvalidHabitName
	}

	habit, err := e.service.UpdateHabit(ctx, habitID, client.HabitUpdate{Name: &name})
	if err != nil {
		return nil, &WriteFailure{Op: "rename habit", Attempts: 1, Err: err}
	}

	e.reloadCurrent(ctx)
	return habit, nil
}

// SetHabitFavorite toggles the favorite flag. The three-favorites limit is
// enforced here, before the network, like rating validation.
func (e *Engine) SetHabitFavorite(ctx context.Context, habitID int, favorite bool) (*models.Habit, error) {
	if favorite {
		e.mu.Lock()
		favorites := 0
		for _, habit := range e.habits {
			if habit.IsFavorite && habit.ID != habitID {
				favorites++
			}
		}
		e.mu.Unlock()
		if favorites >= models.MaxFavoriteHabits {
			return nil, ErrTooManyFavorites
		}
	}

	habit, err := e.service.UpdateHabit(ctx, habitID, client.HabitUpdate{IsFavorite: &favorite})
	if err != nil {
		return nil, &WriteFailure{Op: "set habit favorite", Attempts: 1, Err: err}
	}

	e.reloadCurrent(ctx)
	return habit, nil
}

// SetHabitActive activates or deactivates a habit. Historical completions
// of a deactivated habit remain valid.
func (e *Engine) SetHabitActive(ctx context.Context, habitID int, active bool) (*models.Habit, error) {
	habit, err := e.service.UpdateHabit(ctx, habitID, client.HabitUpdate{IsActive: &active})
	if err != nil {
		return nil, &WriteFailure{Op: "set habit active", Attempts: 1, Err: err}
	}

	e.reloadCurrent(ctx)
	return habit, nil
}

// DeleteHabit removes a habit from future visibility. Calendar entries for
// past dates keep its historical completions.
func (e *Engine) DeleteHabit(ctx context.Context, habitID int) error {
	if err := e.service.DeleteHabit(ctx, habitID); err != nil {
		return &WriteFailure{Op: "delete habit", Attempts: 1, Err: err}
	}

	e.reloadCurrent(ctx)
	return nil
}

// invalidateAndReload invalidates the cached aggregate for the month
// containing date, notifies subscribers, and re-runs the aggregator. The
// invalidation strictly precedes the refetch so the re-aggregation always
// observes the mutation's effects.
func (e *Engine) invalidateAndReload(ctx context.Context, date string) {
	monthLabel, err := utils.MonthLabelOf(date)
	if err != nil {
		return
	}

	_ = e.cache.Invalidate(ctx, monthCacheKey(monthLabel))
	e.notifyInvalidated(monthLabel)

	first, err := time.Parse("2006-01", monthLabel)
	if err != nil {
		return
	}
	if _, err := e.LoadMonth(ctx, first); err != nil {
		// The mutation itself succeeded; a failed refresh only delays the
		// server-computed fields until the next aggregation.
		log.Printf("Re-aggregation after mutation failed: %v", err)
	}
}

// reloadCurrent refreshes the currently loaded month, if any, after a habit
// list change.
func (e *Engine) reloadCurrent(ctx context.Context) {
	e.mu.Lock()
	month := e.currentMonth
	e.mu.Unlock()
	if month == "" {
		return
	}
	e.invalidateAndReload(ctx, month+"-01")
}
