package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/lib/utils"
	"github.com/jghoshh/momentum/models"
	storage "github.com/jghoshh/momentum/storage/cache"
)

// cachedMonth is the payload stored in the cache per aggregated month. The
// habit list travels with the entries so a cache hit restores both.
type cachedMonth struct {
	Habits  []models.Habit                        `json:"habits"`
	Entries map[string]*models.DailyCalendarEntry `json:"entries"`
}

// monthCacheKey builds the cache key for a month aggregate.
func monthCacheKey(monthLabel string) string {
	return storage.Key("month", monthLabel, "all")
}

// LoadMonth aggregates the calendar entries for the month containing
// monthDate: one DailyCalendarEntry per calendar day, first through last,
// with no adjacent-month padding. Results are served from the cache when a
// fresh aggregate exists; on a miss the habit list and the raw dashboard
// records are fetched concurrently, joined, and merged.
//
// If the fetch fails, the previously aggregated entries for the month are
// returned alongside an *AggregationFailure so the caller can keep showing
// stale-but-available data. If a newer LoadMonth was issued while this one
// was in flight, the result is still returned but does not overwrite the
// engine's current view.
func (e *Engine) LoadMonth(ctx context.Context, monthDate time.Time) (map[string]*models.DailyCalendarEntry, error) {
	if _, err := e.clock.Ensure(ctx); err != nil {
		if errors.Is(err, clock.ErrNotReady) {
			return nil, ErrClockNotReady
		}
		return nil, err
	}

	monthLabel := utils.MonthLabel(monthDate)

	// Tag this request so a result that resolves after the user has moved
	// on to another month is discarded instead of overwriting their view.
	e.mu.Lock()
	e.loadSeq++
	seq := e.loadSeq
	e.mu.Unlock()

	cacheKey := monthCacheKey(monthLabel)
	if payload, ok := e.cache.Get(ctx, cacheKey); ok {
		var cached cachedMonth
		if err := json.Unmarshal(payload, &cached); err == nil && cached.Entries != nil {
			e.refreshLocks(cached.Entries)
			e.install(seq, monthLabel, cached.Habits, cached.Entries)
			return cached.Entries, nil
		}
		// A payload that does not decode is corruption: treat as a miss
		// and fall through to the source of truth.
		_ = e.cache.Invalidate(ctx, cacheKey)
	}

	habits, records, err := e.fetchMonth(ctx, monthLabel)
	if err != nil {
		return e.staleEntries(monthLabel), &AggregationFailure{Month: monthLabel, Err: err}
	}

	entries := e.buildEntries(utils.MonthRange(monthDate), habits, records)

	if payload, err := json.Marshal(cachedMonth{Habits: habits, Entries: entries}); err == nil {
		_ = e.cache.Set(ctx, cacheKey, payload, e.ttl)
	}

	e.install(seq, monthLabel, habits, entries)
	return entries, nil
}

// fetchMonth fetches the habit list and the raw dashboard records
// concurrently and joins both before returning.
func (e *Engine) fetchMonth(ctx context.Context, monthLabel string) ([]models.Habit, map[string]models.RawDashboardRecord, error) {
	var (
		wg         sync.WaitGroup
		habits     []models.Habit
		records    map[string]models.RawDashboardRecord
		habitsErr  error
		recordsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		habits, habitsErr = e.service.FetchHabits(ctx)
	}()
	go func() {
		defer wg.Done()
		records, recordsErr = e.service.FetchDashboardEntries(ctx, monthLabel)
	}()
	wg.Wait()

	if habitsErr != nil {
		return nil, nil, habitsErr
	}
	if recordsErr != nil {
		return nil, nil, recordsErr
	}
	return habits, records, nil
}

// buildEntries constructs one DailyCalendarEntry per date. Every known habit
// contributes a completion record on every date; raw records overlay the
// actual completion state, and raw records for habits that no longer exist
// are kept as stubs under their historical names.
func (e *Engine) buildEntries(dates []string, habits []models.Habit, records map[string]models.RawDashboardRecord) map[string]*models.DailyCalendarEntry {
	known := make(map[int]models.Habit, len(habits))
	ordered := make([]models.Habit, len(habits))
	copy(ordered, habits)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	for _, habit := range ordered {
		known[habit.ID] = habit
	}

	entries := make(map[string]*models.DailyCalendarEntry, len(dates))
	for _, date := range dates {
		entry := &models.DailyCalendarEntry{
			Date:     date,
			IsLocked: e.clock.IsPast(date),
		}

		raw, hasRaw := records[date]

		if hasRaw {
			mood := models.MoodEntry{
				Date:      date,
				Happiness: raw.Happiness,
				Focus:     raw.Focus,
				Stress:    raw.Stress,
			}
			if mood.HasRatings() {
				entry.MoodEntry = &mood
			}
		}

		// One completion per known habit, default uncompleted. A habit
		// created after this date was not active on it.
		completionIdx := make(map[int]int, len(ordered))
		for _, habit := range ordered {
			completionIdx[habit.ID] = len(entry.HabitCompletions)
			entry.HabitCompletions = append(entry.HabitCompletions, models.HabitCompletion{
				HabitID:         habit.ID,
				HabitName:       habit.Name,
				Date:            date,
				WasActiveOnDate: habit.IsActive && utils.FormatDate(habit.CreatedAt) <= date,
			})
		}

		if hasRaw {
			for _, raw := range raw.HabitCompletions {
				if idx, ok := completionIdx[raw.HabitID]; ok {
					// Known habit: keep its current name and active
					// context, take state from the raw record.
					completion := &entry.HabitCompletions[idx]
					completion.Completed = raw.Completed
					completion.CompletedAt = raw.CompletedAt
					completion.WasActiveOnDate = raw.WasActiveOnDate
				} else {
					// Habit deleted since: synthesize a stub under the
					// historical name captured in the raw record.
					entry.HabitCompletions = append(entry.HabitCompletions, models.HabitCompletion{
						HabitID:         raw.HabitID,
						HabitName:       raw.HabitName,
						Date:            date,
						Completed:       raw.Completed,
						CompletedAt:     raw.CompletedAt,
						WasActiveOnDate: raw.WasActiveOnDate,
					})
				}
			}

			entry.Gratitudes = append(entry.Gratitudes, raw.Gratitudes...)
			entry.GoalActivities = append(entry.GoalActivities, raw.GoalActivities...)
		}

		entries[date] = entry
	}
	return entries
}

// refreshLocks recomputes the IsLocked flag of cached entries against the
// current authoritative date. A cached aggregate may straddle a midnight
// rollover within its TTL.
func (e *Engine) refreshLocks(entries map[string]*models.DailyCalendarEntry) {
	for date, entry := range entries {
		entry.IsLocked = e.clock.IsPast(date)
	}
}

// install makes the aggregated month the engine's current view and reindexes
// its completed marks for the stats engine. Results from superseded requests
// are dropped.
func (e *Engine) install(seq uint64, monthLabel string, habits []models.Habit, entries map[string]*models.DailyCalendarEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.loadSeq {
		return
	}

	e.currentMonth = monthLabel
	e.habits = habits
	e.entries = entries

	for date, entry := range entries {
		delete(e.completions, date)
		for _, completion := range entry.HabitCompletions {
			if completion.Completed {
				if e.completions[date] == nil {
					e.completions[date] = make(map[int]bool)
				}
				e.completions[date][completion.HabitID] = true
			}
		}
	}
}

// staleEntries returns the last successfully aggregated entries for the
// month, or nil if the month was never loaded.
func (e *Engine) staleEntries(monthLabel string) map[string]*models.DailyCalendarEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.currentMonth != monthLabel {
		return nil
	}
	return e.entries
}
