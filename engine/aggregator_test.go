package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/models"
	storage "github.com/jghoshh/momentum/storage/cache"
	"github.com/stretchr/testify/assert"
)

func TestLoadMonthBuildsOneEntryPerCalendarDay(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(1, "Meditate", 0)}
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Len(t, entries, 31)
	assert.Contains(t, entries, "2023-08-01")
	assert.Contains(t, entries, "2023-08-31")
	assert.NotContains(t, entries, "2023-07-31")
	assert.NotContains(t, entries, "2023-09-01")

	// Every date carries a completion slot for the known habit.
	entry := entries["2023-08-05"]
	assert.Len(t, entry.HabitCompletions, 1)
	assert.Equal(t, "Meditate", entry.HabitCompletions[0].HabitName)
	assert.False(t, entry.HabitCompletions[0].Completed)
}

func TestLoadMonthLocksPastDatesOnly(t *testing.T) {
	service := newFakeService()
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)

	assert.True(t, entries["2023-08-13"].IsLocked)
	assert.False(t, entries[testToday].IsLocked)
	assert.False(t, entries["2023-08-15"].IsLocked)
}

func TestLoadMonthPopulatesMoodOnlyWhenRated(t *testing.T) {
	service := newFakeService()
	service.setRecord("2023-08-10", models.RawDashboardRecord{Happiness: 4, Focus: 3, Stress: 2})
	service.setRecord("2023-08-11", models.RawDashboardRecord{})
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)

	rated := entries["2023-08-10"]
	assert.NotNil(t, rated.MoodEntry)
	assert.Equal(t, 4, rated.MoodEntry.Happiness)
	assert.Equal(t, models.MoodGood, rated.MoodEntry.Level())

	assert.Nil(t, entries["2023-08-11"].MoodEntry)
	assert.Nil(t, entries["2023-08-12"].MoodEntry)
}

func TestLoadMonthResolvesCompletionsAgainstCurrentHabits(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(1, "Meditate (renamed)", 2)}
	completedAt := time.Date(2023, 8, 10, 9, 0, 0, 0, time.UTC)
	service.setRecord("2023-08-10", models.RawDashboardRecord{
		HabitCompletions: []models.HabitCompletion{{
			HabitID:         1,
			HabitName:       "Meditate",
			Date:            "2023-08-10",
			Completed:       true,
			CompletedAt:     &completedAt,
			WasActiveOnDate: true,
		}},
	})
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)

	completion := entries["2023-08-10"].CompletionFor(1)
	assert.NotNil(t, completion)
	assert.True(t, completion.Completed)
	// Known habit keeps its current name, not the historical snapshot.
	assert.Equal(t, "Meditate (renamed)", completion.HabitName)
	assert.Equal(t, &completedAt, completion.CompletedAt)
}

func TestLoadMonthKeepsDeletedHabitsUnderHistoricalName(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(2, "Run", 0)}
	service.setRecord("2023-08-03", models.RawDashboardRecord{
		HabitCompletions: []models.HabitCompletion{{
			HabitID:         9,
			HabitName:       "Journal",
			Date:            "2023-08-03",
			Completed:       true,
			WasActiveOnDate: true,
		}},
	})
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)

	entry := entries["2023-08-03"]
	assert.Len(t, entry.HabitCompletions, 2)

	stub := entry.CompletionFor(9)
	assert.NotNil(t, stub)
	assert.Equal(t, "Journal", stub.HabitName)
	assert.True(t, stub.Completed)
	assert.True(t, stub.WasActiveOnDate)
}

func TestLoadMonthMarksHabitInactiveBeforeCreation(t *testing.T) {
	service := newFakeService()
	habit := seedHabit(1, "Stretch", 0)
	habit.CreatedAt = time.Date(2023, 8, 10, 15, 30, 0, 0, time.UTC)
	service.habits = []models.Habit{habit}
	e, _ := newTestEngine(service)

	entries, err := loadAugust(e)
	assert.NoError(t, err)

	assert.False(t, entries["2023-08-09"].CompletionFor(1).WasActiveOnDate)
	assert.True(t, entries["2023-08-10"].CompletionFor(1).WasActiveOnDate)
	assert.True(t, entries["2023-08-11"].CompletionFor(1).WasActiveOnDate)
}

func TestLoadMonthServesSecondCallFromCache(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(1, "Meditate", 0)}
	e, _ := newTestEngine(service)

	_, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Equal(t, 1, service.fetchHabitsCalls)
	assert.Equal(t, 1, service.fetchDashboardCalls)

	entries, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Len(t, entries, 31)
	assert.Equal(t, 1, service.fetchHabitsCalls)
	assert.Equal(t, 1, service.fetchDashboardCalls)

	stats := e.GetCacheStats(context.Background())
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestLoadMonthTreatsCorruptedCacheAsMiss(t *testing.T) {
	service := newFakeService()
	e, _ := newTestEngine(service)

	err := e.cache.Set(context.Background(), monthCacheKey("2023-08"), []byte("{not json"), time.Minute)
	assert.NoError(t, err)

	entries, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Len(t, entries, 31)
	assert.Equal(t, 1, service.fetchDashboardCalls)
}

func TestLoadMonthFailureRetainsLastGoodEntries(t *testing.T) {
	service := newFakeService()
	service.setRecord("2023-08-10", models.RawDashboardRecord{Happiness: 3, Focus: 3, Stress: 3})
	e, _ := newTestEngine(service)

	good, err := loadAugust(e)
	assert.NoError(t, err)

	// Invalidate the cache so the next load hits the failing fetch.
	assert.NoError(t, e.cache.Clear(context.Background()))
	service.recordsErr = errors.New("dashboard service down")

	stale, err := loadAugust(e)
	var aggErr *AggregationFailure
	assert.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "2023-08", aggErr.Month)

	// The previously aggregated view is returned, not cleared.
	assert.Equal(t, good, stale)
	assert.NotNil(t, e.GetCalendarEntryForDate("2023-08-10"))
}

func TestLoadMonthDiscardsStaleResult(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(1, "Meditate", 0)}

	adapter := clock.NewFixedAdapter(testToday)
	cache := storage.NewMemoryCache(8)
	e := New(service, adapter, cache, time.Minute)

	// Simulate July resolving after the user already navigated to August:
	// grab July's sequence tag first, let August finish, then install July
	// with the stale tag.
	e.mu.Lock()
	e.loadSeq++
	julySeq := e.loadSeq
	e.mu.Unlock()

	_, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Equal(t, "2023-08", e.CurrentMonth())

	julyEntries := e.buildEntries([]string{"2023-07-01"}, service.habits, nil)
	e.install(julySeq, "2023-07", service.habits, julyEntries)

	// The stale July result must not have overwritten the August view.
	assert.Equal(t, "2023-08", e.CurrentMonth())
	assert.NotNil(t, e.GetCalendarEntryForDate("2023-08-01"))
	assert.Nil(t, e.GetCalendarEntryForDate("2023-07-01"))
}

func TestLoadMonthRequiresResolvedClock(t *testing.T) {
	service := newFakeService()
	adapter := clock.NewAdapter(clock.ProviderFunc(func(ctx context.Context) (string, error) {
		return clock.LoadingSentinel, nil
	}))
	e := New(service, adapter, storage.NewMemoryCache(8), time.Minute)

	_, err := loadAugust(e)
	assert.ErrorIs(t, err, ErrClockNotReady)
	assert.Equal(t, 0, service.fetchDashboardCalls)
}

func TestRefreshCacheClearsAndReloads(t *testing.T) {
	service := newFakeService()
	service.habits = []models.Habit{seedHabit(1, "Meditate", 0)}
	e, _ := newTestEngine(service)

	notified := make([]string, 0, 1)
	e.Subscribe(func(month string) { notified = append(notified, month) })

	_, err := loadAugust(e)
	assert.NoError(t, err)
	assert.Equal(t, 1, service.fetchDashboardCalls)

	assert.NoError(t, e.RefreshCache(context.Background()))
	assert.Equal(t, 2, service.fetchDashboardCalls)
	assert.Equal(t, []string{"2023-08"}, notified)
}

func TestRefreshLocksAfterMidnightRollover(t *testing.T) {
	service := newFakeService()
	e, adapter := newTestEngine(service)

	_, err := loadAugust(e)
	assert.NoError(t, err)

	// The cached aggregate was built when the 14th was today; after the
	// rollover a cache hit must still lock the 14th.
	adapter.Advance("2023-08-15")
	entries, err := loadAugust(e)
	assert.NoError(t, err)
	assert.True(t, entries["2023-08-14"].IsLocked)
	assert.False(t, entries["2023-08-15"].IsLocked)
}
