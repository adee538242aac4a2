package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jghoshh/momentum/client"
	"github.com/jghoshh/momentum/clock"
	"github.com/jghoshh/momentum/models"
	storage "github.com/jghoshh/momentum/storage/cache"
)

// fakeService is a scripted in-memory Service double. Tests seed its habit
// list and dashboard records, inject failures, and inspect the writes the
// engine issued.
type fakeService struct {
	mu sync.Mutex

	habits  []models.Habit
	records map[string]map[string]models.RawDashboardRecord // month -> date -> record

	habitsErr  error
	recordsErr error
	// completionFailures fails that many completion writes before
	// succeeding again; moodFailures likewise for mood writes.
	completionFailures int
	moodFailures       int

	fetchHabitsCalls    int
	fetchDashboardCalls int
	completionWrites    []completionWrite
	moodWrites          []moodWrite
	nextGratitudeID     int
}

type completionWrite struct {
	habitID   int
	date      string
	completed bool
}

type moodWrite struct {
	date    string
	ratings models.MoodRatings
}

func newFakeService() *fakeService {
	return &fakeService{
		records:         make(map[string]map[string]models.RawDashboardRecord),
		nextGratitudeID: 1,
	}
}

func (f *fakeService) setRecord(date string, record models.RawDashboardRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	month := date[:7]
	if f.records[month] == nil {
		f.records[month] = make(map[string]models.RawDashboardRecord)
	}
	record.Date = date
	f.records[month][date] = record
}

func (f *fakeService) FetchHabits(ctx context.Context) ([]models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchHabitsCalls++
	if f.habitsErr != nil {
		return nil, f.habitsErr
	}
	habits := make([]models.Habit, len(f.habits))
	copy(habits, f.habits)
	return habits, nil
}

func (f *fakeService) FetchDashboardEntries(ctx context.Context, monthLabel string) (map[string]models.RawDashboardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchDashboardCalls++
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	out := make(map[string]models.RawDashboardRecord)
	for date, record := range f.records[monthLabel] {
		out[date] = record
	}
	return out, nil
}

// recordFor returns the mutable dashboard record for a date. Callers must
// hold f.mu.
func (f *fakeService) recordFor(date string) *models.RawDashboardRecord {
	month := date[:7]
	if f.records[month] == nil {
		f.records[month] = make(map[string]models.RawDashboardRecord)
	}
	record := f.records[month][date]
	record.Date = date
	f.records[month][date] = record
	stored := f.records[month][date]
	return &stored
}

func (f *fakeService) storeRecord(record *models.RawDashboardRecord) {
	f.records[record.Date[:7]][record.Date] = *record
}

func (f *fakeService) WriteHabitCompletion(ctx context.Context, habitID int, date string, completed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completionFailures > 0 {
		f.completionFailures--
		return fmt.Errorf("completion write rejected")
	}
	f.completionWrites = append(f.completionWrites, completionWrite{habitID, date, completed})

	// Persist the write so re-aggregations observe it, like the real API.
	name := ""
	for _, habit := range f.habits {
		if habit.ID == habitID {
			name = habit.Name
		}
	}
	record := f.recordFor(date)
	updated := false
	for i := range record.HabitCompletions {
		if record.HabitCompletions[i].HabitID == habitID {
			record.HabitCompletions[i].Completed = completed
			updated = true
		}
	}
	if !updated {
		record.HabitCompletions = append(record.HabitCompletions, models.HabitCompletion{
			HabitID:         habitID,
			HabitName:       name,
			Date:            date,
			Completed:       completed,
			WasActiveOnDate: true,
		})
	}
	f.storeRecord(record)
	return nil
}

func (f *fakeService) WriteMoodRating(ctx context.Context, date string, ratings models.MoodRatings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moodFailures > 0 {
		f.moodFailures--
		return fmt.Errorf("mood write rejected")
	}
	f.moodWrites = append(f.moodWrites, moodWrite{date, ratings})

	record := f.recordFor(date)
	record.Happiness = ratings.Happiness
	record.Focus = ratings.Focus
	record.Stress = ratings.Stress
	f.storeRecord(record)
	return nil
}

func (f *fakeService) AddGratitude(ctx context.Context, date, text string) (*models.GratitudeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := &models.GratitudeEntry{
		ID:        f.nextGratitudeID,
		Text:      text,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	f.nextGratitudeID++
	return entry, nil
}

func (f *fakeService) CreateHabit(ctx context.Context, name string) (*models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	habit := models.Habit{ID: len(f.habits) + 1, Name: name, IsActive: true}
	f.habits = append(f.habits, habit)
	return &habit, nil
}

func (f *fakeService) UpdateHabit(ctx context.Context, habitID int, update client.HabitUpdate) (*models.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.habits {
		if f.habits[i].ID == habitID {
			if update.Name != nil {
				f.habits[i].Name = *update.Name
			}
			if update.IsFavorite != nil {
				f.habits[i].IsFavorite = *update.IsFavorite
			}
			if update.IsActive != nil {
				f.habits[i].IsActive = *update.IsActive
			}
			habit := f.habits[i]
			return &habit, nil
		}
	}
	return nil, fmt.Errorf("habit %d not found", habitID)
}

func (f *fakeService) DeleteHabit(ctx context.Context, habitID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.habits {
		if f.habits[i].ID == habitID {
			f.habits = append(f.habits[:i], f.habits[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("habit %d not found", habitID)
}

func (f *fakeService) completionWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.completionWrites)
}

func (f *fakeService) moodWriteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moodWrites)
}

// testToday is the pinned authoritative date used across the engine tests.
const testToday = "2023-08-14"

// newTestEngine wires an engine over a fake service, a pinned clock, and a
// small memory cache, with instantaneous backoff sleeps.
func newTestEngine(service *fakeService) (*Engine, *clock.Adapter) {
	adapter := clock.NewFixedAdapter(testToday)
	cache := storage.NewMemoryCache(8)
	e := New(service, adapter, cache, time.Minute)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e, adapter
}

// clockNotReady returns an adapter whose provider never resolves.
func clockNotReady() *clock.Adapter {
	return clock.NewAdapter(clock.ProviderFunc(func(ctx context.Context) (string, error) {
		return clock.LoadingSentinel, nil
	}))
}

// seedHabit returns a habit created well before the test dates.
func seedHabit(id int, name string, streak int) models.Habit {
	return models.Habit{
		ID:        id,
		Name:      name,
		Streak:    streak,
		CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func loadAugust(e *Engine) (map[string]*models.DailyCalendarEntry, error) {
	return e.LoadMonth(context.Background(), time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC))
}
