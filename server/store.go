package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jghoshh/momentum/models"
)

// Store is the in-memory state behind the stub tracker API. It mirrors the
// behavior the real backend guarantees: server-side streak recomputation on
// completion writes, the three-favorites limit, and habit deletion that
// leaves historical completion records untouched.
type Store struct {
	mu sync.Mutex

	today       string
	habits      map[int]*models.Habit
	nextHabitID int
	// completions is keyed by date, then habit id. Records keep the habit
	// name as it was when written, so deleted habits stay reconstructable.
	completions map[string]map[int]*models.HabitCompletion
	moods       map[string]models.MoodEntry
	gratitudes  map[string][]models.GratitudeEntry
	nextGratID  int
	goals       map[string][]models.GoalActivity
}

// NewStore creates an empty Store whose authoritative date is today in UTC.
func NewStore() *Store {
	return &Store{
		today:       time.Now().UTC().Format(models.DateFormat),
		habits:      make(map[int]*models.Habit),
		nextHabitID: 1,
		completions: make(map[string]map[int]*models.HabitCompletion),
		moods:       make(map[string]models.MoodEntry),
		gratitudes:  make(map[string][]models.GratitudeEntry),
		nextGratID:  1,
		goals:       make(map[string][]models.GoalActivity),
	}
}

// SetToday overrides the authoritative date. Intended for tests and demos.
func (s *Store) SetToday(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.today = date
}

// Today returns the authoritative date.
func (s *Store) Today() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.today
}

// Habits returns the current habit list sorted by id.
func (s *Store) Habits() []models.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()

	habits := make([]models.Habit, 0, len(s.habits))
	for id := 1; id < s.nextHabitID; id++ {
		if habit, ok := s.habits[id]; ok {
			habits = append(habits, *habit)
		}
	}
	return habits
}

// CreateHabit adds a habit and returns the stored record.
func (s *Store) CreateHabit(name string) (models.Habit, error) {
	name = strings.TrimSpace(name)
	if len(name) < 1 || len(name) > 50 {
		return models.Habit{}, fmt.Errorf("habit name must be 1-50 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	habit := &models.Habit{
		ID:        s.nextHabitID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	}
	s.habits[habit.ID] = habit
	s.nextHabitID++
	return *habit, nil
}

// UpdateHabit applies a partial update. Nil fields are left unchanged.
// Marking a fourth favorite fails.
func (s *Store) UpdateHabit(id int, name *string, isFavorite, isActive *bool) (models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[id]
	if !ok {
		return models.Habit{}, fmt.Errorf("habit %d not found", id)
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if len(trimmed) < 1 || len(trimmed) > 50 {
			return models.Habit{}, fmt.Errorf("habit name must be 1-50 characters")
		}
		habit.Name = trimmed
	}
	if isFavorite != nil {
		if *isFavorite && !habit.IsFavorite {
			favorites := 0
			for _, h := range s.habits {
				if h.IsFavorite {
					favorites++
				}
			}
			if favorites >= models.MaxFavoriteHabits {
				return models.Habit{}, fmt.Errorf("at most %d habits may be favorites", models.MaxFavoriteHabits)
			}
		}
		habit.IsFavorite = *isFavorite
	}
	if isActive != nil {
		habit.IsActive = *isActive
	}
	return *habit, nil
}

// DeleteHabit removes a habit from future visibility. Historical completion
// records keep their name snapshots.
func (s *Store) DeleteHabit(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[id]; !ok {
		return fmt.Errorf("habit %d not found", id)
	}
	delete(s.habits, id)
	return nil
}

// WriteCompletion records the completion state of a habit on a date and
// recomputes the habit's streak, which is a server responsibility.
func (s *Store) WriteCompletion(habitID int, date string, completed bool) error {
	if _, err := time.Parse(models.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q", date)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	habit, ok := s.habits[habitID]
	if !ok {
		return fmt.Errorf("habit %d not found", habitID)
	}

	byHabit, ok := s.completions[date]
	if !ok {
		byHabit = make(map[int]*models.HabitCompletion)
		s.completions[date] = byHabit
	}

	record := &models.HabitCompletion{
		HabitID:         habitID,
		HabitName:       habit.Name,
		Date:            date,
		Completed:       completed,
		WasActiveOnDate: true,
	}
	if completed {
		now := time.Now().UTC()
		record.CompletedAt = &now
	}
	byHabit[habitID] = record

	habit.Streak = s.streakLocked(habitID)
	return nil
}

// streakLocked counts consecutive completed days ending at today, or at
// yesterday when today is not completed yet. Callers must hold s.mu.
func (s *Store) streakLocked(habitID int) int {
	day, err := time.Parse(models.DateFormat, s.today)
	if err != nil {
		return 0
	}

	completedOn := func(t time.Time) bool {
		byHabit, ok := s.completions[t.Format(models.DateFormat)]
		if !ok {
			return false
		}
		record, ok := byHabit[habitID]
		return ok && record.Completed
	}

	if !completedOn(day) {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for completedOn(day) {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// WriteMood stores the mood ratings for a date, overwriting any prior entry.
func (s *Store) WriteMood(date string, ratings models.MoodRatings) error {
	if _, err := time.Parse(models.DateFormat, date); err != nil {
		return fmt.Errorf("invalid date %q", date)
	}
	for _, rating := range []int{ratings.Happiness, ratings.Focus, ratings.Stress} {
		if rating < 0 || rating > 5 {
			return fmt.Errorf("ratings must be between 0 and 5")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.moods[date] = models.MoodEntry{
		Date:      date,
		Happiness: ratings.Happiness,
		Focus:     ratings.Focus,
		Stress:    ratings.Stress,
	}
	return nil
}

// AddGratitude appends a gratitude entry to a date.
func (s *Store) AddGratitude(date, text string) (models.GratitudeEntry, error) {
	if _, err := time.Parse(models.DateFormat, date); err != nil {
		return models.GratitudeEntry{}, fmt.Errorf("invalid date %q", date)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return models.GratitudeEntry{}, fmt.Errorf("gratitude text must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.GratitudeEntry{
		ID:        s.nextGratID,
		Text:      text,
		Date:      date,
		CreatedAt: time.Now().UTC(),
	}
	s.nextGratID++
	s.gratitudes[date] = append(s.gratitudes[date], entry)
	return entry, nil
}

// AddGoalActivity records a goal event on a date. The stub exposes no write
// endpoint for goals; tests and demos seed activity directly.
func (s *Store) AddGoalActivity(date string, activity models.GoalActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[date] = append(s.goals[date], activity)
}

// DashboardMonth builds the raw per-date records for a YYYY-MM month label.
// Only dates with at least one piece of data appear in the result.
func (s *Store) DashboardMonth(monthLabel string) (map[string]models.RawDashboardRecord, error) {
	if _, err := time.Parse("2006-01", monthLabel); err != nil {
		return nil, fmt.Errorf("invalid month %q (expected YYYY-MM)", monthLabel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]models.RawDashboardRecord)
	prefix := monthLabel + "-"

	touch := func(date string) models.RawDashboardRecord {
		if record, ok := records[date]; ok {
			return record
		}
		return models.RawDashboardRecord{Date: date}
	}

	for date, byHabit := range s.completions {
		if !strings.HasPrefix(date, prefix) {
			continue
		}
		record := touch(date)
		for id := 1; id < s.nextHabitID; id++ {
			if completion, ok := byHabit[id]; ok {
				record.HabitCompletions = append(record.HabitCompletions, *completion)
			}
		}
		records[date] = record
	}
	for date, mood := range s.moods {
		if !strings.HasPrefix(date, prefix) {
			continue
		}
		record := touch(date)
		record.Happiness = mood.Happiness
		record.Focus = mood.Focus
		record.Stress = mood.Stress
		records[date] = record
	}
	for date, entries := range s.gratitudes {
		if !strings.HasPrefix(date, prefix) {
			continue
		}
		record := touch(date)
		record.Gratitudes = append(record.Gratitudes, entries...)
		records[date] = record
	}
	for date, activities := range s.goals {
		if !strings.HasPrefix(date, prefix) {
			continue
		}
		record := touch(date)
		record.GoalActivities = append(record.GoalActivities, activities...)
		records[date] = record
	}

	return records, nil
}
