package engine

import (
	"time"

	"github.com/jghoshh/momentum/models"
)

// statsWindowDays is the trailing window, ending today, over which the
// monthly completion percentage is computed.
const statsWindowDays = 30

// ComputeStats derives tracking statistics from already-loaded habit and
// completion state. It is a pure function: no network access, no engine
// state. completions maps date -> habit id -> completed mark.
//
// The monthly completion denominator counts only active days, i.e. days in
// the window with at least one completed mark; days with zero activity do
// not dilute the rate. A user with one habit completed on 10 of the last 30
// days therefore scores 100%, not 33%. With zero habits or zero active days
// every statistic is 0.
func ComputeStats(habits []models.Habit, completions map[string]map[int]bool, today string) models.TrackingStats {
	stats := models.TrackingStats{
		TotalHabits: len(habits),
	}

	for _, habit := range habits {
		if habit.Streak > stats.CurrentStreak {
			stats.CurrentStreak = habit.Streak
		}
	}

	for _, habit := range habits {
		if completions[today][habit.ID] {
			stats.HabitsCompletedToday++
		}
	}

	if len(habits) == 0 {
		return stats
	}

	end, err := time.Parse(models.DateFormat, today)
	if err != nil {
		return stats
	}
	start := end.AddDate(0, 0, -(statsWindowDays - 1))

	activeDays := 0
	completedMarks := 0
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		marks := completions[day.Format(models.DateFormat)]
		dayMarks := 0
		for _, completed := range marks {
			if completed {
				dayMarks++
			}
		}
		if dayMarks > 0 {
			activeDays++
			completedMarks += dayMarks
		}
	}

	stats.DaysTracked = activeDays
	if activeDays > 0 {
		stats.MonthlyCompletion = float64(completedMarks) / float64(activeDays*len(habits)) * 100
	}
	return stats
}

// CalculateStats computes the statistics block over the engine's loaded
// state. Before the clock has resolved it returns the zero block.
func (e *Engine) CalculateStats() models.TrackingStats {
	today, ok := e.clock.CurrentDate()
	if !ok {
		return models.TrackingStats{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return ComputeStats(e.habits, e.completions, today)
}
