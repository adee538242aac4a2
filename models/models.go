package models

import (
    "time"
)

// DateFormat is the canonical layout for calendar dates across the engine.
// Dates are passed around as plain strings in this form so that lexicographic
// comparison matches chronological comparison.
const DateFormat = "2006-01-02"

// MaxFavoriteHabits is the maximum number of habits a user may mark as favorite at once.
const MaxFavoriteHabits = 3

// Habit represents a tracked habit. The streak field is computed by the server
// as the count of consecutive completed days; the engine consumes it and never
// recomputes it locally.
type Habit struct {
    ID         int       `json:"id"`
    Name       string    `json:"name"`
    Streak     int       `json:"streak"`
    IsFavorite bool      `json:"is_favorite"`
    CreatedAt  time.Time `json:"created_at"`
    IsActive   bool      `json:"is_active"`
}

// HabitCompletion records whether a habit was completed on a particular date.
// The pair (HabitID, Date) identifies the record. WasActiveOnDate is a
// historical snapshot: it stays true for dates on which the habit existed even
// after the habit itself has been deactivated or deleted.
type HabitCompletion struct {
    HabitID         int        `json:"habit_id"`
    HabitName       string     `json:"habit_name"`
    Date            string     `json:"date"`
    Completed       bool       `json:"completed"`
    CompletedAt     *time.Time `json:"completed_at,omitempty"`
    WasActiveOnDate bool       `json:"was_active_on_date"`
}

// MoodEntry holds the three mood ratings for a single date. Each rating is an
// integer in [0,5] where 0 means unset.
type MoodEntry struct {
    Date      string `json:"date"`
    Happiness int    `json:"happiness"`
    Focus     int    `json:"focus"`
    Stress    int    `json:"stress"`
}

// MoodScore returns the overall mood on a 0-10 scale. Stress is inverted
// before averaging so that low stress raises the score.
func (m MoodEntry) MoodScore() float64 {
    return (float64(m.Happiness+m.Focus+(6-m.Stress)) / 3.0) * 2.0
}

// MoodLevel is the three-way classification derived from MoodScore.
type MoodLevel string

const (
    MoodGood    MoodLevel = "good"
    MoodNeutral MoodLevel = "neutral"
    MoodPoor    MoodLevel = "poor"
)

// ClassifyMood maps an overall mood score to its level: good at 7 and above,
// neutral at 5 and above, poor below that.
func ClassifyMood(score float64) MoodLevel {
    switch {
    case score >= 7:
        return MoodGood
    case score >= 5:
        return MoodNeutral
    default:
        return MoodPoor
    }
}

// Level is a convenience combining MoodScore and ClassifyMood.
func (m MoodEntry) Level() MoodLevel {
    return ClassifyMood(m.MoodScore())
}

// HasRatings reports whether any of the three ratings has been set.
func (m MoodEntry) HasRatings() bool {
    return m.Happiness > 0 || m.Focus > 0 || m.Stress > 0
}

// GoalActivityType enumerates the kinds of goal activity the goals service reports.
type GoalActivityType string

const (
    GoalCreated        GoalActivityType = "created"
    GoalCompleted      GoalActivityType = "completed"
    GoalProgressUpdate GoalActivityType = "progress_update"
)

// GoalType enumerates how a goal measures progress.
type GoalType string

const (
    GoalTypePercentage GoalType = "percentage"
    GoalTypeCounter    GoalType = "counter"
    GoalTypeChecklist  GoalType = "checklist"
)

// GoalActivity is a read-only projection of goal events consumed from the
// goals service. The engine aggregates these for display and never writes
// them back.
type GoalActivity struct {
    GoalID        int              `json:"goal_id"`
    GoalName      string           `json:"goal_name"`
    ActivityType  GoalActivityType `json:"activity_type"`
    ProgressValue *float64         `json:"progress_value,omitempty"`
    PreviousValue *float64         `json:"previous_value,omitempty"`
    TargetValue   *float64         `json:"target_value,omitempty"`
    GoalType      GoalType         `json:"goal_type,omitempty"`
}

// GratitudeEntry is a short free-text record attached to a date.
type GratitudeEntry struct {
    ID        int       `json:"id"`
    Text      string    `json:"text"`
    Date      string    `json:"date"`
    CreatedAt time.Time `json:"created_at"`
}

// RawDashboardRecord is the per-date payload returned by the dashboard
// service before aggregation. Habit completions carry the habit name as it
// was at the time, which lets the aggregator reconstruct habits that have
// since been deleted.
type RawDashboardRecord struct {
    Date             string            `json:"date"`
    Happiness        int               `json:"happiness"`
    Focus            int               `json:"focus"`
    Stress           int               `json:"stress"`
    HabitCompletions []HabitCompletion `json:"habit_completions"`
    GoalActivities   []GoalActivity    `json:"goal_activities"`
    Gratitudes       []GratitudeEntry  `json:"gratitudes"`
}

// DailyCalendarEntry is the aggregated view of a single calendar date. It is
// rebuilt from scratch on every aggregation pass; only the mutation
// controller may touch an entry in place, and only its MoodEntry or
// HabitCompletions fields.
type DailyCalendarEntry struct {
    Date             string            `json:"date"`
    IsLocked         bool              `json:"is_locked"`
    MoodEntry        *MoodEntry        `json:"mood_entry,omitempty"`
    HabitCompletions []HabitCompletion `json:"habit_completions"`
    GoalActivities   []GoalActivity    `json:"goal_activities"`
    Gratitudes       []GratitudeEntry  `json:"gratitudes"`
}

// CompletionFor returns the completion record for the given habit id, or nil
// if the entry has none.
func (e *DailyCalendarEntry) CompletionFor(habitID int) *HabitCompletion {
    for i := range e.HabitCompletions {
        if e.HabitCompletions[i].HabitID == habitID {
            return &e.HabitCompletions[i]
        }
    }
    return nil
}

// TrackingStats is the derived statistics block computed by the stats engine
// from already-loaded habit and completion state.
type TrackingStats struct {
    CurrentStreak        int     `json:"current_streak"`
    HabitsCompletedToday int     `json:"habits_completed_today"`
    TotalHabits          int     `json:"total_habits"`
    MonthlyCompletion    float64 `json:"monthly_completion"`
    DaysTracked          int     `json:"days_tracked"`
}

// MoodRatings is the validated input to a mood save.
type MoodRatings struct {
    Happiness int `json:"happiness"`
    Focus     int `json:"focus"`
    Stress    int `json:"stress"`
}
