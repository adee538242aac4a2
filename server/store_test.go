package server

import (
	"testing"

	"github.com/jghoshh/momentum/models"
	"github.com/stretchr/testify/assert"
)

func newTestStore() *Store {
	store := NewStore()
	store.SetToday("2023-08-14")
	return store
}

func TestCreateHabitValidation(t *testing.T) {
	store := newTestStore()

	_, err := store.CreateHabit("   ")
	assert.Error(t, err)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	_, err = store.CreateHabit(string(long))
	assert.Error(t, err)

	habit, err := store.CreateHabit("Meditate")
	assert.NoError(t, err)
	assert.Equal(t, 1, habit.ID)
	assert.True(t, habit.IsActive)
	assert.Equal(t, 0, habit.Streak)
}

func TestFavoriteLimit(t *testing.T) {
	store := newTestStore()
	yes := true

	for i := 0; i < 4; i++ {
		_, err := store.CreateHabit("Habit")
		assert.NoError(t, err)
	}
	for id := 1; id <= 3; id++ {
		_, err := store.UpdateHabit(id, nil, &yes, nil)
		assert.NoError(t, err)
	}

	_, err := store.UpdateHabit(4, nil, &yes, nil)
	assert.Error(t, err)

	// Re-marking an existing favorite is not a new favorite.
	_, err = store.UpdateHabit(2, nil, &yes, nil)
	assert.NoError(t, err)
}

func TestStreakRecomputedOnCompletionWrites(t *testing.T) {
	store := newTestStore()
	habit, err := store.CreateHabit("Meditate")
	assert.NoError(t, err)

	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-12", true))
	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-13", true))

	// Today not completed yet: the streak counts back from yesterday.
	assert.Equal(t, 2, store.Habits()[0].Streak)

	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-14", true))
	assert.Equal(t, 3, store.Habits()[0].Streak)

	// Un-completing the middle day breaks the chain.
	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-13", false))
	assert.Equal(t, 1, store.Habits()[0].Streak)
}

func TestDeleteHabitKeepsHistoricalCompletions(t *testing.T) {
	store := newTestStore()
	habit, err := store.CreateHabit("Journal")
	assert.NoError(t, err)
	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-10", true))

	assert.NoError(t, store.DeleteHabit(habit.ID))
	assert.Empty(t, store.Habits())

	records, err := store.DashboardMonth("2023-08")
	assert.NoError(t, err)
	record, ok := records["2023-08-10"]
	assert.True(t, ok)
	assert.Len(t, record.HabitCompletions, 1)
	assert.Equal(t, "Journal", record.HabitCompletions[0].HabitName)
	assert.True(t, record.HabitCompletions[0].Completed)
}

func TestDashboardMonthFiltersAndMerges(t *testing.T) {
	store := newTestStore()
	habit, err := store.CreateHabit("Run")
	assert.NoError(t, err)

	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-08-05", true))
	assert.NoError(t, store.WriteCompletion(habit.ID, "2023-07-31", true))
	assert.NoError(t, store.WriteMood("2023-08-05", models.MoodRatings{Happiness: 4, Focus: 3, Stress: 2}))
	_, err = store.AddGratitude("2023-08-06", "sunny day")
	assert.NoError(t, err)
	store.AddGoalActivity("2023-08-05", models.GoalActivity{
		GoalID: 1, GoalName: "Marathon", ActivityType: models.GoalProgressUpdate, GoalType: models.GoalTypeCounter,
	})

	records, err := store.DashboardMonth("2023-08")
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.NotContains(t, records, "2023-07-31")

	fifth := records["2023-08-05"]
	assert.Len(t, fifth.HabitCompletions, 1)
	assert.Equal(t, 4, fifth.Happiness)
	assert.Len(t, fifth.GoalActivities, 1)

	sixth := records["2023-08-06"]
	assert.Len(t, sixth.Gratitudes, 1)
	assert.Equal(t, "sunny day", sixth.Gratitudes[0].Text)

	_, err = store.DashboardMonth("August")
	assert.Error(t, err)
}

func TestWriteMoodValidatesRatings(t *testing.T) {
	store := newTestStore()

	err := store.WriteMood("2023-08-05", models.MoodRatings{Happiness: 6, Focus: 0, Stress: 0})
	assert.Error(t, err)

	err = store.WriteMood("bad-date", models.MoodRatings{Happiness: 3, Focus: 3, Stress: 3})
	assert.Error(t, err)
}
