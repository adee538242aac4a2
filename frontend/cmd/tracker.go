package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	ishell "github.com/abiosoft/ishell"
	"github.com/common-nighthawk/go-figure"
	"github.com/jghoshh/momentum/engine"
	"github.com/jghoshh/momentum/lib/utils"
	"github.com/jghoshh/momentum/models"
)

// trackerCommands is a slice of Command structures containing the calendar
// and mutation commands of the tracker.
var trackerCommands []Command

// commonCommands is a slice of Command structures containing commands that
// are always available.
var commonCommands []Command

// shell represents an instance of the interactive shell used for this
// application.
var shell *ishell.Shell

// eng is the tracking engine every command operates on.
var eng *engine.Engine

// The Command struct defines a user command in the system. Each command has a
// Name, a Desc (short for description), and a Func (the function to execute
// when the command is called).
type Command struct {
	Name string                   // Name is the name of the command.
	Desc string                   // Desc is a short description of what the command does.
	Func func(c *ishell.Context) // Func is the function that is executed when the command is invoked.
}

// readDate prompts for a YYYY-MM-DD date; an empty answer falls back to def.
func readDate(c *ishell.Context, prompt, def string) (string, bool) {
	for {
		c.Printf("%s [%s]: ", prompt, def)
		answer := strings.TrimSpace(c.ReadLine())
		if answer == "" {
			return def, true
		}
		if _, err := utils.ParseDate(answer); err == nil {
			return answer, true
		}
		c.Println("Please enter a date as YYYY-MM-DD.")
	}
}

// readRating prompts for an integer rating in [0,5].
func readRating(c *ishell.Context, label string) int {
	for {
		c.Printf("%s (0-5, 0 = unset): ", label)
		answer := strings.TrimSpace(c.ReadLine())
		rating, err := strconv.Atoi(answer)
		if err == nil && rating >= 0 && rating <= 5 {
			return rating
		}
		c.Println("Please enter a number between 0 and 5.")
	}
}

// renderMonth prints a compact calendar of the loaded month. Each cell shows
// the day number, a completion marker (* some, # all habits done), and a
// mood marker (:) good, :| neutral, :( poor). Locked days are bracketed.
func renderMonth(c *ishell.Context, monthLabel string, entries map[string]*models.DailyCalendarEntry) {
	dates := make([]string, 0, len(entries))
	for date := range entries {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	c.Println()
	c.Println("  " + monthLabel)
	c.Println("  " + strings.Repeat("-", len(monthLabel)))
	for _, date := range dates {
		entry := entries[date]

		completed, total := 0, 0
		for _, completion := range entry.HabitCompletions {
			if completion.WasActiveOnDate {
				total++
				if completion.Completed {
					completed++
				}
			}
		}

		marker := " "
		if total > 0 && completed == total {
			marker = "#"
		} else if completed > 0 {
			marker = "*"
		}

		mood := "   "
		if entry.MoodEntry != nil {
			switch entry.MoodEntry.Level() {
			case models.MoodGood:
				mood = ":) "
			case models.MoodNeutral:
				mood = ":| "
			default:
				mood = ":( "
			}
		}

		day := date[8:]
		cell := fmt.Sprintf(" %s%s", day, marker)
		if entry.IsLocked {
			cell = fmt.Sprintf("[%s%s]", day, marker)
		}

		extras := ""
		if len(entry.Gratitudes) > 0 {
			extras += fmt.Sprintf(" +%d gratitude", len(entry.Gratitudes))
		}
		if len(entry.GoalActivities) > 0 {
			extras += fmt.Sprintf(" +%d goal events", len(entry.GoalActivities))
		}

		c.Printf("  %s %s %d/%d habits%s\n", cell, mood, completed, total, extras)
	}
	c.Println()
}

// renderDay prints the full detail of one calendar entry.
func renderDay(c *ishell.Context, entry *models.DailyCalendarEntry) {
	c.Println()
	c.Printf("  %s", entry.Date)
	if entry.IsLocked {
		c.Print("  (read-only)")
	}
	c.Println()

	if entry.MoodEntry != nil {
		m := entry.MoodEntry
		c.Printf("  Mood: happiness %d, focus %d, stress %d -> %.1f/10 (%s)\n",
			m.Happiness, m.Focus, m.Stress, m.MoodScore(), m.Level())
	} else {
		c.Println("  Mood: not rated")
	}

	c.Println("  Habits:")
	for _, completion := range entry.HabitCompletions {
		state := "[ ]"
		if completion.Completed {
			state = "[x]"
		}
		note := ""
		if !completion.WasActiveOnDate {
			note = " (not active on this date)"
		}
		c.Printf("    %s %s (id %d)%s\n", state, completion.HabitName, completion.HabitID, note)
	}

	for _, gratitude := range entry.Gratitudes {
		c.Printf("  Grateful for: %s\n", gratitude.Text)
	}
	for _, activity := range entry.GoalActivities {
		c.Printf("  Goal %q: %s\n", activity.GoalName, activity.ActivityType)
	}
	c.Println()
}

// loadMonthFromLabel loads the month for a YYYY-MM label through the engine.
func loadMonthFromLabel(label string) (map[string]*models.DailyCalendarEntry, error) {
	first, err := time.Parse("2006-01", label)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q (expected YYYY-MM)", label)
	}
	return eng.LoadMonth(context.Background(), first)
}

// InitTrackerCmd initializes the shell and its commands over the given
// engine.
func InitTrackerCmd(e *engine.Engine) {

	eng = e
	shell = ishell.New()

	trackerCommands = []Command{
		{
			Name: "month",
			Desc: "Show the calendar for a month",
			Func: func(c *ishell.Context) {
				def := eng.CurrentMonth()
				if def == "" {
					def = time.Now().UTC().Format("2006-01")
				}
				c.Printf("Month (YYYY-MM) [%s]: ", def)
				label := strings.TrimSpace(c.ReadLine())
				if label == "" {
					label = def
				}

				entries, err := loadMonthFromLabel(label)
				if err != nil {
					utils.PrintError(err.Error())
					if entries == nil {
						return
					}
					c.Println("Showing the last loaded data for this month.")
				}
				renderMonth(c, label, entries)
			},
		},
		{
			Name: "day",
			Desc: "Show the details of one day",
			Func: func(c *ishell.Context) {
				date, _ := readDate(c, "Date", todayOrEmpty())
				entry := eng.GetCalendarEntryForDate(date)
				if entry == nil {
					utils.PrintError("No data loaded for " + date + ". Load its month first with 'month'.")
					return
				}
				renderDay(c, entry)
			},
		},
		{
			Name: "toggle",
			Desc: "Mark a habit completed or not for today",
			Func: func(c *ishell.Context) {
				habits := eng.Habits()
				if len(habits) == 0 {
					utils.PrintError("No habits yet. Create one with 'newhabit'.")
					return
				}
				for _, habit := range habits {
					c.Printf("  %d: %s\n", habit.ID, habit.Name)
				}

				c.Print("Habit id: ")
				habitID, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
				if err != nil {
					utils.PrintError("Habit id must be a number.")
					return
				}

				date, _ := readDate(c, "Date", todayOrEmpty())
				c.Print("Completed? (yes/no): ")
				completed := strings.ToLower(strings.TrimSpace(c.ReadLine())) == "yes"

				if err := eng.ToggleHabitCompletion(context.Background(), date, habitID, completed); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Saved.")
			},
		},
		{
			Name: "mood",
			Desc: "Rate your mood for today",
			Func: func(c *ishell.Context) {
				date, _ := readDate(c, "Date", todayOrEmpty())
				ratings := models.MoodRatings{
					Happiness: readRating(c, "Happiness"),
					Focus:     readRating(c, "Focus"),
					Stress:    readRating(c, "Stress"),
				}
				if err := eng.SaveMoodData(context.Background(), ratings, date); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Mood saved.")
			},
		},
		{
			Name: "gratitude",
			Desc: "Record something you are grateful for",
			Func: func(c *ishell.Context) {
				c.Print("What are you grateful for? ")
				text := c.ReadLine()
				date, _ := readDate(c, "Date", todayOrEmpty())
				if _, err := eng.AddGratitude(context.Background(), text, date); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Noted.")
			},
		},
		{
			Name: "habits",
			Desc: "List your habits",
			Func: func(c *ishell.Context) {
				habits := eng.Habits()
				if len(habits) == 0 {
					c.Println("No habits yet.")
					return
				}
				for _, habit := range habits {
					flags := ""
					if habit.IsFavorite {
						flags += " ^fav"
					}
					if !habit.IsActive {
						flags += " (inactive)"
					}
					c.Printf("  %d: %s, streak %d%s\n", habit.ID, habit.Name, habit.Streak, flags)
				}
			},
		},
		{
			Name: "newhabit",
			Desc: "Create a new habit",
			Func: func(c *ishell.Context) {
				c.Print("Habit name: ")
				name := c.ReadLine()
				habit, err := eng.CreateHabit(context.Background(), name)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Created %q with id %d.\n", habit.Name, habit.ID)
			},
		},
		{
			Name: "renamehabit",
			Desc: "Rename a habit",
			Func: func(c *ishell.Context) {
				c.Print("Habit id: ")
				habitID, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
				if err != nil {
					utils.PrintError("Habit id must be a number.")
					return
				}
				c.Print("New name: ")
				name := c.ReadLine()
				habit, err := eng.RenameHabit(context.Background(), habitID, name)
				if err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Printf("Renamed to %q.\n", habit.Name)
			},
		},
		{
			Name: "archive",
			Desc: "Deactivate or reactivate a habit",
			Func: func(c *ishell.Context) {
				c.Print("Habit id: ")
				habitID, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
				if err != nil {
					utils.PrintError("Habit id must be a number.")
					return
				}
				c.Print("Active? (yes/no): ")
				active := strings.ToLower(strings.TrimSpace(c.ReadLine())) == "yes"
				if _, err := eng.SetHabitActive(context.Background(), habitID, active); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Updated.")
			},
		},
		{
			Name: "delhabit",
			Desc: "Delete a habit (its history stays visible)",
			Func: func(c *ishell.Context) {
				c.Print("Habit id: ")
				habitID, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
				if err != nil {
					utils.PrintError("Habit id must be a number.")
					return
				}
				c.Print("Really delete? (yes/no): ")
				if strings.ToLower(strings.TrimSpace(c.ReadLine())) != "yes" {
					c.Println("Kept.")
					return
				}
				if err := eng.DeleteHabit(context.Background(), habitID); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Deleted.")
			},
		},
		{
			Name: "favorite",
			Desc: "Mark or unmark a habit as a favorite (max 3)",
			Func: func(c *ishell.Context) {
				c.Print("Habit id: ")
				habitID, err := strconv.Atoi(strings.TrimSpace(c.ReadLine()))
				if err != nil {
					utils.PrintError("Habit id must be a number.")
					return
				}
				c.Print("Favorite? (yes/no): ")
				favorite := strings.ToLower(strings.TrimSpace(c.ReadLine())) == "yes"
				if _, err := eng.SetHabitFavorite(context.Background(), habitID, favorite); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Updated.")
			},
		},
		{
			Name: "stats",
			Desc: "Show your tracking statistics",
			Func: func(c *ishell.Context) {
				stats := eng.CalculateStats()
				c.Printf("  Current streak:      %d days\n", stats.CurrentStreak)
				c.Printf("  Completed today:     %d/%d habits\n", stats.HabitsCompletedToday, stats.TotalHabits)
				c.Printf("  Monthly completion:  %.0f%%\n", stats.MonthlyCompletion)
				c.Printf("  Days tracked:        %d of the last 30\n", stats.DaysTracked)
			},
		},
		{
			Name: "cache",
			Desc: "Show cache statistics",
			Func: func(c *ishell.Context) {
				stats := eng.GetCacheStats(context.Background())
				c.Printf("  Entries:  %d/%d (expired so far: %d)\n", stats.Size, stats.MaxSize, stats.ExpiredCount)
				c.Printf("  Hit rate: %.0f%% (%d hits, %d misses)\n", stats.HitRate*100, stats.Hits, stats.Misses)
				for _, entry := range stats.Entries {
					c.Printf("    %s  age %s / ttl %s\n", entry.Key, entry.Age.Round(time.Second), entry.TTL)
				}
			},
		},
		{
			Name: "refresh",
			Desc: "Drop the cache and reload from the server",
			Func: func(c *ishell.Context) {
				if err := eng.RefreshCache(context.Background()); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Refreshed.")
			},
		},
	}

	commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				fmt.Println("Goodbye!")
				os.Exit(0)
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			for _, command := range trackerCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			for _, command := range commonCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
		},
	})
}

// todayOrEmpty returns the server-authoritative today, falling back to the
// local clock while the server date is still resolving.
func todayOrEmpty() string {
	if today, ok := eng.Today(); ok {
		return today
	}
	return time.Now().UTC().Format(models.DateFormat)
}

// addCommands is a helper function that adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

// Execute is the main function that executes the shell.
func Execute() {

	figure.NewFigure("Momentum", "basic", true).Print()

	addCommands(shell, commonCommands)
	addCommands(shell, trackerCommands)

	shell.Run()
}
