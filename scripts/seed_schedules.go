package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"courtbook/internal/database"
	"courtbook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type scheduleRule struct {
	Weekday        string `yaml:"weekday"`
	StartTime      string `yaml:"start_time"`
	EndTime        string `yaml:"end_time"`
	SessionMinutes int64  `yaml:"session_minutes"`
	IsAvailable    *bool  `yaml:"is_available"`
}

type coachSeed struct {
	models.Coach `yaml:",inline"`
	Schedules    []scheduleRule `yaml:"schedules"`
}

type seedConfig struct {
	Coaches []coachSeed `yaml:"coaches"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("coaches", "configs/coaches.yaml", "path to coaches.yaml")
		dbPath   = flag.String("db", "./data/courtbook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read coaches: %w", err)
	}
	var cfg seedConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse coaches: %w", err)
	}
	if len(cfg.Coaches) == 0 {
		return fmt.Errorf("no coaches in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	coaches := 0
	rules := 0
	for _, seed := range cfg.Coaches {
		coach := seed.Coach
		if err = db.CreateOrUpdateCoach(ctx, &coach); err != nil {
			return fmt.Errorf("coach %s: %w", coach.Name, err)
		}
		coaches++

		existing, err := db.GetSchedulesByCoach(ctx, coach.ID)
		if err != nil {
			return fmt.Errorf("schedules for %s: %w", coach.Name, err)
		}
		if len(existing) > 0 {
			// уже засеяно, правила не дублируем
			continue
		}

		for _, rule := range seed.Schedules {
			weekday, err := models.ParseWeekday(rule.Weekday)
			if err != nil {
				return fmt.Errorf("coach %s: %w", coach.Name, err)
			}

			available := true
			if rule.IsAvailable != nil {
				available = *rule.IsAvailable
			}

			schedule := models.CoachSchedule{
				CoachID:        coach.ID,
				Weekday:        weekday,
				StartTime:      rule.StartTime,
				EndTime:        rule.EndTime,
				SessionMinutes: rule.SessionMinutes,
				IsAvailable:    available,
			}
			if err = schedule.Validate(); err != nil {
				return fmt.Errorf("coach %s %s: %w", coach.Name, rule.Weekday, err)
			}
			if err = db.CreateSchedule(ctx, &schedule); err != nil {
				return fmt.Errorf("create rule for %s: %w", coach.Name, err)
			}
			rules++
		}
	}

	fmt.Printf("done: coaches=%d rules=%d\n", coaches, rules)
	return nil
}
