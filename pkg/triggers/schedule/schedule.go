// Package schedule provides the cron-driven monitoring cycle trigger.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/acctcare/careops/pkg/triggers"
)

// DefaultCronExpr runs a monitoring cycle every 15 minutes.
const DefaultCronExpr = "*/15 * * * *"

// Trigger fires the monitoring workflow on a cron schedule.
type Trigger struct {
	CronExpr string
	Timezone string

	cron     *cron.Cron
	callback triggers.Callback
	logger   *slog.Logger
}

func NewTrigger(cronExpr, timezone string, logger *slog.Logger) (*Trigger, error) {
	if cronExpr == "" {
		cronExpr = DefaultCronExpr
	}

	trigger := &Trigger{
		CronExpr: cronExpr,
		Timezone: timezone,
		logger:   logger.With("module", "schedule_trigger", "cron", cronExpr),
	}
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}
	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

func (t *Trigger) Start(ctx context.Context, callback triggers.Callback) error {
	t.logger.InfoContext(ctx, "Starting schedule trigger")
	t.callback = callback

	if t.Timezone != "" {
		loc, err := time.LoadLocation(t.Timezone)
		if err != nil {
			t.logger.WarnContext(ctx, "Could not load timezone, defaulting to local", "timezone", t.Timezone, "error", err)
			t.cron = cron.New()
		} else {
			t.cron = cron.New(cron.WithLocation(loc))
		}
	} else {
		t.cron = cron.New()
	}

	if _, err := t.cron.AddFunc(t.CronExpr, t.run); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	t.cron.Start()

	return nil
}

func (t *Trigger) run() {
	t.logger.Info("Monitoring cycle triggered")

	data := map[string]any{
		"trigger_type": "schedule",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}

	// Run the callback outside the scheduler goroutine so a slow workflow
	// never delays the next cycle.
	go func() {
		if err := t.callback(context.Background(), data); err != nil {
			t.logger.Error("Error executing scheduled workflow", "error", err)
		}
	}()
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger")
	if t.cron != nil {
		t.cron.Stop()
	}
	return nil
}
