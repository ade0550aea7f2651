package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"pbk-go/internal/pbk"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @daily or @every 6h.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// cronLogger adapts a pbk.Logger to cron.Logger. Cron's own chatter goes to debug.
type cronLogger struct {
	l pbk.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// ScheduledRun is the outcome of one scheduled backup.
type ScheduledRun struct {
	Run *pbk.Run
	Err error
}

// Schedule runs a full backup on every tick of expr until ctx is done.
// An empty expr uses the configured schedule. Each tick is recorded as its
// own "backup" operation. A tick that fires while the previous backup is
// still running is skipped. onRun, if set, is called after every tick.
func (a *PBKApp) Schedule(ctx context.Context, expr, versionNote string, onRun func(ScheduledRun)) error {
	if expr == "" {
		expr = a.cfg.Schedule
	}
	if expr == "" {
		return fmt.Errorf("no schedule given and none configured")
	}

	logger := cronLogger{l: &slogAdapter{l: a.logger}}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(expr, func() {
		run, err := a.scheduledBackup(versionNote)
		if err != nil {
			a.logger.Error("scheduled backup failed", "error", err)
		}
		if onRun != nil {
			onRun(ScheduledRun{Run: run, Err: err})
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	a.logger.Info("scheduler started", "schedule", expr)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("scheduler stopped")
	return nil
}

func (a *PBKApp) scheduledBackup(versionNote string) (*pbk.Run, error) {
	op, err := a.db.CreateOperation("backup", "scheduled", a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("persisting operation: %w", err)
	}

	status := StatusSuccess
	run, err := a.backup(op.ID, versionNote, true)
	if err != nil {
		status = StatusError
	}
	if ferr := a.db.FinishOperation(op.ID, status, a.clock.Now()); ferr != nil {
		a.logger.Warn("operation not finished", "id", op.ID, "error", ferr)
	}
	return run, err
}
