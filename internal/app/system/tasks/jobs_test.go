package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/recruithub/internal/app/committees"
	"github.com/dalemusser/recruithub/internal/app/system/tasks"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	res committees.SweepResult
	err error
}

func (f fakeSweeper) SweepReminders(context.Context) (committees.SweepResult, error) {
	return f.res, f.err
}

type fakeExpirer struct {
	count int64
	err   error
}

func (f fakeExpirer) ExpireStale(context.Context) (int64, error) {
	return f.count, f.err
}

func TestReminderSweepJob(t *testing.T) {
	tests := []struct {
		name    string
		sweeper fakeSweeper
		wantErr bool
		wantLog int
	}{
		{"nothing due", fakeSweeper{}, false, 0},
		{"reminders sent", fakeSweeper{res: committees.SweepResult{Committees: 1, Sent: 3}}, false, 1},
		{"only failures", fakeSweeper{res: committees.SweepResult{Committees: 1, Failed: 2}}, false, 1},
		{"sweep error", fakeSweeper{err: errors.New("boom")}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			job := tasks.ReminderSweepJob(tt.sweeper, zap.New(core), 15*time.Minute)

			if job.Interval != 15*time.Minute {
				t.Errorf("Interval: got %v", job.Interval)
			}
			err := job.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}
			if n := logs.FilterMessage("feedback reminders sent").Len(); n != tt.wantLog {
				t.Errorf("log entries: got %d, want %d", n, tt.wantLog)
			}
		})
	}
}

func TestTokenExpiryJob(t *testing.T) {
	job := tasks.TokenExpiryJob(fakeExpirer{count: 4}, zap.NewNop())
	if job.Name != "feedback-token-expiry" || job.Interval != time.Hour {
		t.Errorf("unexpected job: %s every %v", job.Name, job.Interval)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("Run failed: %v", err)
	}

	failing := tasks.TokenExpiryJob(fakeExpirer{err: errors.New("timeout")}, zap.NewNop())
	if err := failing.Run(context.Background()); err == nil {
		t.Error("expected error to propagate")
	}
}
