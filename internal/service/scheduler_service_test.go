package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskshare/internal/testutil"
)

func TestBuildDailySpec(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "09:30", want: "0 30 9 * * *"},
		{in: "00:00", want: "0 0 0 * * *"},
		{in: "23:59", want: "0 59 23 * * *"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "1:2:3", wantErr: true},
		{in: "7:05", want: "0 5 7 * * *"},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := buildDailySpec(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduleInterval(t *testing.T) {
	s := NewScheduler(time.UTC, testutil.Logger())
	_, err := s.ScheduleInterval(0, func() {})
	assert.Error(t, err)

	_, err = s.ScheduleInterval(time.Hour, func() {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entries())
}

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) SweepExpiredInvitations(ctx context.Context) (int64, error) {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("missing deadline")
	}
	return 3, f.err
}

func TestScheduleInvitationSweep(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := NewScheduler(time.UTC, testutil.Logger())

	_, err := s.ScheduleInvitationSweep(sweeper, "03:15", time.Hour)
	require.NoError(t, err)
	_, err = s.ScheduleInvitationSweep(sweeper, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Entries())

	_, err = s.ScheduleInvitationSweep(sweeper, "bad", time.Hour)
	assert.Error(t, err)
}

func TestSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	job := SweepJob(sweeper, time.Second, testutil.Logger())
	job()
	job()
	assert.Equal(t, 2, sweeper.calls)
}

func TestSchedulerRecoversPanickingJob(t *testing.T) {
	s := NewScheduler(time.UTC, testutil.Logger())
	ran := make(chan struct{}, 1)
	_, err := s.ScheduleInterval(time.Second, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
		panic("boom")
	})
	require.NoError(t, err)
	s.Start()
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("job did not run again after panicking")
		}
	}
}
