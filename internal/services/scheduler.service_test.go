package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testJob struct {
	name     string
	schedule Schedule
	interval time.Duration
	runs     atomic.Int32
}

func (j *testJob) Name() string { return j.name }
func (j *testJob) Schedule() Schedule { return j.schedule }
func (j *testJob) Interval() time.Duration { return j.interval }
func (j *testJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

type plainJob struct{}

func (plainJob) Name() string { return "plain" }
func (plainJob) Schedule() Schedule { return Interval }
func (plainJob) Execute(ctx context.Context) error { return nil }

func TestSchedulerService_AddJob(t *testing.T) {
	scheduler := NewSchedulerService()

	require.NoError(t, scheduler.AddJob(&testJob{name: "daily", schedule: Daily}))
	require.NoError(t, scheduler.AddJob(&testJob{name: "hourly", schedule: Hourly}))
	require.NoError(t, scheduler.AddJob(&testJob{name: "inbox", schedule: Interval, interval: time.Minute}))

	assert.Equal(t, 3, scheduler.GetJobCount())
}

func TestSchedulerService_RejectsBadIntervalJobs(t *testing.T) {
	scheduler := NewSchedulerService()

	assert.Error(t, scheduler.AddJob(plainJob{}))
	assert.Error(t, scheduler.AddJob(&testJob{name: "zero", schedule: Interval}))
	assert.Error(t, scheduler.AddJob(&testJob{name: "unknown", schedule: Schedule(42)}))
	assert.Zero(t, scheduler.GetJobCount())
}

func TestSchedulerService_StartStop(t *testing.T) {
	scheduler := NewSchedulerService()
	ctx := context.Background()

	require.NoError(t, scheduler.Start(ctx))
	assert.False(t, scheduler.IsRunning(), "no jobs means no start")

	job := &testJob{name: "inbox", schedule: Interval, interval: time.Hour}
	require.NoError(t, scheduler.AddJob(job))
	require.NoError(t, scheduler.Start(ctx))
	assert.True(t, scheduler.IsRunning())

	require.NoError(t, scheduler.Stop(ctx))
	assert.False(t, scheduler.IsRunning())
	require.NoError(t, scheduler.Stop(ctx))
}

func TestSchedulerService_TriggerJobByName(t *testing.T) {
	scheduler := NewSchedulerService()
	job := &testJob{name: "inbox", schedule: Hourly}
	require.NoError(t, scheduler.AddJob(job))

	require.NoError(t, scheduler.TriggerJobByName(context.Background(), "inbox"))
	assert.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	assert.Error(t, scheduler.TriggerJobByName(context.Background(), "missing"))
}

func TestSchedule_String(t *testing.T) {
	assert.Equal(t, "daily", Daily.String())
	assert.Equal(t, "interval", Interval.String())
	assert.Equal(t, "schedule(9)", Schedule(9).String())
}
