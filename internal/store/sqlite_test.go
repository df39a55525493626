package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bedrockcron/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seedTask(t *testing.T, s *Store) models.Task {
	t.Helper()

	task := models.Task{
		Name:     "world save",
		Command:  "save-all",
		Schedule: "@every 5m",
		Enabled:  true,
	}
	require.NoError(t, s.CreateTask(&task))
	return task
}

func TestCreateAndReadBack(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	require.NotEmpty(t, task.ID)
	require.False(t, task.CreatedAt.IsZero())

	got, err := s.GetTaskByID(task.ID)
	require.NoError(t, err)

	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "world save", got.Name)
	assert.Equal(t, "save-all", got.Command)
	assert.Equal(t, "@every 5m", got.Schedule)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRunAt, "lastRunAt must be absent before the first run")
	assert.Nil(t, got.LastResult)
}

func TestCreateRejectsInvalidSchedule(t *testing.T) {
	s := newTestStore(t)

	task := models.Task{Name: "broken", Command: "save-all", Schedule: "every day at noon"}
	err := s.CreateTask(&task)
	require.ErrorIs(t, err, ErrInvalidSchedule)

	tasks, err := s.GetTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks, "rejected tasks must never be stored")
}

func TestGetTasksCreationOrder(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for _, name := range []string{"first", "second", "third"} {
		task := models.Task{Name: name, Command: "say " + name, Schedule: "@hourly", Enabled: true}
		require.NoError(t, s.CreateTask(&task))
		ids = append(ids, task.ID)
	}

	tasks, err := s.GetTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, ids[i], task.ID)
	}
}

func TestUpdateTask(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	task.Command = "weather clear"
	task.Schedule = "0 3 * * *"
	require.NoError(t, s.UpdateTask(&task))

	got, err := s.GetTaskByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "weather clear", got.Command)
	assert.Equal(t, "0 3 * * *", got.Schedule)

	task.Schedule = "not a schedule"
	require.ErrorIs(t, s.UpdateTask(&task), ErrInvalidSchedule)

	missing := models.Task{ID: "no-such-id", Name: "x", Command: "x", Schedule: "@hourly"}
	require.ErrorIs(t, s.UpdateTask(&missing), ErrNotFound)
}

func TestSetEnabled(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	require.NoError(t, s.SetEnabled(task.ID, false))
	got, err := s.GetTaskByID(task.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	require.ErrorIs(t, s.SetEnabled("no-such-id", true), ErrNotFound)
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	require.NoError(t, s.DeleteTask(task.ID))
	_, err := s.GetTaskByID(task.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.DeleteTask(task.ID), ErrNotFound)
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	at := time.Now().UTC()
	require.NoError(t, s.RecordRun(task.ID, at, models.RunResult{OK: true, Output: "Saving..."}))

	got, err := s.GetTaskByID(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastRunAt)
	assert.WithinDuration(t, at, *got.LastRunAt, time.Second)
	require.NotNil(t, got.LastResult)
	assert.True(t, got.LastResult.OK)
	assert.Equal(t, "Saving...", got.LastResult.Output)
	assert.Empty(t, got.LastResult.Error)

	require.NoError(t, s.RecordRun(task.ID, at.Add(time.Minute), models.RunResult{OK: false, Error: "timeout: no response within deadline"}))

	got, err = s.GetTaskByID(task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastResult)
	assert.False(t, got.LastResult.OK)
	assert.Contains(t, got.LastResult.Error, "timeout")
}

func TestRecordRunAfterDeleteIsNoop(t *testing.T) {
	s := newTestStore(t)
	task := seedTask(t, s)

	require.NoError(t, s.DeleteTask(task.ID))

	err := s.RecordRun(task.ID, time.Now(), models.RunResult{OK: true, Output: "Saving..."})
	require.NoError(t, err, "recordRun racing a delete must not surface an error")

	tasks, err := s.GetTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks, "a deleted task must never be resurrected")
}
