package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bedrockcron/internal/models"
	"bedrockcron/internal/schedule"
)

var (
	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidSchedule is returned when a task's schedule expression does
	// not parse to a valid recurring rule. Such tasks are never stored.
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Store is the durable registry of scheduled tasks.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, err
	}

	query := `
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		name TEXT,
		command TEXT,
		schedule TEXT,
		enabled BOOLEAN,
		created_at DATETIME,
		last_run DATETIME,
		last_ok BOOLEAN,
		last_output TEXT,
		last_error TEXT
	);`

	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTask validates the schedule, assigns a fresh id and persists the
// task. LastRunAt stays absent until the first run.
func (s *Store) CreateTask(task *models.Task) error {
	if err := schedule.Validate(task.Schedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	task.ID = uuid.NewString()
	task.CreatedAt = time.Now().UTC()
	task.LastRunAt = nil
	task.LastResult = nil

	query := `INSERT INTO tasks (id, name, command, schedule, enabled, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, task.ID, task.Name, task.Command, task.Schedule, task.Enabled, task.CreatedAt)
	return err
}

// GetTasks lists all tasks in creation order.
func (s *Store) GetTasks() ([]models.Task, error) {
	rows, err := s.db.Query(`SELECT id, name, command, schedule, enabled, created_at, last_run, last_ok, last_output, last_error FROM tasks ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTaskByID(id string) (*models.Task, error) {
	row := s.db.QueryRow(`SELECT id, name, command, schedule, enabled, created_at, last_run, last_ok, last_output, last_error FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces the mutable fields (name, command, schedule, enabled)
// of an existing task. The schedule is re-validated.
func (s *Store) UpdateTask(task *models.Task) error {
	if err := schedule.Validate(task.Schedule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	res, err := s.db.Exec(`UPDATE tasks SET name=?, command=?, schedule=?, enabled=? WHERE id=?`,
		task.Name, task.Command, task.Schedule, task.Enabled, task.ID)
	if err != nil {
		return err
	}
	return mustMatch(res)
}

// SetEnabled flips a task's enabled flag without touching anything else.
func (s *Store) SetEnabled(id string, enabled bool) error {
	res, err := s.db.Exec(`UPDATE tasks SET enabled=? WHERE id=?`, enabled, id)
	if err != nil {
		return err
	}
	return mustMatch(res)
}

func (s *Store) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	return mustMatch(res)
}

// RecordRun sets the last-run bookkeeping in a single statement. Recording
// against a task that was deleted mid-flight is a silent no-op: a deleted
// task is never resurrected.
func (s *Store) RecordRun(id string, at time.Time, result models.RunResult) error {
	_, err := s.db.Exec(`UPDATE tasks SET last_run=?, last_ok=?, last_output=?, last_error=? WHERE id=?`,
		at.UTC(), result.OK, result.Output, result.Error, id)
	return err
}

func mustMatch(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var (
		t          models.Task
		lastRun    sql.NullTime
		lastOK     sql.NullBool
		lastOutput sql.NullString
		lastError  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Command, &t.Schedule, &t.Enabled, &t.CreatedAt, &lastRun, &lastOK, &lastOutput, &lastError); err != nil {
		return models.Task{}, err
	}
	if lastRun.Valid {
		at := lastRun.Time
		t.LastRunAt = &at
	}
	if lastOK.Valid {
		t.LastResult = &models.RunResult{
			OK:     lastOK.Bool,
			Output: lastOutput.String,
			Error:  lastError.String,
		}
	}
	return t, nil
}
