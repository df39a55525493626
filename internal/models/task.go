package models

import "time"

// RunResult is the outcome of a task's most recent execution attempt.
type RunResult struct {
	OK     bool   `json:"ok"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Task is one scheduled console command.
//
// Schedule is either an "@every <duration>" interval or a five-field cron
// expression. LastRunAt and LastResult are nil until the task has run at
// least once.
type Task struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Command    string     `json:"command"`
	Schedule   string     `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastResult *RunResult `json:"last_result,omitempty"`
}
