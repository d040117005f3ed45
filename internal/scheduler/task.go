package scheduler

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskKind discriminates what a queued task asks a worker to do. The queue
// transports a job identifier plus this kind, never a serialized function.
type TaskKind string

const (
	TaskGenerateVideo TaskKind = "generate_video"
	TaskPublishVideo  TaskKind = "publish_video"
	TaskSyncAnalytics TaskKind = "sync_analytics"
)

// Valid reports whether the kind is one a worker knows how to dispatch.
func (k TaskKind) Valid() bool {
	switch k {
	case TaskGenerateVideo, TaskPublishVideo, TaskSyncAnalytics:
		return true
	}
	return false
}

// Task is one unit of asynchronous work.
type Task struct {
	Kind       TaskKind  `json:"kind"`
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Encode serializes the task for the queue.
func (t Task) Encode() (string, error) {
	if !t.Kind.Valid() {
		return "", fmt.Errorf("encode task: unknown kind %q", t.Kind)
	}
	if t.JobID == "" {
		return "", fmt.Errorf("encode task: job id is required")
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode task: %w", err)
	}
	return string(raw), nil
}

// DecodeTask parses a queue entry back into a Task.
func DecodeTask(raw string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if !t.Kind.Valid() {
		return Task{}, fmt.Errorf("decode task: unknown kind %q", t.Kind)
	}
	if t.JobID == "" {
		return Task{}, fmt.Errorf("decode task: job id is required")
	}
	return t, nil
}
