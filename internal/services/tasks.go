package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dekkonot/open-cloud-execute/internal/async"
	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/logger"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

// BuildTaskURL returns the endpoint that accepts new Luau execution tasks for a place.
// An empty versionNumber targets the live version of the place. Ids are not validated.
func BuildTaskURL(baseURL, placeID, universeID, versionNumber string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if versionNumber != "" {
		return fmt.Sprintf("%s/universes/%s/places/%s/versions/%s/luau-execution-session-tasks",
			baseURL, universeID, placeID, versionNumber)
	}
	return fmt.Sprintf("%s/universes/%s/places/%s/luau-execution-session-tasks",
		baseURL, universeID, placeID)
}

// PollEvent reports the outcome of one status query while awaiting a task.
type PollEvent struct {
	async.Attempt
	State models.TaskState
}

// TaskService submits and tracks Luau execution tasks
type TaskService struct {
	client *client.APIClient
	poller async.Poller
}

// NewTaskService creates a new task service
func NewTaskService(apiClient *client.APIClient, poller async.Poller) *TaskService {
	return &TaskService{
		client: apiClient,
		poller: poller,
	}
}

// CreateTask submits script to taskURL. A timeout of zero or less uses the
// default of five minutes.
func (s *TaskService) CreateTask(ctx context.Context, key client.APIKey, taskURL, script string, timeoutSeconds float64) (*models.ExecutionTask, error) {
	if timeoutSeconds <= 0 {
		timeoutSeconds = models.DefaultScriptTimeout
	}

	upload := models.TaskUpload{
		Script:  script,
		Timeout: timeoutSeconds,
	}

	var task models.ExecutionTask
	if err := s.client.Post(ctx, "create task", key, taskURL, upload, &task); err != nil {
		return nil, err
	}

	logger.Info("Created task %s (%s)", task.Path, task.State)
	return &task, nil
}

// QueryTask fetches the current state of the task at path
func (s *TaskService) QueryTask(ctx context.Context, key client.APIKey, path string) (*models.FullExecutionTask, error) {
	var task models.FullExecutionTask
	if err := s.client.Get(ctx, "query task", key, s.client.BuildURL(path), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AwaitTask polls the task at path until it reaches a terminal state. observe may be
// nil; otherwise it is called after every query.
func (s *TaskService) AwaitTask(ctx context.Context, key client.APIKey, path string, observe func(PollEvent)) (*models.FullExecutionTask, error) {
	poller := s.poller
	var state models.TaskState
	if observe != nil {
		poller.Observe = func(a async.Attempt) {
			observe(PollEvent{Attempt: a, State: state})
		}
	}

	start := time.Now()
	task, err := async.Await(ctx, poller, func(ctx context.Context) (*models.FullExecutionTask, error) {
		task, err := s.QueryTask(ctx, key, path)
		if err == nil {
			state = task.State
		}
		return task, err
	}, func(task *models.FullExecutionTask) bool {
		return !task.State.IsTerminal()
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Task %s finished as %s after %v", path, task.State, time.Since(start).Round(time.Millisecond))
	return task, nil
}
