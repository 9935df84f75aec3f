package services

import (
	"context"
	"fmt"

	"github.com/dekkonot/open-cloud-execute/internal/async"
	"github.com/dekkonot/open-cloud-execute/internal/client"
	"github.com/dekkonot/open-cloud-execute/internal/config"
	"github.com/dekkonot/open-cloud-execute/internal/logger"
	"github.com/dekkonot/open-cloud-execute/internal/models"
)

// ExecutionService is the command surface used by the CLI and the monitor. Every
// method takes the raw API key and validates it before any request is made.
type ExecutionService struct {
	client *client.APIClient
	tasks  *TaskService
	logs   *LogService
}

// NewExecutionService creates a new execution service with all dependencies
func NewExecutionService(cfg *config.Config) *ExecutionService {
	apiClient := client.NewAPIClient(cfg)

	return &ExecutionService{
		client: apiClient,
		tasks:  NewTaskService(apiClient, async.NewPoller(cfg)),
		logs:   NewLogService(apiClient),
	}
}

// BuildTaskURL returns the task endpoint for a place on the configured endpoint root
func (s *ExecutionService) BuildTaskURL(placeID, universeID, versionNumber string) string {
	return BuildTaskURL(s.client.BaseURL(), placeID, universeID, versionNumber)
}

// CreateTask submits a script to a task URL
func (s *ExecutionService) CreateTask(ctx context.Context, apiKey, taskURL, script string, timeoutSeconds float64) (*models.ExecutionTask, error) {
	key, err := client.NewAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	return s.tasks.CreateTask(ctx, key, taskURL, script, timeoutSeconds)
}

// AwaitTask blocks until the task at path reaches a terminal state or the poll
// deadline passes
func (s *ExecutionService) AwaitTask(ctx context.Context, apiKey, path string) (*models.FullExecutionTask, error) {
	key, err := client.NewAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	return s.tasks.AwaitTask(ctx, key, path, nil)
}

// GetLogsFlat returns the plain log lines of the task at path
func (s *ExecutionService) GetLogsFlat(ctx context.Context, apiKey, path string) ([]string, error) {
	key, err := client.NewAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	return s.logs.GetLogsFlat(ctx, key, path)
}

// GetLogsStructured returns the typed log lines of the task at path
func (s *ExecutionService) GetLogsStructured(ctx context.Context, apiKey, path string) ([]models.StructuredMessage, error) {
	key, err := client.NewAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	return s.logs.GetLogsStructured(ctx, key, path)
}

// RunStage is a step of a full run.
type RunStage string

const (
	StageSubmitting RunStage = "submitting"
	StageAwaiting   RunStage = "awaiting"
	StageLogs       RunStage = "logs"
	StageDone       RunStage = "done"
)

// RunEvent reports progress of Run. Poll is only set during StageAwaiting.
type RunEvent struct {
	Stage RunStage
	Task  *models.ExecutionTask
	Poll  *PollEvent
}

// RunRequest is everything needed to execute one script.
type RunRequest struct {
	APIKey         string
	PlaceID        string
	UniverseID     string
	VersionNumber  string
	Script         string
	TimeoutSeconds float64
}

// RunResult is the outcome of a run whose task reached a terminal state.
type RunResult struct {
	Task  *models.ExecutionTask
	Final *models.FullExecutionTask
	Logs  []models.StructuredMessage
	// Path holds the ids parsed from the task path; PathOK is false when the
	// path did not have the expected shape.
	Path   models.TaskPath
	PathOK bool
}

// Run submits a script, waits for it to finish and fetches its structured logs.
// observe may be nil.
func (s *ExecutionService) Run(ctx context.Context, req RunRequest, observe func(RunEvent)) (*RunResult, error) {
	if observe == nil {
		observe = func(RunEvent) {}
	}

	key, err := client.NewAPIKey(req.APIKey)
	if err != nil {
		return nil, err
	}

	observe(RunEvent{Stage: StageSubmitting})
	taskURL := s.BuildTaskURL(req.PlaceID, req.UniverseID, req.VersionNumber)
	task, err := s.tasks.CreateTask(ctx, key, taskURL, req.Script, req.TimeoutSeconds)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Task: task}
	result.Path, result.PathOK = models.ParseTaskPath(task.Path)
	if !result.PathOK {
		logger.Warn("Cannot parse task path %q, ids will not be saved", task.Path)
	}

	observe(RunEvent{Stage: StageAwaiting, Task: task})
	final, err := s.tasks.AwaitTask(ctx, key, task.Path, func(e PollEvent) {
		observe(RunEvent{Stage: StageAwaiting, Task: task, Poll: &e})
	})
	if err != nil {
		return result, err
	}
	result.Final = final

	observe(RunEvent{Stage: StageLogs, Task: task})
	logs, err := s.logs.GetLogsStructured(ctx, key, task.Path)
	if err != nil {
		return result, fmt.Errorf("task finished as %s but its logs could not be read: %w", final.State, err)
	}
	result.Logs = logs

	observe(RunEvent{Stage: StageDone, Task: task})
	return result, nil
}
