package models

import (
	"encoding/json"
	"strconv"
)

// TaskState is the lifecycle state of a Luau execution task as reported by Open Cloud.
type TaskState string

const (
	TaskStateUnspecified TaskState = "STATE_UNSPECIFIED"
	TaskStateQueued      TaskState = "QUEUED"
	TaskStateProcessing  TaskState = "PROCESSING"
	TaskStateCancelled   TaskState = "CANCELLED"
	TaskStateComplete    TaskState = "COMPLETE"
	TaskStateFailed      TaskState = "FAILED"
)

// IsTerminal reports whether no further transition can happen. Unspecified and
// unrecognised states are treated as still running.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCancelled, TaskStateComplete, TaskStateFailed:
		return true
	default:
		return false
	}
}

// TaskErrorCode classifies why a task ended in the FAILED state.
type TaskErrorCode string

const (
	TaskErrorUnspecified        TaskErrorCode = "ERROR_CODE_UNSPECIFIED"
	TaskErrorScript             TaskErrorCode = "SCRIPT_ERROR"
	TaskErrorDeadlineExceeded   TaskErrorCode = "DEADLINE_EXCEEDED"
	TaskErrorOutputSizeExceeded TaskErrorCode = "OUTPUT_SIZE_LIMIT_EXCEEDED"
	TaskErrorInternal           TaskErrorCode = "INTERNAL_ERROR"
)

// ExecutionTask is the summary returned when a task is submitted.
type ExecutionTask struct {
	Path   string    `json:"path"`
	User   string    `json:"user"`
	State  TaskState `json:"state"`
	Script string    `json:"script"`
}

// FullExecutionTask is the task as returned by a status query. Output and Error are
// optional in every state.
type FullExecutionTask struct {
	ExecutionTask

	CreateTime string `json:"createTime"`
	UpdateTime string `json:"updateTime"`

	Output *TaskOutput `json:"output,omitempty"`
	Error  *TaskError  `json:"error,omitempty"`
}

// TaskOutput holds the values returned by the script, passed through verbatim.
type TaskOutput struct {
	Results []json.RawMessage `json:"results"`
}

// TaskError describes a script that failed to finish.
type TaskError struct {
	Code    TaskErrorCode `json:"code"`
	Message string        `json:"message"`
}

// DefaultScriptTimeout is the script timeout in seconds used when none is given.
const DefaultScriptTimeout = 300.0

// TaskUpload is the body of a task submission.
type TaskUpload struct {
	Script  string
	Timeout float64
}

// MarshalJSON renders the timeout as a duration string with nine fractional digits,
// e.g. "300.000000000s", which is the only form the endpoint accepts.
func (u TaskUpload) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Script  string `json:"script"`
		Timeout string `json:"timeout"`
	}{
		Script:  u.Script,
		Timeout: FormatTimeout(u.Timeout),
	})
}

// FormatTimeout formats seconds in the protobuf Duration JSON form used by Open Cloud.
func FormatTimeout(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 9, 64) + "s"
}
