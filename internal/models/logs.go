package models

// LogView selects how the logs endpoint renders a task's output.
type LogView string

const (
	LogViewFlat       LogView = "FLAT"
	LogViewStructured LogView = "STRUCTURED"
)

// MessageType is the category of a structured log line.
type MessageType string

const (
	MessageTypeInfo    MessageType = "INFO"
	MessageTypeOutput  MessageType = "OUTPUT"
	MessageTypeWarning MessageType = "WARNING"
	MessageTypeError   MessageType = "ERROR"
)

// StructuredMessage is one typed log line.
type StructuredMessage struct {
	Message     string      `json:"message"`
	CreateTime  string      `json:"createTime"`
	MessageType MessageType `json:"messageType"`
}

// LogEntry is the log collection of a single task.
type LogEntry struct {
	Path               string              `json:"path"`
	Messages           []string            `json:"messages"`
	StructuredMessages []StructuredMessage `json:"structuredMessages,omitempty"`
}

// LogsResponse is one page of the task logs endpoint.
type LogsResponse struct {
	TaskLogs      []LogEntry `json:"luauExecutionSessionTaskLogs"`
	NextPageToken string     `json:"nextPageToken"`
}

// FirstEntry returns the first log entry of the page, or nil when there is none.
func (r *LogsResponse) FirstEntry() *LogEntry {
	if r == nil || len(r.TaskLogs) == 0 {
		return nil
	}
	return &r.TaskLogs[0]
}

// NextPage returns the token of the following page and whether one exists.
func (r *LogsResponse) NextPage() (string, bool) {
	if r == nil || r.NextPageToken == "" {
		return "", false
	}
	return r.NextPageToken, true
}
