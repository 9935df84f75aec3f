package models

import "regexp"

// TaskPath holds the identifiers embedded in a task resource path.
type TaskPath struct {
	UniverseID   string
	PlaceID      string
	PlaceVersion string
	SessionID    string
	TaskID       string
}

var taskPathPattern = regexp.MustCompile(
	`universes/(\d+)/places/(\d+)/versions/(\d+)/luau-execution-sessions/([\w\-]+)/tasks/([\w\-]+)`,
)

// ParseTaskPath extracts the ids from a path such as
// universes/1/places/2/versions/3/luau-execution-sessions/abc/tasks/def.
func ParseTaskPath(path string) (TaskPath, bool) {
	m := taskPathPattern.FindStringSubmatch(path)
	if m == nil {
		return TaskPath{}, false
	}
	return TaskPath{
		UniverseID:   m[1],
		PlaceID:      m[2],
		PlaceVersion: m[3],
		SessionID:    m[4],
		TaskID:       m[5],
	}, true
}
