package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Task status values.
const (
	TaskStatusNotStarted = "NOT_STARTED"
	TaskStatusCompleted  = "COMPLETED"
)

var isoDate = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

// NextStepDueDate returns the first YYYY-MM-DD date mentioned in a next step
// phrase, or now plus defaultDays.
func NextStepDueDate(phrase string, now time.Time, defaultDays int) time.Time {
	if m := isoDate.FindStringSubmatch(phrase); m != nil {
		if t, err := time.Parse(time.DateOnly, m[1]); err == nil {
			return t
		}
	}
	return now.UTC().AddDate(0, 0, defaultDays)
}

// TaskProperties builds the properties of a task. A zero due time is omitted.
func TaskProperties(subject, body string, due time.Time) map[string]string {
	props := map[string]string{
		"hs_task_subject": strings.TrimSpace(subject),
		"hs_task_status":  TaskStatusNotStarted,
	}
	setIf(props, "hs_task_body", body)
	if !due.IsZero() {
		props["hs_timestamp"] = strconv.FormatInt(due.UnixMilli(), 10)
	}
	return props
}
