package tasklist

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ichigozero/todokit/tasksvc"
)

// Due describes the deadline of t relative to now, e.g. "3 hours from now"
// or "2 days ago". It is empty when the deadline cannot be parsed.
func Due(t tasksvc.Task, now time.Time) string {
	deadline, err := tasksvc.ParseDeadline(t.Deadline)
	if err != nil {
		return ""
	}
	return humanize.RelTime(deadline, now, "ago", "from now")
}

// DefaultDeadline is the deadline a new task form starts with.
func DefaultDeadline(now time.Time) string {
	return now.Add(time.Hour).Format(tasksvc.DeadlineLayout)
}
