// Package tasklist derives the ordered, filtered task list a view renders.
// Everything here is pure and never modifies its input.
package tasklist

import (
	"errors"
	"sort"
	"strings"

	"github.com/ichigozero/todokit/tasksvc"
)

type SortKey int

const (
	SortName SortKey = iota
	SortDateModified
	SortDateCreated
)

func (k SortKey) String() string {
	switch k {
	case SortDateModified:
		return "date-modified"
	case SortDateCreated:
		return "date-created"
	}
	return "name"
}

// Label is the name shown in the sort menu.
func (k SortKey) Label() string {
	switch k {
	case SortDateModified:
		return "Date modified"
	case SortDateCreated:
		return "Date created"
	}
	return "Name"
}

var ErrUnknownSortKey = errors.New("unknown sort key")

// ParseSortKey accepts the query form ("date-created") and the menu label
// ("Date created"). An empty string means SortName.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.TrimSpace(s) {
	case "", "name", "Name":
		return SortName, nil
	case "date-modified", "Date modified":
		return SortDateModified, nil
	case "date-created", "Date created":
		return SortDateCreated, nil
	}
	return SortName, ErrUnknownSortKey
}

// Derive returns tasks stably sorted ascending by key, keeping only those
// whose text contains search, ignoring case. An empty search keeps all.
func Derive(tasks []tasksvc.Task, key SortKey, search string) []tasksvc.Task {
	out := make([]tasksvc.Task, len(tasks))
	copy(out, tasks)

	sort.SliceStable(out, less(out, key))

	if search == "" {
		return out
	}

	needle := strings.ToLower(search)
	filtered := out[:0]
	for _, t := range out {
		if strings.Contains(strings.ToLower(t.Text), needle) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

func less(tasks []tasksvc.Task, key SortKey) func(i, j int) bool {
	switch key {
	case SortDateModified:
		return func(i, j int) bool { return tasks[i].UpdatedAt.Before(tasks[j].UpdatedAt) }
	case SortDateCreated:
		return func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) }
	}
	return func(i, j int) bool { return tasks[i].Text < tasks[j].Text }
}
