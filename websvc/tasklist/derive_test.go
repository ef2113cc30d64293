package tasklist

import (
	"testing"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t1 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 = t1.Add(time.Hour)
	t3 = t1.Add(2 * time.Hour)
)

func ids(tasks []tasksvc.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestDeriveSortKeys(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "b", Text: "B", CreatedAt: t1, UpdatedAt: t3},
		{ID: "a", Text: "A", CreatedAt: t2, UpdatedAt: t2},
	}

	assert.Equal(t, []string{"a", "b"}, ids(Derive(tasks, SortName, "")))
	assert.Equal(t, []string{"b", "a"}, ids(Derive(tasks, SortDateCreated, "")))
	assert.Equal(t, []string{"a", "b"}, ids(Derive(tasks, SortDateModified, "")))
}

func TestDeriveDoesNotModifyInput(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "2", Text: "zeta"},
		{ID: "1", Text: "alpha"},
		{ID: "3", Text: "mid"},
	}
	before := append([]tasksvc.Task(nil), tasks...)

	got := Derive(tasks, SortName, "a")

	assert.Equal(t, before, tasks)
	assert.Equal(t, []string{"1", "2"}, ids(got))
}

func TestDeriveIsAPermutation(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "1", Text: "c", CreatedAt: t3},
		{ID: "2", Text: "a", CreatedAt: t1},
		{ID: "3", Text: "b", CreatedAt: t2},
		{ID: "4", Text: "a", CreatedAt: t2},
	}

	for _, key := range []SortKey{SortName, SortDateModified, SortDateCreated} {
		got := Derive(tasks, key, "")
		assert.ElementsMatch(t, tasks, got, key.String())
	}
}

func TestDeriveIsStable(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "1", Text: "same", CreatedAt: t1},
		{ID: "2", Text: "same", CreatedAt: t1},
		{ID: "3", Text: "same", CreatedAt: t1},
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids(Derive(tasks, SortName, "")))
	assert.Equal(t, []string{"1", "2", "3"}, ids(Derive(tasks, SortDateCreated, "")))
}

func TestDeriveNameIsByteWise(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "lower", Text: "apple"},
		{ID: "upper", Text: "Banana"},
	}

	assert.Equal(t, []string{"upper", "lower"}, ids(Derive(tasks, SortName, "")))
}

func TestDeriveSearch(t *testing.T) {
	tasks := []tasksvc.Task{
		{ID: "1", Text: "Eat lunch"},
		{ID: "2", Text: "Write report"},
		{ID: "3", Text: "Great expectations"},
	}

	assert.Equal(t, []string{"1", "3"}, ids(Derive(tasks, SortName, "eat")))
	assert.Equal(t, []string{"1", "3"}, ids(Derive(tasks, SortName, "EAT")))
	assert.Empty(t, Derive(tasks, SortName, "nothing"))
	assert.Len(t, Derive(tasks, SortName, ""), 3)
}

func TestDeriveEmpty(t *testing.T) {
	assert.Empty(t, Derive(nil, SortName, ""))
	assert.Empty(t, Derive(nil, SortName, "x"))
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in   string
		want SortKey
	}{
		{"", SortName},
		{"name", SortName},
		{"Name", SortName},
		{"date-modified", SortDateModified},
		{"Date modified", SortDateModified},
		{"date-created", SortDateCreated},
		{"Date created", SortDateCreated},
	}
	for _, tt := range tests {
		got, err := ParseSortKey(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseSortKey("priority")
	assert.ErrorIs(t, err, ErrUnknownSortKey)
}

func TestSortKeyRoundTrip(t *testing.T) {
	for _, key := range []SortKey{SortName, SortDateModified, SortDateCreated} {
		got, err := ParseSortKey(key.String())
		require.NoError(t, err)
		assert.Equal(t, key, got)

		got, err = ParseSortKey(key.Label())
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}
}
