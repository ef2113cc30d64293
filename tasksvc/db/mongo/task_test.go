package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDocumentRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	in := tasksvc.Task{
		UID:       "alice",
		Text:      "Eat lunch",
		Deadline:  "2024-03-01T12:00",
		Starred:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc := toDocument(in)
	assert.True(t, doc.ID.IsZero(), "id is assigned by the store")

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "_id")
	for _, k := range []string{"task", "deadline", "starred", "uid", "createdAt", "updatedAt"} {
		assert.Contains(t, fields, k)
	}

	doc.ID = primitive.NewObjectID()
	out := doc.task()
	assert.Equal(t, doc.ID.Hex(), out.ID)
	in.ID = out.ID
	assert.Equal(t, in, out)
}

func TestSetFields(t *testing.T) {
	starred := false
	now := time.Now()

	set := setFields(tasksvc.Fields{Starred: &starred, UpdatedAt: &now})
	assert.Equal(t, bson.M{"starred": false, "updatedAt": now}, set)

	assert.Empty(t, setFields(tasksvc.Fields{}))
}

func TestOwnerFilter(t *testing.T) {
	oid := primitive.NewObjectID()

	filter, err := ownerFilter("alice", oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": oid, "uid": "alice"}, filter)

	_, err = ownerFilter("alice", "not-an-object-id")
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=50&connectTimeoutMS=50")
	assert.Error(t, err)
	assert.Nil(t, client)
}
