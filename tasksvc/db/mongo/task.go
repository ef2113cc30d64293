package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	stdmongo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the collection every task document lives in.
const CollectionName = "tasks"

type taskDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Task      string             `bson:"task"`
	Deadline  string             `bson:"deadline"`
	Starred   bool               `bson:"starred"`
	UID       string             `bson:"uid"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func toDocument(t tasksvc.Task) taskDocument {
	return taskDocument{
		Task:      t.Text,
		Deadline:  t.Deadline,
		Starred:   t.Starred,
		UID:       t.UID,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (d taskDocument) task() tasksvc.Task {
	return tasksvc.Task{
		ID:        d.ID.Hex(),
		UID:       d.UID,
		Text:      d.Task,
		Deadline:  d.Deadline,
		Starred:   d.Starred,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// setFields builds the $set document of a partial update.
func setFields(f tasksvc.Fields) bson.M {
	set := bson.M{}
	if f.Text != nil {
		set["task"] = *f.Text
	}
	if f.Deadline != nil {
		set["deadline"] = *f.Deadline
	}
	if f.Starred != nil {
		set["starred"] = *f.Starred
	}
	if f.UpdatedAt != nil {
		set["updatedAt"] = *f.UpdatedAt
	}
	return set
}

// ownerFilter matches one document of one owner. An id that is not an
// ObjectID can never match, so it is reported as not found.
func ownerFilter(uid, taskID string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil, tasksvc.ErrTaskNotFound
	}
	return bson.M{"_id": oid, "uid": uid}, nil
}

type taskRepository struct {
	coll *stdmongo.Collection
}

func NewTaskRepository(db *stdmongo.Database) tasksvc.TaskRepository {
	return &taskRepository{coll: db.Collection(CollectionName)}
}

// Connect opens a client and checks the deployment is reachable.
func Connect(ctx context.Context, uri string) (*stdmongo.Client, error) {
	client, err := stdmongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		if derr := client.Disconnect(ctx); derr != nil {
			return nil, fmt.Errorf("%w (disconnect: %v)", err, derr)
		}
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the owner index every query filters on.
func EnsureIndexes(ctx context.Context, db *stdmongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateOne(ctx, stdmongo.IndexModel{
		Keys: bson.D{{Key: "uid", Value: 1}},
	})
	return err
}

func (r taskRepository) Create(ctx context.Context, task tasksvc.Task) (string, error) {
	res, err := r.coll.InsertOne(ctx, toDocument(task))
	if err != nil {
		return "", err
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted id type")
	}
	return oid.Hex(), nil
}

func (r taskRepository) FindAll(ctx context.Context, uid string) ([]tasksvc.Task, error) {
	cur, err := r.coll.Find(ctx, bson.M{"uid": uid})
	if err != nil {
		return nil, err
	}

	var docs []taskDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	tasks := make([]tasksvc.Task, 0, len(docs))
	for _, d := range docs {
		tasks = append(tasks, d.task())
	}
	return tasks, nil
}

func (r taskRepository) Find(ctx context.Context, uid, taskID string) (tasksvc.Task, error) {
	filter, err := ownerFilter(uid, taskID)
	if err != nil {
		return tasksvc.Task{}, err
	}

	var doc taskDocument
	err = r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, stdmongo.ErrNoDocuments) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err != nil {
		return tasksvc.Task{}, err
	}
	return doc.task(), nil
}

func (r taskRepository) Update(ctx context.Context, uid, taskID string, f tasksvc.Fields) error {
	tk, err := r.Find(ctx, uid, taskID)
	if err != nil {
		return err
	}
	if f.UpdatedAt != nil && f.UpdatedAt.Before(tk.CreatedAt) {
		return tasksvc.ErrInvalidArgument
	}

	set := setFields(f)
	if len(set) == 0 {
		return nil
	}

	filter, _ := ownerFilter(uid, taskID)
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

func (r taskRepository) Delete(ctx context.Context, uid, taskID string) error {
	filter, err := ownerFilter(uid, taskID)
	if err != nil {
		return err
	}

	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}
