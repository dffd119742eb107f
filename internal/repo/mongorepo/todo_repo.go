package mongorepo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/ownership"
)

const creatorField = "_creator"

type todoDoc struct {
	ID          primitive.ObjectID `bson:"_id"`
	Text        string             `bson:"text"`
	Completed   bool               `bson:"completed"`
	CompletedAt *int64             `bson:"completedAt"`
	Creator     primitive.ObjectID `bson:"_creator"`
	Ctime       int64              `bson:"ctime"`
	Mtime       int64              `bson:"mtime"`
}

func (d *todoDoc) toModel() *model.Todo {
	return &model.Todo{
		ID:          d.ID.Hex(),
		Text:        d.Text,
		Completed:   d.Completed,
		CompletedAt: d.CompletedAt,
		Creator:     d.Creator.Hex(),
		Ctime:       d.Ctime,
		Mtime:       d.Mtime,
	}
}

type TodoRepo struct {
	coll *mongo.Collection
}

func NewTodoRepo(db *mongo.Database) *TodoRepo {
	return &TodoRepo{coll: db.Collection(todosCollection)}
}

// scoped builds an owner-restricted filter. ok is false when either id cannot
// exist, in which case nothing can match.
func scoped(owner string, query bson.M) (bson.M, bool) {
	ownerID, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return nil, false
	}
	return ownership.Scope(creatorField, ownerID, query), true
}

func byID(owner, todoID string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(todoID)
	if err != nil {
		return nil, false
	}
	return scoped(owner, bson.M{"_id": oid})
}

func (r *TodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	oid, err := primitive.ObjectIDFromHex(todo.ID)
	if err != nil {
		return appErr.ErrInvalid
	}
	creator, err := primitive.ObjectIDFromHex(todo.Creator)
	if err != nil {
		return appErr.ErrInvalid
	}
	doc := todoDoc{
		ID:          oid,
		Text:        todo.Text,
		Completed:   todo.Completed,
		CompletedAt: todo.CompletedAt,
		Creator:     creator,
		Ctime:       todo.Ctime,
		Mtime:       todo.Mtime,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *TodoRepo) List(ctx context.Context, owner string) ([]model.Todo, error) {
	filter, ok := scoped(owner, bson.M{})
	if !ok {
		return []model.Todo{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "ctime", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []todoDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	todos := make([]model.Todo, 0, len(docs))
	for i := range docs {
		todos = append(todos, *docs[i].toModel())
	}
	return todos, nil
}

func (r *TodoRepo) Get(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	filter, ok := byID(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	var doc todoDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

func (r *TodoRepo) Update(ctx context.Context, owner, todoID string, patch model.TodoPatch) (*model.Todo, error) {
	filter, ok := byID(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	set := bson.M{
		"completed":   patch.Completed,
		"completedAt": nil,
		"mtime":       patch.Mtime,
	}
	if patch.Completed && patch.CompletedAt != nil {
		set["completedAt"] = *patch.CompletedAt
	}
	if patch.Text != nil {
		set["text"] = *patch.Text
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc todoDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

func (r *TodoRepo) Delete(ctx context.Context, owner, todoID string) (*model.Todo, error) {
	filter, ok := byID(owner, todoID)
	if !ok {
		return nil, appErr.ErrNotFound
	}
	var doc todoDoc
	if err := r.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toModel(), nil
}

func (r *TodoRepo) DeleteAll(ctx context.Context, owner string) (int64, error) {
	filter, ok := scoped(owner, bson.M{})
	if !ok {
		return 0, nil
	}
	result, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return appErr.ErrNotFound
	}
	return err
}
