// Package mongorepo stores users and todos in MongoDB through the official
// driver. Token list changes use $push/$pull so concurrent logins never lose
// an update.
package mongorepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	todosCollection = "todos"
)

type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

func Open(ctx context.Context, uri, database string) (*DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &DB{client: client, db: client.Database(database)}, nil
}

func (d *DB) Database() *mongo.Database {
	return d.db
}

// EnsureIndexes creates the unique email index and the owner index on todos.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	_, err := d.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}
	_, err = d.db.Collection(todosCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: creatorField, Value: 1}, {Key: "ctime", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("todos owner index: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}
