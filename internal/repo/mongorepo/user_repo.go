package mongorepo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/xxxsen/mtodo/internal/model"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
)

type tokenDoc struct {
	Access string `bson:"access"`
	Token  string `bson:"token"`
}

type userDoc struct {
	ID       primitive.ObjectID `bson:"_id"`
	Email    string             `bson:"email"`
	Password string             `bson:"password"`
	Tokens   []tokenDoc         `bson:"tokens"`
	Ctime    int64              `bson:"ctime"`
	Mtime    int64              `bson:"mtime"`
}

func (d *userDoc) toModel() *model.User {
	tokens := make([]model.Token, 0, len(d.Tokens))
	for _, t := range d.Tokens {
		tokens = append(tokens, model.Token{Access: t.Access, Token: t.Token})
	}
	return &model.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		Tokens:       tokens,
		Ctime:        d.Ctime,
		Mtime:        d.Mtime,
	}
}

type UserRepo struct {
	coll *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{coll: db.Collection(usersCollection)}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return appErr.ErrInvalid
	}
	tokens := make([]tokenDoc, 0, len(user.Tokens))
	for _, t := range user.Tokens {
		tokens = append(tokens, tokenDoc{Access: t.Access, Token: t.Token})
	}
	doc := userDoc{
		ID:       oid,
		Email:    user.Email,
		Password: user.PasswordHash,
		Tokens:   tokens,
		Ctime:    user.Ctime,
		Mtime:    user.Mtime,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return doc.toModel(), nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, appErr.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByToken matches access and token on the same token list element.
func (r *UserRepo) GetByToken(ctx context.Context, userID, access, token string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, appErr.ErrNotFound
	}
	return r.findOne(ctx, bson.M{
		"_id": oid,
		"tokens": bson.M{"$elemMatch": bson.M{
			"access": access,
			"token":  token,
		}},
	})
}

func (r *UserRepo) AppendToken(ctx context.Context, userID string, token model.Token) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return appErr.ErrNotFound
	}
	update := bson.M{"$push": bson.M{"tokens": tokenDoc{Access: token.Access, Token: token.Token}}}
	return r.updateOne(ctx, oid, update)
}

func (r *UserRepo) RemoveToken(ctx context.Context, userID, token string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return appErr.ErrNotFound
	}
	update := bson.M{"$pull": bson.M{"tokens": bson.M{"token": token}}}
	return r.updateOne(ctx, oid, update)
}

func (r *UserRepo) Update(ctx context.Context, userID string, patch model.UserPatch) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return appErr.ErrNotFound
	}
	set := bson.M{"mtime": patch.Mtime}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		set["password"] = *patch.PasswordHash
	}
	err = r.updateOne(ctx, oid, bson.M{"$set": set})
	if mongo.IsDuplicateKeyError(err) {
		return appErr.ErrConflict
	}
	return err
}

func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return appErr.ErrNotFound
	}
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *UserRepo) updateOne(ctx context.Context, oid primitive.ObjectID, update bson.M) error {
	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
