package service

import "go.mongodb.org/mongo-driver/bson/primitive"

func newID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether id has the shape of an id minted by newID.
func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}
