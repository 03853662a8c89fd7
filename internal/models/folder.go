package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder is a node of an owner's folder tree. Path lists the ancestor ids from
// the root down to the parent, so Path == parent.Path + [parent.ID].
type Folder struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name      string               `bson:"name" json:"name"`
	ParentID  *primitive.ObjectID  `bson:"parent_id" json:"parentId"`
	Path      []primitive.ObjectID `bson:"path" json:"path"`
	IsPublic  bool                 `bson:"is_public" json:"isPublic"`
	Owner     primitive.ObjectID   `bson:"owner" json:"owner"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updatedAt"`
}
