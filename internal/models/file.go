package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type File struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Filename     string             `bson:"filename" json:"filename"`
	OriginalName string             `bson:"original_name" json:"originalName"`
	// ObjectName is the durable content locator inside the bucket.
	ObjectName string              `bson:"object_name" json:"-"`
	MimeType   string              `bson:"mime_type" json:"mimeType"`
	Size       int64               `bson:"size" json:"size"`
	FolderID   *primitive.ObjectID `bson:"folder_id" json:"folderId"`
	IsPublic   bool                `bson:"is_public" json:"isPublic"`
	Owner      primitive.ObjectID  `bson:"owner" json:"owner"`
	CreatedAt  time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updated_at" json:"updatedAt"`
}
