package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ResourceType string

const (
	ResourceFile   ResourceType = "file"
	ResourceFolder ResourceType = "folder"
)

func (t ResourceType) Valid() bool {
	return t == ResourceFile || t == ResourceFolder
}

// Permissions gate the two access actions independently: Read allows viewing,
// Download allows fetching the raw bytes. Neither implies the other.
type Permissions struct {
	Read     bool `bson:"read" json:"read"`
	Download bool `bson:"download" json:"download"`
}

func DefaultPermissions() Permissions {
	return Permissions{Read: true, Download: false}
}

// Share is a grant of one resource to a fixed set of recipients. It is written
// once and never updated.
type Share struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	CreatedBy    primitive.ObjectID   `bson:"created_by" json:"createdBy"`
	ResourceID   primitive.ObjectID   `bson:"resource_id" json:"resourceId"`
	ResourceType ResourceType         `bson:"resource_type" json:"resourceType"`
	AllocatedTo  []primitive.ObjectID `bson:"allocated_to" json:"allocatedTo"`
	Permissions  Permissions          `bson:"permissions" json:"permissions"`
	Token        string               `bson:"token" json:"-"`
	ExpiresAt    *time.Time           `bson:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time            `bson:"created_at" json:"createdAt"`
}

func (s *Share) IsAllocated(userID primitive.ObjectID) bool {
	for _, id := range s.AllocatedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// Expired reports whether ExpiresAt is set and not in the future.
func (s *Share) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}
