package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Action string

const (
	ActionShare    Action = "share"
	ActionView     Action = "view"
	ActionDownload Action = "download"
)

func (a Action) Valid() bool {
	switch a {
	case ActionShare, ActionView, ActionDownload:
		return true
	}
	return false
}

// ActivityLog is an append-only audit record of one share event.
type ActivityLog struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ShareID    primitive.ObjectID `bson:"share_id" json:"shareId"`
	AccessedBy primitive.ObjectID `bson:"accessed_by" json:"accessedBy"`
	Action     Action             `bson:"action" json:"action"`
	IPAddress  *string            `bson:"ip_address" json:"ipAddress"`
	UserAgent  *string            `bson:"user_agent" json:"userAgent"`
	CreatedAt  time.Time          `bson:"created_at" json:"createdAt"`
}
