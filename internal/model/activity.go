package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityTypeSessionClosed is emitted when an opname session is saved
// and closed; the manage screen polls for it to raise notifications.
const ActivityTypeSessionClosed = "SESSION_CLOSED"

// Activity is one coarse workflow event. The log is append-then-trim:
// writes keep only the most recent N rows (config ACTIVITY_KEEP_LIMIT).
type Activity struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Type      string    `json:"type" gorm:"type:varchar(50);index"`
	User      string    `json:"user" gorm:"type:varchar(100)"`
	Rack      string    `json:"rack" gorm:"type:varchar(100)"`
	Message   string    `json:"message" gorm:"type:text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
