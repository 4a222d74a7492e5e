package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"gorm.io/gorm"
)

// Conversation is one chat conversation owned by a user. Its batches are
// append-only; UpdatedAt is advanced in the same transaction that appends a
// batch, so it is never older than the newest batch.
type Conversation struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// User who owns this conversation
	User string `json:"user" gorm:"not null;index"`

	// Title is set by the title pass during early exchanges, nil until then
	Title *string `json:"title,omitempty"`

	Batches []MessageBatch `json:"-" gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE"`
}

func (c *Conversation) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// MessageBatch is one atomic exchange: the user prompt turn plus every
// assistant/tool turn it produced. Batches are immutable once written.
type MessageBatch struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;not null;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`

	// Turns contains the ordered turn sequence in JSONB format
	Turns pgtype.JSONB `json:"turns" gorm:"type:jsonb;not null"`

	// SideChannel stores citations and derived signals for this exchange
	SideChannel pgtype.JSONB `json:"side_channel,omitempty" gorm:"type:jsonb"`
}

func (b *MessageBatch) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
