package chat

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/sandeepstele/guruheal-agent/pkg/db"
	"github.com/sandeepstele/guruheal-agent/pkg/db/models"
)

// Store is the durable conversation store. Batches are append-only and every
// append advances the owning conversation's updated_at in the same
// transaction.
type Store struct {
	dbc *db.DB
}

func NewStore(dbc *db.DB) *Store {
	return &Store{dbc: dbc}
}

// Batch is a decoded message batch.
type Batch struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Turns       []Turn
	SideChannel *SideChannel
}

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	LastUsed string `json:"last_used"`
}

func (s *Store) CreateConversation(ctx context.Context, userID string) (uuid.UUID, error) {
	conversation := models.Conversation{User: userID}
	if err := s.dbc.DB.WithContext(ctx).Create(&conversation).Error; err != nil {
		return uuid.Nil, errors.Wrapf(ErrStoreUnavailable, "creating conversation for user %s: %v", userID, err)
	}
	return conversation.ID, nil
}

// DeleteConversation removes a conversation and all its batches. Deleting an
// unknown id fails with ErrNotFound; deleting a known id succeeds exactly
// once.
func (s *Store) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	return s.dbc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&models.MessageBatch{}).Error; err != nil {
			return errors.Wrapf(ErrStoreUnavailable, "deleting batches for conversation %s: %v", id, err)
		}

		res := tx.Where("id = ?", id).Delete(&models.Conversation{})
		if res.Error != nil {
			return errors.Wrapf(ErrStoreUnavailable, "deleting conversation %s: %v", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "conversation %s", id)
		}
		return nil
	})
}

func (s *Store) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	res := s.dbc.DB.WithContext(ctx).Model(&models.Conversation{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return errors.Wrapf(ErrStoreUnavailable, "updating title for conversation %s: %v", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "conversation %s", id)
	}
	return nil
}

// ListConversations returns a user's conversations, most recently updated
// first. Conversations that never received a title get a synthesized
// placeholder.
func (s *Store) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	var conversations []models.Conversation
	err := s.dbc.DB.WithContext(ctx).
		Where("\"user\" = ?", userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "listing conversations for user %s: %v", userID, err)
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		title := placeholderTitle(c.ID)
		if c.Title != nil && *c.Title != "" {
			title = *c.Title
		}
		summaries = append(summaries, ConversationSummary{
			ID:       c.ID.String(),
			Title:    title,
			LastUsed: wireTimestamp(c.UpdatedAt),
		})
	}
	return summaries, nil
}

func placeholderTitle(id uuid.UUID) string {
	return "New conversation " + id.String()[:5]
}

// AppendBatch persists one exchange atomically: the batch row and the
// conversation's updated_at advance in a single transaction, so either both
// are visible or neither is.
func (s *Store) AppendBatch(ctx context.Context, conversationID uuid.UUID, turns []Turn, sideChannel *SideChannel) error {
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return errors.Wrapf(err, "marshaling turns for conversation %s", conversationID)
	}

	batch := models.MessageBatch{ConversationID: conversationID}
	if err := batch.Turns.Set(turnsJSON); err != nil {
		return errors.Wrap(err, "setting turns JSONB")
	}
	if sideChannel != nil {
		sideJSON, err := json.Marshal(sideChannel)
		if err != nil {
			return errors.Wrap(err, "marshaling side channel")
		}
		if err := batch.SideChannel.Set(sideJSON); err != nil {
			return errors.Wrap(err, "setting side channel JSONB")
		}
	} else if err := batch.SideChannel.Set(nil); err != nil {
		return errors.Wrap(err, "setting side channel JSONB")
	}

	return s.dbc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&batch).Error; err != nil {
			return errors.Wrapf(ErrStoreUnavailable, "appending batch to conversation %s: %v", conversationID, err)
		}

		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return errors.Wrapf(ErrStoreUnavailable, "advancing updated_at for conversation %s: %v", conversationID, res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.Wrapf(ErrNotFound, "conversation %s", conversationID)
		}
		return nil
	})
}

// BatchCount returns the number of batches persisted for a conversation.
func (s *Store) BatchCount(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var count int64
	err := s.dbc.DB.WithContext(ctx).Model(&models.MessageBatch{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrapf(ErrStoreUnavailable, "counting batches for conversation %s: %v", conversationID, err)
	}
	return count, nil
}

// FetchWindow returns a bounded history window in chronological order. When
// the conversation holds more than limit batches, the very first batch is
// always retained (it seeds the conversation's context) together with the
// limit-1 most recently created batches, re-sorted ascending. The window may
// therefore have a gap after the first batch.
func (s *Store) FetchWindow(ctx context.Context, conversationID uuid.UUID, limit int) ([]Batch, error) {
	count, err := s.BatchCount(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	var rows []models.MessageBatch
	if count <= int64(limit) {
		err = s.dbc.DB.WithContext(ctx).
			Where("conversation_id = ?", conversationID).
			Order("created_at ASC").
			Find(&rows).Error
		if err != nil {
			return nil, errors.Wrapf(ErrStoreUnavailable, "fetching batches for conversation %s: %v", conversationID, err)
		}
	} else {
		var first models.MessageBatch
		err = s.dbc.DB.WithContext(ctx).
			Where("conversation_id = ?", conversationID).
			Order("created_at ASC").
			First(&first).Error
		if err != nil {
			return nil, errors.Wrapf(ErrStoreUnavailable, "fetching first batch for conversation %s: %v", conversationID, err)
		}

		var recent []models.MessageBatch
		err = s.dbc.DB.WithContext(ctx).
			Where("conversation_id = ? AND id <> ?", conversationID, first.ID).
			Order("created_at DESC").
			Limit(limit - 1).
			Find(&recent).Error
		if err != nil {
			return nil, errors.Wrapf(ErrStoreUnavailable, "fetching recent batches for conversation %s: %v", conversationID, err)
		}

		rows = append([]models.MessageBatch{first}, recent...)
		sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	}

	batches := make([]Batch, 0, len(rows))
	for i := range rows {
		batch, err := decodeBatch(&rows[i])
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// FetchFullHistory reconstructs the whole conversation as wire messages in
// chronological order. Batches carrying a side-channel payload get one
// synthetic metadata message right after their projected turns, timestamped
// at the batch's creation.
func (s *Store) FetchFullHistory(ctx context.Context, conversationID uuid.UUID) ([]WireMessage, error) {
	var rows []models.MessageBatch
	err := s.dbc.DB.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "fetching history for conversation %s: %v", conversationID, err)
	}

	history := []WireMessage{}
	for i := range rows {
		batch, err := decodeBatch(&rows[i])
		if err != nil {
			return nil, err
		}

		history = append(history, ProjectTurns(batch.Turns, conversationID.String())...)

		if batch.SideChannel != nil {
			history = append(history, WireMessage{
				Role:           WireRoleMetadata,
				ConversationID: conversationID.String(),
				Timestamp:      wireTimestamp(batch.CreatedAt),
				Content:        batch.SideChannel,
			})
		}
	}
	return history, nil
}

func decodeBatch(row *models.MessageBatch) (Batch, error) {
	batch := Batch{ID: row.ID, CreatedAt: row.CreatedAt}

	var turns []Turn
	if err := json.Unmarshal(row.Turns.Bytes, &turns); err != nil {
		return Batch{}, errors.Wrapf(ErrMalformedRecord, "parsing turns for batch %s: %v", row.ID, err)
	}
	batch.Turns = turns

	if row.SideChannel.Status == pgtype.Present {
		var side SideChannel
		if err := json.Unmarshal(row.SideChannel.Bytes, &side); err != nil {
			return Batch{}, errors.Wrapf(ErrMalformedRecord, "parsing side channel for batch %s: %v", row.ID, err)
		}
		batch.SideChannel = &side
	}
	return batch, nil
}
