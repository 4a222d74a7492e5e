package chat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
	"github.com/sandeepstele/guruheal-agent/pkg/db"
	"github.com/sandeepstele/guruheal-agent/pkg/db/models"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "chat.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	dbc := &db.DB{DB: gormDB}
	require.NoError(t, dbc.UpdateSchema())
	return dbc
}

func newTestStore(t *testing.T) (*chat.Store, *db.DB) {
	t.Helper()
	dbc := newTestDB(t)
	return chat.NewStore(dbc), dbc
}

// appendExchange persists a minimal user/assistant exchange.
func appendExchange(t *testing.T, store *chat.Store, conversationID uuid.UUID, prompt, reply string, side *chat.SideChannel) {
	t.Helper()
	ts := time.Now().UTC()
	turns := []chat.Turn{
		chat.UserTurn(prompt, ts),
		chat.AssistantTurn(reply, ts),
	}
	require.NoError(t, store.AppendBatch(context.Background(), conversationID, turns, side))
}

func TestCreateAndListConversations(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	_, err = store.CreateConversation(ctx, "bob")
	require.NoError(t, err)

	summaries, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, id.String(), summaries[0].ID)
	assert.Equal(t, "New conversation "+id.String()[:5], summaries[0].Title)
	assert.NotEmpty(t, summaries[0].LastUsed)
}

func TestListConversationsOrdersByLastUse(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)
	second, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	appendExchange(t, store, first, "hello", "hi", nil)

	summaries, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, first.String(), summaries[0].ID)
	assert.Equal(t, second.String(), summaries[1].ID)
}

func TestUpdateTitle(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, store.UpdateTitle(ctx, id, "Sore throat remedies"))

	summaries, err := store.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "Sore throat remedies", summaries[0].Title)

	err = store.UpdateTitle(ctx, uuid.New(), "nope")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestDeleteConversation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)
	appendExchange(t, store, id, "hello", "hi", nil)

	require.NoError(t, store.DeleteConversation(ctx, id))

	count, err := store.BatchCount(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Second delete of the same id reports not found.
	err = store.DeleteConversation(ctx, id)
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestAppendBatchUnknownConversationRollsBack(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id := uuid.New()
	err := store.AppendBatch(ctx, id, []chat.Turn{chat.UserTurn("hello", time.Now())}, nil)
	require.ErrorIs(t, err, chat.ErrNotFound)

	count, err := store.BatchCount(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAppendBatchIsAtomic(t *testing.T) {
	store, dbc := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	// Fail the conversation update that follows the batch insert; the
	// transaction must roll the insert back too.
	require.NoError(t, dbc.DB.Callback().Update().Before("gorm:update").Register("test_fail_update", func(tx *gorm.DB) {
		tx.AddError(fmt.Errorf("injected update failure"))
	}))
	defer func() {
		require.NoError(t, dbc.DB.Callback().Update().Remove("test_fail_update"))
	}()

	err = store.AppendBatch(ctx, id, []chat.Turn{chat.UserTurn("hello", time.Now())}, nil)
	require.Error(t, err)

	count, err := store.BatchCount(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFetchWindowSmallConversation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		appendExchange(t, store, id, fmt.Sprintf("prompt %d", i), fmt.Sprintf("reply %d", i), nil)
		time.Sleep(5 * time.Millisecond)
	}

	window, err := store.FetchWindow(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, window, 3)
	for i, batch := range window {
		require.Len(t, batch.Turns, 2)
		assert.Equal(t, fmt.Sprintf("prompt %d", i+1), batch.Turns[0].Parts[0].Text)
	}
}

func TestFetchWindowKeepsFirstBatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	for i := 1; i <= 6; i++ {
		appendExchange(t, store, id, fmt.Sprintf("prompt %d", i), fmt.Sprintf("reply %d", i), nil)
		time.Sleep(5 * time.Millisecond)
	}

	window, err := store.FetchWindow(ctx, id, 5)
	require.NoError(t, err)
	require.Len(t, window, 5)

	// First batch survives, second is dropped, the rest are the newest four
	// in chronological order.
	want := []string{"prompt 1", "prompt 3", "prompt 4", "prompt 5", "prompt 6"}
	for i, batch := range window {
		assert.Equal(t, want[i], batch.Turns[0].Parts[0].Text)
	}
}

func TestFetchWindowEmptyConversation(t *testing.T) {
	store, _ := newTestStore(t)

	id, err := store.CreateConversation(context.Background(), "alice")
	require.NoError(t, err)

	window, err := store.FetchWindow(context.Background(), id, 5)
	require.NoError(t, err)
	assert.Empty(t, window)
}

func TestFetchFullHistoryInterleavesMetadata(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	side := &chat.SideChannel{
		Sources:           json.RawMessage(`[{"url":"https://example.com"}]`),
		FollowUpQuestions: []string{"Anything else?"},
	}
	appendExchange(t, store, id, "first prompt", "first reply", side)
	time.Sleep(5 * time.Millisecond)
	appendExchange(t, store, id, "second prompt", "second reply", nil)

	history, err := store.FetchFullHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 5)

	assert.Equal(t, chat.WireRoleUser, history[0].Role)
	assert.Equal(t, "first prompt", history[0].Content)
	assert.Equal(t, chat.WireRoleModel, history[1].Role)
	assert.Equal(t, chat.WireRoleMetadata, history[2].Role)
	assert.Equal(t, chat.WireRoleUser, history[3].Role)
	assert.Equal(t, "second prompt", history[3].Content)
	assert.Equal(t, chat.WireRoleModel, history[4].Role)
}

func TestFetchFullHistoryStripsToolTurns(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	ts := time.Now().UTC()
	turns := []chat.Turn{
		chat.UserTurn("search for me", ts),
		chat.ToolCallTurn("web_search", "call-1", json.RawMessage(`{"query":"remedies"}`), ts),
		chat.ToolReturnTurn("web_search", "call-1", json.RawMessage(`{"message":"found"}`), ts),
		chat.AssistantTurn("Here is what I found.", ts),
	}
	require.NoError(t, store.AppendBatch(ctx, id, turns, nil))

	history, err := store.FetchFullHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, chat.WireRoleUser, history[0].Role)
	assert.Equal(t, chat.WireRoleModel, history[1].Role)
}

func TestFetchFullHistoryMalformedTurns(t *testing.T) {
	store, dbc := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateConversation(ctx, "alice")
	require.NoError(t, err)

	batch := models.MessageBatch{ConversationID: id}
	require.NoError(t, batch.Turns.Set([]byte(`{"not":"a turn list"`)))
	require.NoError(t, batch.SideChannel.Set(nil))
	require.NoError(t, dbc.DB.Create(&batch).Error)

	_, err = store.FetchFullHistory(ctx, id)
	assert.ErrorIs(t, err, chat.ErrMalformedRecord)
}
