package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"officedj/internal/core"
)

var reactionRowColumns = []string{"id", "song_id", "user_id", "user_name", "emoji", "created_at"}

func newReactionStoreForTest(t *testing.T) (*ReactionStore, pgxmock.PgxPoolIface, *capturingPublisher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	pub := &capturingPublisher{}
	return NewReactionStore(mock, pub, zap.NewNop()), mock, pub
}

func TestSetReactionInsertsWhenNonePresent(t *testing.T) {
	s, mock, pub := newReactionStoreForTest(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, emoji FROM song_reactions").
		WithArgs("song1", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "emoji"}))

	mock.ExpectQuery("INSERT INTO song_reactions").
		WithArgs("song1", "u1", "Alice", "🔥").
		WillReturnRows(pgxmock.NewRows(reactionRowColumns).
			AddRow("r1", "song1", "u1", "Alice", "🔥", time.Now()))

	r, err := s.SetReaction(context.Background(), "song1", "u1", "Alice", "🔥")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "🔥", r.Emoji)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.EventInsert, pub.events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetReactionSameEmojiToggesOff(t *testing.T) {
	s, mock, pub := newReactionStoreForTest(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, emoji FROM song_reactions").
		WithArgs("song1", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "emoji"}).AddRow("r1", "🔥"))

	mock.ExpectExec("DELETE FROM song_reactions").
		WithArgs("r1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	r, err := s.SetReaction(context.Background(), "song1", "u1", "Alice", "🔥")
	require.NoError(t, err)
	assert.Nil(t, r)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.EventDelete, pub.events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetReactionDifferentEmojiReplaces(t *testing.T) {
	s, mock, pub := newReactionStoreForTest(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, emoji FROM song_reactions").
		WithArgs("song1", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "emoji"}).AddRow("r1", "🔥"))

	mock.ExpectQuery("UPDATE song_reactions SET emoji").
		WithArgs("r1", "💃").
		WillReturnRows(pgxmock.NewRows(reactionRowColumns).
			AddRow("r1", "song1", "u1", "Alice", "💃", time.Now()))

	r, err := s.SetReaction(context.Background(), "song1", "u1", "Alice", "💃")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "💃", r.Emoji)

	require.Len(t, pub.events, 1)
	assert.Equal(t, core.EventUpdate, pub.events[0].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReactionsEmptyInput(t *testing.T) {
	s, mock, _ := newReactionStoreForTest(t)
	defer mock.Close()

	reactions, err := s.ListReactions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, reactions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
