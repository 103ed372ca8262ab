package repositories

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-service/internal/db"
	"realtime-service/internal/models"
)

var testDB *sqlx.DB

func TestMain(m *testing.M) {
	if os.Getenv("REALTIME_INTEGRATION") != "1" {
		os.Exit(m.Run())
	}

	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	conn, err := sqlx.Connect("postgres", server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		conn.Close()
		server.Stop()
		os.Exit(1)
	}
	testDB = conn

	code := m.Run()

	conn.Close()
	server.Stop()
	os.Exit(code)
}

func resetDatabase(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("set REALTIME_INTEGRATION=1 to run database tests")
	}
	for _, table := range []string{"messages", "chat_rooms", "notifications", "friendships"} {
		_, err := testDB.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func TestPostgresFriendshipRepo_Lifecycle(t *testing.T) {
	resetDatabase(t)
	ctx := context.Background()
	repo := NewFriendshipRepo(testDB)

	req, err := repo.CreateRequest(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, req.Status)

	_, err = repo.CreateRequest(ctx, 2, 1)
	assert.ErrorIs(t, err, ErrConflict)

	received, err := repo.ListPendingReceived(ctx, 2)
	require.NoError(t, err)
	require.Len(t, received, 1)

	_, err = repo.UpdateStatus(ctx, req.ID, models.FriendshipPending, models.FriendshipRejected)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, req.ID, models.FriendshipPending, models.FriendshipAccepted)
	assert.ErrorIs(t, err, ErrConflict)

	again, err := repo.CreateRequest(ctx, 2, 1)
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, again.ID, models.FriendshipPending, models.FriendshipAccepted)
	require.NoError(t, err)

	friends, err := repo.ListFriendIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, friends)

	blocked, err := repo.Block(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipBlocked, blocked.Status)

	removed, err := repo.DeleteBetween(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = repo.GetBetween(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresChatRepo_ConcurrentGetOrCreate(t *testing.T) {
	resetDatabase(t)
	ctx := context.Background()
	repo := NewChatRepo(testDB)

	var wg sync.WaitGroup
	rooms := make([]int64, 8)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := repo.GetOrCreateRoom(ctx, 7, 3)
			assert.NoError(t, err)
			rooms[i] = room.ID
		}(i)
	}
	wg.Wait()

	for _, id := range rooms {
		assert.Equal(t, rooms[0], id)
	}
	room, err := repo.GetRoom(ctx, rooms[0])
	require.NoError(t, err)
	assert.Equal(t, int64(3), room.User1ID)
	assert.Equal(t, int64(7), room.User2ID)
}

func TestPostgresMessageRepo_AppendAndRead(t *testing.T) {
	resetDatabase(t)
	ctx := context.Background()
	rooms := NewChatRepo(testDB)
	msgs := NewMessageRepo(testDB)

	room, created, err := rooms.GetOrCreateRoom(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, created)

	for _, body := range []string{"hello", "how are you", "bye"} {
		_, err := msgs.Append(ctx, room.ID, 1, "alice", body)
		require.NoError(t, err)
	}

	recent, err := msgs.Recent(ctx, room.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "how are you", recent[0].Content)
	assert.Equal(t, "bye", recent[1].Content)

	unread, err := msgs.UnreadCountForUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	summaries, err := rooms.ListRooms(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 3, summaries[0].UnreadCount)
	assert.Equal(t, "bye", summaries[0].LastMessage)

	n, err := msgs.MarkRoomRead(ctx, room.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = msgs.Append(ctx, room.ID+1000, 1, "alice", "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresNotificationRepo(t *testing.T) {
	resetDatabase(t)
	ctx := context.Background()
	repo := NewNotificationRepo(testDB)
	sender := int64(5)

	n, err := repo.Create(ctx, models.Notification{
		RecipientID: 4, SenderID: &sender, SenderName: "eve",
		Type: models.NotificationComment, Message: "eve commented", Link: "/pin/1/",
	})
	require.NoError(t, err)
	assert.False(t, n.IsRead)

	assert.ErrorIs(t, repo.MarkRead(ctx, n.ID, 99), ErrNotFound)

	unread, err := repo.Recent(ctx, 4, 10, true)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	marked, err := repo.MarkAllRead(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	count, err := repo.UnreadCount(ctx, 4)
	require.NoError(t, err)
	assert.Zero(t, count)
}
