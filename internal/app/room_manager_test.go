package app_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelroom/babelroom/internal/app"
	"github.com/babelroom/babelroom/internal/domain"
)

func TestRoomManager_Create(t *testing.T) {
	rooms := app.NewRoomManager()

	room, err := rooms.Create("r1", "secret", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("r1"), room.Room().ID)
	assert.True(t, room.Room().HasPassphrase())
	assert.Equal(t, "alice", room.Room().CreatedBy)

	got, ok := rooms.Get("r1")
	require.True(t, ok)
	assert.Same(t, room.Room(), got.Room())
}

func TestRoomManager_CreateDuplicateLeavesRegistryUnchanged(t *testing.T) {
	rooms := app.NewRoomManager()

	first, err := rooms.Create("r1", "", "alice")
	require.NoError(t, err)

	_, err = rooms.Create("r1", "other", "bob")
	assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)

	assert.Equal(t, 1, rooms.Count())
	got, ok := rooms.Get("r1")
	require.True(t, ok)
	assert.Same(t, first.Room(), got.Room())
	assert.False(t, got.Room().HasPassphrase())
}

func TestRoomManager_CreateGeneratesUniqueIDs(t *testing.T) {
	rooms := app.NewRoomManager()

	seen := make(map[domain.RoomID]struct{})
	for i := 0; i < 20; i++ {
		room, err := rooms.Create("", "", "")
		require.NoError(t, err)
		id := room.Room().ID
		assert.NotEmpty(t, id)
		_, dup := seen[id]
		assert.False(t, dup, "generated id %s repeated", id)
		seen[id] = struct{}{}
	}
	assert.Equal(t, 20, rooms.Count())
}

func TestRoomManager_CreateRejectsOverlongID(t *testing.T) {
	rooms := app.NewRoomManager()

	longID := domain.RoomID(strings.Repeat("x", domain.MaxRoomIDLen+1))
	_, err := rooms.Create(longID, "", "")
	assert.ErrorIs(t, err, domain.ErrRoomIDTooLong)
	assert.Zero(t, rooms.Count())

	_, err = rooms.Create(domain.RoomID(strings.Repeat("x", domain.MaxRoomIDLen)), "", "")
	assert.NoError(t, err)
}

func TestRoomManager_ListSnapshot(t *testing.T) {
	rooms := app.NewRoomManager()

	_, err := rooms.Create("open", "", "alice")
	require.NoError(t, err)
	_, err = rooms.Create("locked", "pw", "bob")
	require.NoError(t, err)

	infos := rooms.List()
	require.Len(t, infos, 2)
	byID := make(map[domain.RoomID]bool)
	for _, info := range infos {
		byID[info.ID] = info.HasPassphrase
		assert.Zero(t, info.MemberCount)
		assert.Empty(t, info.Members)
	}
	assert.False(t, byID["open"])
	assert.True(t, byID["locked"])
}

func TestRoomManager_Delete(t *testing.T) {
	rooms := app.NewRoomManager()

	_, err := rooms.Create("r1", "", "")
	require.NoError(t, err)
	rooms.Delete("r1")

	_, ok := rooms.Get("r1")
	assert.False(t, ok)
	assert.Empty(t, rooms.List())
}
