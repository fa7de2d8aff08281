package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
)

// RoomManagerImpl is the authoritative room table behind one RWMutex.
type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]core.RoomService
}

func NewRoomManager() core.RoomFactory {
	return &RoomManagerImpl{rooms: make(map[domain.RoomID]core.RoomService)}
}

// Create registers a new room. An empty id gets a generated one. Fails
// without mutating the table when the id is taken or over the length bound.
func (f *RoomManagerImpl) Create(id domain.RoomID, passphrase, createdBy string) (core.RoomService, error) {
	if id == "" {
		id = domain.GenerateRoomID()
	}
	if len(id) > domain.MaxRoomIDLen {
		return nil, domain.ErrRoomIDTooLong
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[id]; ok {
		return nil, domain.ErrRoomAlreadyExists
	}
	room := core.NewRoomService(domain.NewRoom(id, passphrase, createdBy))
	f.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("created_by", createdBy).Bool("has_passphrase", passphrase != "").Msg("room created")
	return room, nil
}

func (f *RoomManagerImpl) Get(id domain.RoomID) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[id]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for id, r := range f.rooms {
		out = append(out, core.RoomInfo{
			ID:            id,
			MemberCount:   r.MemberCount(),
			HasPassphrase: r.Room().HasPassphrase(),
			Members:       r.MembersSnapshot(),
		})
	}
	return out
}

func (f *RoomManagerImpl) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

func (f *RoomManagerImpl) Delete(id domain.RoomID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room deleted")
}
