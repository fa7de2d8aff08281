package domain

import (
	"fmt"
	"math/rand"
	"time"
)

type RoomID string

const MaxRoomIDLen = 64

// Room holds room metadata only; membership lives in core.
type Room struct {
	ID         RoomID
	Passphrase string
	CreatedAt  time.Time
	CreatedBy  string
}

// NewRoom builds a room record. An empty passphrase means an open room,
// an empty creator is recorded as Anonymous.
func NewRoom(id RoomID, passphrase, createdBy string) *Room {
	if createdBy == "" {
		createdBy = "Anonymous"
	}
	return &Room{
		ID:         id,
		Passphrase: passphrase,
		CreatedAt:  time.Now(),
		CreatedBy:  createdBy,
	}
}

// HasPassphrase reports whether joining requires a passphrase.
func (r *Room) HasPassphrase() bool { return r.Passphrase != "" }

// CheckPassphrase requires exact equality; an open room accepts only
// an empty input.
func (r *Room) CheckPassphrase(input string) bool { return r.Passphrase == input }

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRoomID produces an id for rooms created without a name,
// in the form room_<unixms>_<suffix>.
func GenerateRoomID() RoomID {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return RoomID(fmt.Sprintf("room_%d_%s", time.Now().UnixMilli(), suffix))
}
