package core

import "github.com/babelroom/babelroom/internal/domain"

// Frame is an encoded outbound message (JSON over the signal transport).
type Frame []byte

type SessionID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	Meta() *domain.Member
	Signal() SignalConnection
}

// PublishResult reports delivery stats/backpressure to the caller.
// A dropped member is never an error: fan-out is fire-and-forget.
type PublishResult struct {
	SentTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"userName"`
	Language string        `json:"language"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Languages() []string

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)

	// Broadcast delivers data to every member except exclude.
	Broadcast(exclude SessionID, data Frame) PublishResult
	// BroadcastLanguage delivers data only to members whose preferred
	// language matches lang.
	BroadcastLanguage(exclude SessionID, lang string, data Frame) PublishResult
}

type RoomInfo struct {
	ID            domain.RoomID `json:"roomId"`
	MemberCount   int           `json:"userCount"`
	HasPassphrase bool          `json:"hasPassword"`
	Members       []MemberDTO   `json:"users"`
}

// RoomFactory is the authoritative room table.
type RoomFactory interface {
	Create(id domain.RoomID, passphrase, createdBy string) (RoomService, error)
	Get(id domain.RoomID) (RoomService, bool)
	List() []RoomInfo
	Count() int
	Delete(id domain.RoomID)
}
