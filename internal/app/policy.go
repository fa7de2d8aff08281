package app

import "github.com/babelroom/babelroom/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose send buffer is full
// during a room fan-out.
type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// DropPolicy drops the frame for the slow member and keeps it in the room;
// translated audio is fetched by URL, so a lost notification is recoverable.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction {
	return DropFrame
}
