package orch

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
)

// JoinResult is what the joiner gets back: the room plus a membership
// snapshot taken right after registration, including the joiner itself.
type JoinResult struct {
	Room    core.RoomService
	Members []core.MemberDTO
}

// Join validates the room, passphrase and identity, implicitly leaves any
// previous room, and registers the session as a member. Every failure exit
// comes before the first mutation, so a failed join leaves the session in
// its prior room.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID, userID domain.UserID, userName, passphrase, language string) (*JoinResult, error) {
	o.membership.Lock()
	defer o.membership.Unlock()

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if !room.Room().CheckPassphrase(passphrase) {
		return nil, domain.ErrInvalidPassphrase
	}
	user, err := domain.NewUser(userID, userName)
	if err != nil {
		return nil, err
	}
	if _, ok := o.Registry.GetSession(sid); !ok {
		return nil, fmt.Errorf("session %s not bound", sid)
	}

	// Leaving the previous room never surfaces an error to the joiner.
	// A re-join of the current room (identity or language change) must not
	// tear the room down under the joiner, so it is exempt from the
	// empty-room deletion.
	o.leaveLocked(sid, roomID)

	sess, ok := o.Registry.UpdateMember(sid, domain.NewMember(user, language))
	if !ok {
		return nil, fmt.Errorf("session %s not bound", sid)
	}
	room.AddMember(sid, sess)
	o.Registry.UpdateRoom(sid, roomID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", userName).Str("language", language).Msg("joined room")

	if o.Notify != nil {
		o.Notify.MemberJoined(room, sid, *user, language)
	}
	return &JoinResult{Room: room, Members: room.MembersSnapshot()}, nil
}

// Leave removes the session from its current room; a no-op when the session
// is not in one. The second of two back-to-back leaves produces no
// notification. Reports whether a membership was actually removed.
func (o *Orchestrator) Leave(sid core.SessionID) bool {
	o.membership.Lock()
	defer o.membership.Unlock()
	return o.leaveLocked(sid, "")
}

// leaveLocked removes the session's current membership. A room left empty
// is deleted unless it is keep, the room the caller is about to re-enter.
func (o *Orchestrator) leaveLocked(sid core.SessionID, keep domain.RoomID) bool {
	roomID, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	o.Registry.ClearRoom(sid)

	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return false
	}
	room.RemoveMember(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")

	if o.Notify != nil {
		o.Notify.MemberLeft(room, sid, *sess.Meta().User)
	}
	if room.MemberCount() == 0 && roomID != keep {
		o.Rooms.Delete(roomID)
	}
	return true
}

// Disconnect is a leave plus discarding the session binding. In-flight
// pipeline jobs are not cancelled; their final delivery becomes a no-op
// send to a closed connection.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.Leave(sid)
	o.Registry.Unbind(sid)
}
