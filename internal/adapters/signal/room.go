package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
)

func (ctl *Controller) handleJoinRoom(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type joinPayload struct {
		Type     string `json:"type"`
		RoomID   string `json:"roomId"`
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		Password string `json:"password"`
		Language string `json:"language"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJoinError(conn, "bad payload")
		return
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("user", p.UserName).Msg("join-room")
	res, err := ctl.Orch.Join(sid, domain.RoomID(p.RoomID), domain.UserID(p.UserID), p.UserName, p.Password, p.Language)
	if err != nil {
		ctl.sendJoinError(conn, err.Error())
		return
	}

	ctl.sendJSON(conn, struct {
		Type           string           `json:"type"`
		RoomID         string           `json:"roomId"`
		UserID         string           `json:"userId"`
		UserName       string           `json:"userName"`
		ConnectedUsers []core.MemberDTO `json:"connectedUsers"`
	}{"room-joined", p.RoomID, p.UserID, p.UserName, res.Members})
}

// handleLeaveRoom leaves the current room without dropping the connection.
// A leave with no active membership replies "left" and notifies nobody.
func (ctl *Controller) handleLeaveRoom(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave-room")
	ctl.Orch.Leave(sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})
}

func (ctl *Controller) sendJoinError(conn *WsSignalConn, message string) {
	ctl.sendJSON(conn, struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"join-error", message})
}
