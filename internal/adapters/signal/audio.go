package signal

import (
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
	"github.com/babelroom/babelroom/internal/pipeline"
)

func (ctl *Controller) handleAudioChunk(
	sid core.SessionID,
	conn *WsSignalConn,
	data []byte,
) {
	type chunkPayload struct {
		Type       string `json:"type"`
		AudioData  string `json:"audioData"`
		TargetLang string `json:"targetLang"`
		RoomID     string `json:"roomId,omitempty"`
		Fanout     string `json:"fanout,omitempty"`
	}
	var p chunkPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad audio payload")
		ctl.sendError(conn, "bad payload")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(p.AudioData)
	if err != nil {
		ctl.sendError(conn, "invalid audio encoding")
		return
	}

	if !ctl.limiter.Allow(domain.UserID(sid)) {
		ctl.sendError(conn, "rate limited")
		return
	}

	if p.RoomID != "" {
		_, err = ctl.Orch.SubmitRoomAudio(sid, audio, p.TargetLang, p.Fanout, &roomSink{ctl: ctl})
	} else {
		_, err = ctl.Orch.SubmitSingleAudio(sid, audio, p.TargetLang, &singleSink{ctl: ctl})
	}
	if err != nil {
		ctl.sendError(conn, err.Error())
	}
}

// roomSink delivers pipeline events for room-broadcast jobs: transcript and
// translation to the sender only, synthesized audio to the room, failures to
// the sender only.
type roomSink struct {
	ctl *Controller
}

func (s *roomSink) Transcript(job *pipeline.Job, text string) {
	s.ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		Timestamp    int64  `json:"timestamp"`
		FromUser     string `json:"fromUser"`
		FromUserName string `json:"fromUserName"`
	}{"stt-result", text, job.CorrelationID, job.Sender.UserID, job.Sender.UserName})
}

func (s *roomSink) Translation(job *pipeline.Job, ev pipeline.TranslationEvent) {
	s.ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type           string `json:"type"`
		OriginalText   string `json:"originalText"`
		TranslatedText string `json:"translatedText"`
		TargetLang     string `json:"targetLang"`
		Timestamp      int64  `json:"timestamp"`
		FromUser       string `json:"fromUser"`
		FromUserName   string `json:"fromUserName"`
	}{"translation-result", ev.OriginalText, ev.TranslatedText, ev.TargetLang, job.CorrelationID, job.Sender.UserID, job.Sender.UserName})
}

func (s *roomSink) Audio(job *pipeline.Job, ev pipeline.AudioEvent) {
	room, ok := s.ctl.Orch.Rooms.Get(domain.RoomID(job.RoomID))
	if !ok {
		// Room emptied out mid-pipeline; nobody left to hear it.
		return
	}
	msg := struct {
		Type           string `json:"type"`
		AudioURL       string `json:"audioUrl"`
		OriginalText   string `json:"originalText"`
		TranslatedText string `json:"translatedText"`
		TargetLang     string `json:"targetLang"`
		FromUser       string `json:"fromUser"`
		FromUserName   string `json:"fromUserName"`
		Timestamp      int64  `json:"timestamp"`
	}{"translated-audio", ev.URL, ev.OriginalText, ev.TranslatedText, ev.TargetLang, job.Sender.UserID, job.Sender.UserName, job.CorrelationID}

	if job.Fanout == pipeline.FanoutPerLanguage {
		s.ctl.broadcast(room, "", ev.TargetLang, msg)
		return
	}
	s.ctl.broadcast(room, "", "", msg)
}

func (s *roomSink) Failure(job *pipeline.Job, err error) {
	sendFailure(s.ctl, job, err)
}

// singleSink replies to the requesting session only; the audio message uses
// the audio-ready type instead of translated-audio.
type singleSink struct {
	ctl *Controller
}

func (s *singleSink) Transcript(job *pipeline.Job, text string) {
	s.ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type      string `json:"type"`
		Text      string `json:"text"`
		Timestamp int64  `json:"timestamp"`
	}{"stt-result", text, job.CorrelationID})
}

func (s *singleSink) Translation(job *pipeline.Job, ev pipeline.TranslationEvent) {
	s.ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type           string `json:"type"`
		OriginalText   string `json:"originalText"`
		TranslatedText string `json:"translatedText"`
		TargetLang     string `json:"targetLang"`
		Timestamp      int64  `json:"timestamp"`
	}{"translation-result", ev.OriginalText, ev.TranslatedText, ev.TargetLang, job.CorrelationID})
}

func (s *singleSink) Audio(job *pipeline.Job, ev pipeline.AudioEvent) {
	s.ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type           string `json:"type"`
		AudioURL       string `json:"audioUrl"`
		OriginalText   string `json:"originalText"`
		TranslatedText string `json:"translatedText"`
		Timestamp      int64  `json:"timestamp"`
	}{"audio-ready", ev.URL, ev.OriginalText, ev.TranslatedText, job.CorrelationID})
}

func (s *singleSink) Failure(job *pipeline.Job, err error) {
	sendFailure(s.ctl, job, err)
}

// sendFailure surfaces a pipeline error to the sender only; the rest of the
// room never hears about it.
func sendFailure(ctl *Controller, job *pipeline.Job, err error) {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
			Type    string `json:"type"`
			Step    string `json:"step"`
			Message string `json:"message"`
		}{"error", string(stageErr.Stage), stageErr.Err.Error()})
		return
	}
	ctl.sendToSession(core.SessionID(job.Sender.SID), struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"error", err.Error()})
}
