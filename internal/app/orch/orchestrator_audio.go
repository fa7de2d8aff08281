package orch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
	"github.com/babelroom/babelroom/internal/pipeline"
)

// SubmitRoomAudio persists an audio fragment from a room member and queues
// a broadcast pipeline job. The returned correlation id is the submission
// timestamp in unix ms.
func (o *Orchestrator) SubmitRoomAudio(sid core.SessionID, audio []byte, targetLang, requestedFanout string, sink pipeline.EventSink) (int64, error) {
	roomID, sess, ok := o.Registry.RoomOf(sid)
	if !ok {
		return 0, domain.ErrRoomNotFound
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return 0, domain.ErrRoomNotFound
	}

	ts := time.Now().UnixMilli()
	path := filepath.Join(o.UploadDir, fmt.Sprintf("room_chunk_%d.webm", ts))
	if err := o.saveUpload(path, audio); err != nil {
		return 0, err
	}

	user := sess.Meta().User
	o.Pipeline.Submit(&pipeline.Job{
		Mode:          pipeline.ModeRoomBroadcast,
		Fanout:        o.fanout(requestedFanout),
		AudioPath:     path,
		TargetLang:    targetLang,
		RoomID:        string(roomID),
		Sender:        pipeline.Sender{SID: string(sid), UserID: string(user.ID), UserName: user.Username},
		CorrelationID: ts,
		Languages:     room.Languages(),
		Sink:          sink,
	})
	return ts, nil
}

// SubmitSingleAudio queues a single-shot job for a connection that is not
// speaking into a room.
func (o *Orchestrator) SubmitSingleAudio(sid core.SessionID, audio []byte, targetLang string, sink pipeline.EventSink) (int64, error) {
	ts := time.Now().UnixMilli()
	path := filepath.Join(o.UploadDir, fmt.Sprintf("chunk_%d.webm", ts))
	if err := o.saveUpload(path, audio); err != nil {
		return 0, err
	}
	o.Pipeline.Submit(&pipeline.Job{
		Mode:          pipeline.ModeSingleShot,
		AudioPath:     path,
		TargetLang:    targetLang,
		Sender:        pipeline.Sender{SID: string(sid)},
		CorrelationID: ts,
		Sink:          sink,
	})
	return ts, nil
}

// SubmitFileJob queues a single-shot job for an already-uploaded file
// (the HTTP one-shot endpoints).
func (o *Orchestrator) SubmitFileJob(path, targetLang string, sink pipeline.EventSink) *pipeline.Job {
	job := &pipeline.Job{
		Mode:          pipeline.ModeSingleShot,
		AudioPath:     path,
		TargetLang:    targetLang,
		CorrelationID: time.Now().UnixMilli(),
		Sink:          sink,
	}
	o.Pipeline.Submit(job)
	return job
}

func (o *Orchestrator) saveUpload(path string, audio []byte) error {
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("path", path).Msg("saving audio fragment")
		return fmt.Errorf("saving audio fragment: %w", err)
	}
	return nil
}
