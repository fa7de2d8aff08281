// Package orch coordinates the session table, the room table and the audio
// pipeline. All membership mutations go through here so that concurrent
// join/leave on the same room never race the room-now-empty check.
package orch

import (
	"sync"

	"github.com/babelroom/babelroom/internal/app"
	"github.com/babelroom/babelroom/internal/core"
	"github.com/babelroom/babelroom/internal/domain"
	"github.com/babelroom/babelroom/internal/pipeline"
)

// Notifier delivers membership notifications to room members. Implemented
// by the signal adapter, which owns the wire format.
type Notifier interface {
	MemberJoined(room core.RoomService, exclude core.SessionID, user domain.User, language string)
	MemberLeft(room core.RoomService, exclude core.SessionID, user domain.User)
}

type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomFactory
	Policy   app.Policy
	Pipeline *pipeline.Runner
	Notify   Notifier

	UploadDir     string
	DefaultFanout pipeline.Fanout

	// membership guards join/leave sequences as one atomic unit.
	membership sync.Mutex
}

// Status is the health-endpoint view of the coordinator.
type Status struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"connectedClients"`
}

func (o *Orchestrator) Status() Status {
	return Status{Rooms: o.Rooms.Count(), Sessions: o.Registry.Count()}
}

func (o *Orchestrator) fanout(requested string) pipeline.Fanout {
	def := o.DefaultFanout
	if def == "" {
		def = pipeline.FanoutShared
	}
	return pipeline.ParseFanout(requested, def)
}
