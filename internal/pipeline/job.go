package pipeline

import "sync/atomic"

// Mode selects who receives the pipeline's results.
type Mode string

const (
	// ModeSingleShot replies to one requester only.
	ModeSingleShot Mode = "single-shot"
	// ModeRoomBroadcast distributes results across the sender's room.
	ModeRoomBroadcast Mode = "room-broadcast"
)

// Fanout names the two broadcast variants. Shared keys the translation by
// the job's target language and sends it to everyone; per-language runs one
// translate+synthesize pass per distinct member language and delivers each
// result only to the members speaking it.
type Fanout string

const (
	FanoutShared      Fanout = "shared"
	FanoutPerLanguage Fanout = "per-language"
)

// ParseFanout maps a client-supplied string onto a known mode,
// defaulting unknown values to def.
func ParseFanout(s string, def Fanout) Fanout {
	switch Fanout(s) {
	case FanoutShared, FanoutPerLanguage:
		return Fanout(s)
	default:
		return def
	}
}

// State is the job's position in the stage machine.
type State int32

const (
	StateQueued State = iota
	StateTranscribing
	StateTranslating
	StateSynthesizing
	StateDone
	StateFailed
)

// Sender identifies the originating session for event attribution.
type Sender struct {
	SID      string
	UserID   string
	UserName string
}

// Job is one audio fragment's trip through the pipeline. It lives only for
// the duration of one run; nothing is persisted.
type Job struct {
	Mode   Mode
	Fanout Fanout

	AudioPath  string
	TargetLang string
	RoomID     string
	Sender     Sender

	// CorrelationID ties the transcript, translation and audio events of
	// one fragment together; it is the submission timestamp in unix ms.
	CorrelationID int64

	// Languages is the distinct member-language snapshot taken at submit
	// time; only consulted in per-language fan-out.
	Languages []string

	Sink EventSink

	state int32
	done  chan struct{}
}

func (j *Job) State() State { return State(atomic.LoadInt32(&j.state)) }

func (j *Job) setState(s State) { atomic.StoreInt32(&j.state, int32(s)) }

// Done is closed when the job reaches StateDone or StateFailed.
func (j *Job) Done() <-chan struct{} { return j.done }

// TranslationEvent carries a finished translation stage.
type TranslationEvent struct {
	OriginalText   string
	TranslatedText string
	TargetLang     string
}

// AudioEvent carries a synthesized artifact ready to fetch.
type AudioEvent struct {
	URL            string
	Path           string
	OriginalText   string
	TranslatedText string
	TargetLang     string
}

// EventSink receives intermediate pipeline events. The sink decides
// addressing: transcripts go to the sender only, audio goes to the room in
// broadcast mode. Failures are delivered to the sender only and never
// retract earlier events.
type EventSink interface {
	Transcript(job *Job, text string)
	Translation(job *Job, ev TranslationEvent)
	Audio(job *Job, ev AudioEvent)
	Failure(job *Job, err error)
}
