package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/adapters/engines"
	"github.com/babelroom/babelroom/internal/artifacts"
	"github.com/babelroom/babelroom/internal/domain"
)

// Sentinel substrings in a primary transcription result that mean the
// online recognizer could not reach its service: trigger the offline
// fallback instead of treating the text as speech.
var fallbackSentinels = []string{"service error", "internet"}

// noSpeechSentinel marks audio the recognizer heard but could not parse.
const noSpeechSentinel = "Could not understand audio"

// Runner drives audio fragment jobs through transcribe, translate and
// synthesize. A fixed worker pool keeps jobs from different sessions
// independent; stages within one job are strictly sequential. Per-session
// ordering is not guaranteed: a later fragment may finish first.
type Runner struct {
	primary  engines.Transcriber
	fallback engines.Transcriber
	trans    engines.Translator
	synth    engines.Synthesizer

	store     *artifacts.Store
	staticDir string
	baseURL   string

	roomRetention   time.Duration
	singleRetention time.Duration

	jobs chan *Job
	wg   sync.WaitGroup
}

type RunnerOptions struct {
	Primary  engines.Transcriber
	Fallback engines.Transcriber
	Trans    engines.Translator
	Synth    engines.Synthesizer

	Store     *artifacts.Store
	StaticDir string
	BaseURL   string

	Workers         int
	RoomRetention   time.Duration
	SingleRetention time.Duration
}

func NewRunner(opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RoomRetention <= 0 {
		opts.RoomRetention = 60 * time.Second
	}
	if opts.SingleRetention <= 0 {
		opts.SingleRetention = 30 * time.Second
	}
	r := &Runner{
		primary:         opts.Primary,
		fallback:        opts.Fallback,
		trans:           opts.Trans,
		synth:           opts.Synth,
		store:           opts.Store,
		staticDir:       opts.StaticDir,
		baseURL:         strings.TrimSuffix(opts.BaseURL, "/"),
		roomRetention:   opts.RoomRetention,
		singleRetention: opts.SingleRetention,
		jobs:            make(chan *Job, 64),
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit enqueues a job. The call blocks only when every worker is busy and
// the queue is full; it never waits on an external engine.
func (r *Runner) Submit(job *Job) {
	job.done = make(chan struct{})
	job.setState(StateQueued)
	r.jobs <- job
}

// Close drains the queue and stops the workers.
func (r *Runner) Close() {
	close(r.jobs)
	r.wg.Wait()
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		r.execute(context.Background(), job)
	}
}

func (r *Runner) execute(ctx context.Context, job *Job) {
	defer close(job.done)
	// The raw fragment is scheduled for removal however the job ends.
	defer r.retainUpload(job)

	text, ok := r.transcribe(ctx, job)
	if !ok {
		return
	}
	job.Sink.Transcript(job, text)

	for _, lang := range r.targets(job) {
		if !r.translateAndSynthesize(ctx, job, text, lang) {
			return
		}
	}

	job.setState(StateDone)
	log.Debug().Str("module", "pipeline").Int64("correlation_id", job.CorrelationID).Msg("job done")
}

// transcribe runs the primary recognizer with the offline fallback. It
// returns ok=false when the job terminated, with or without a surfaced
// error, and has already updated the job state.
func (r *Runner) transcribe(ctx context.Context, job *Job) (string, bool) {
	job.setState(StateTranscribing)

	text, err := r.primary.Transcribe(ctx, job.AudioPath)
	if err != nil || containsSentinel(text) {
		log.Warn().Err(err).Str("module", "pipeline").Int64("correlation_id", job.CorrelationID).Msg("online STT failed, trying offline fallback")
		text, err = r.fallback.Transcribe(ctx, job.AudioPath)
		if err != nil {
			r.fail(job, &StageError{Stage: StageTranscribe, Err: err})
			return "", false
		}
		return text, true
	}

	if text == "" || strings.Contains(text, noSpeechSentinel) {
		if job.Mode == ModeRoomBroadcast {
			// Silence in a room is not an error, just nothing to say.
			job.setState(StateDone)
			return "", false
		}
		r.fail(job, domain.ErrNoSpeechDetected)
		return "", false
	}
	return text, true
}

// targets resolves which languages this job translates into.
func (r *Runner) targets(job *Job) []string {
	if job.Mode == ModeRoomBroadcast && job.Fanout == FanoutPerLanguage && len(job.Languages) > 0 {
		return job.Languages
	}
	return []string{job.TargetLang}
}

func (r *Runner) translateAndSynthesize(ctx context.Context, job *Job, text, lang string) bool {
	job.setState(StateTranslating)
	translated, err := r.trans.Translate(ctx, text, lang)
	if err != nil {
		// The transcript already sent stays valid; nothing is retracted.
		r.fail(job, &StageError{Stage: StageTranslate, Err: err})
		return false
	}
	job.Sink.Translation(job, TranslationEvent{
		OriginalText:   text,
		TranslatedText: translated,
		TargetLang:     lang,
	})

	job.setState(StateSynthesizing)
	name := r.artifactName(job, lang)
	path := filepath.Join(r.staticDir, name)
	if err := r.synth.Synthesize(ctx, translated, lang, path); err != nil {
		r.fail(job, &StageError{Stage: StageSynthesize, Err: err})
		return false
	}

	job.Sink.Audio(job, AudioEvent{
		URL:            r.baseURL + "/" + name,
		Path:           path,
		OriginalText:   text,
		TranslatedText: translated,
		TargetLang:     lang,
	})
	r.store.Put(path, r.retention(job))
	return true
}

func (r *Runner) artifactName(job *Job, lang string) string {
	if job.Mode == ModeRoomBroadcast {
		if job.Fanout == FanoutPerLanguage {
			return fmt.Sprintf("room_audio_%s_%d_%s.wav", job.RoomID, job.CorrelationID, lang)
		}
		return fmt.Sprintf("room_audio_%s_%d.wav", job.RoomID, job.CorrelationID)
	}
	return fmt.Sprintf("audio_%d.wav", job.CorrelationID)
}

func (r *Runner) retention(job *Job) time.Duration {
	if job.Mode == ModeRoomBroadcast {
		return r.roomRetention
	}
	return r.singleRetention
}

// retainUpload schedules removal of the raw uploaded fragment.
func (r *Runner) retainUpload(job *Job) {
	if job.AudioPath == "" {
		return
	}
	r.store.Put(job.AudioPath, r.retention(job))
}

func (r *Runner) fail(job *Job, err error) {
	job.setState(StateFailed)
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		log.Error().Err(stageErr.Err).Str("module", "pipeline").Str("stage", string(stageErr.Stage)).Int64("correlation_id", job.CorrelationID).Msg("stage failed")
	}
	job.Sink.Failure(job, err)
}

func containsSentinel(text string) bool {
	for _, s := range fallbackSentinels {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
