package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelroom/babelroom/internal/artifacts"
	"github.com/babelroom/babelroom/internal/domain"
	"github.com/babelroom/babelroom/internal/pipeline"
)

type fakeTranscriber struct {
	mu        sync.Mutex
	calls     int
	text      string
	err       error
	blockPath string
	gate      chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if f.gate != nil && audioPath == f.blockPath {
		<-f.gate
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeTranscriber) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTranslator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s[%s]", text, targetLang), nil
}

func (f *fakeTranslator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSynthesizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, lang, outputPath string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, []byte("wav"), 0o644)
}

func (f *fakeSynthesizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordSink struct {
	mu           sync.Mutex
	transcripts  []string
	translations []pipeline.TranslationEvent
	audios       []pipeline.AudioEvent
	failures     []error
}

func (s *recordSink) Transcript(job *pipeline.Job, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, text)
}

func (s *recordSink) Translation(job *pipeline.Job, ev pipeline.TranslationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.translations = append(s.translations, ev)
}

func (s *recordSink) Audio(job *pipeline.Job, ev pipeline.AudioEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audios = append(s.audios, ev)
}

func (s *recordSink) Failure(job *pipeline.Job, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

type fixture struct {
	primary  *fakeTranscriber
	fallback *fakeTranscriber
	trans    *fakeTranslator
	synth    *fakeSynthesizer
	store    *artifacts.Store
	runner   *pipeline.Runner
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		primary:  &fakeTranscriber{text: "hello there"},
		fallback: &fakeTranscriber{text: "fallback words"},
		trans:    &fakeTranslator{},
		synth:    &fakeSynthesizer{},
		store:    artifacts.NewStore(),
		dir:      t.TempDir(),
	}
	f.runner = pipeline.NewRunner(pipeline.RunnerOptions{
		Primary:   f.primary,
		Fallback:  f.fallback,
		Trans:     f.trans,
		Synth:     f.synth,
		Store:     f.store,
		StaticDir: f.dir,
		BaseURL:   "/static",
		Workers:   2,
	})
	t.Cleanup(func() {
		f.runner.Close()
		f.store.Close()
	})
	return f
}

func (f *fixture) uploadFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(f.dir, fmt.Sprintf("chunk_%d.webm", time.Now().UnixNano()))
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func roomJob(path string, sink pipeline.EventSink) *pipeline.Job {
	return &pipeline.Job{
		Mode:          pipeline.ModeRoomBroadcast,
		Fanout:        pipeline.FanoutShared,
		AudioPath:     path,
		TargetLang:    "es",
		RoomID:        "r1",
		Sender:        pipeline.Sender{SID: "sidA", UserID: "u1", UserName: "Alice"},
		CorrelationID: time.Now().UnixMilli(),
		Sink:          sink,
	}
}

func TestRunner_BroadcastHappyPath(t *testing.T) {
	f := newFixture(t)
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateDone, job.State())
	assert.Equal(t, []string{"hello there"}, sink.transcripts)
	require.Len(t, sink.translations, 1)
	assert.Equal(t, "hello there[es]", sink.translations[0].TranslatedText)
	assert.Equal(t, "es", sink.translations[0].TargetLang)
	require.Len(t, sink.audios, 1)
	assert.Equal(t, fmt.Sprintf("/static/room_audio_r1_%d.wav", job.CorrelationID), sink.audios[0].URL)
	assert.FileExists(t, sink.audios[0].Path)
	assert.Empty(t, sink.failures)
	// Synthesized artifact plus the raw upload are both scheduled for
	// deletion.
	assert.Equal(t, 2, f.store.Pending())
}

func TestRunner_SentinelTriggersFallback(t *testing.T) {
	for _, sentinel := range []string{"service error", "no internet connection"} {
		t.Run(sentinel, func(t *testing.T) {
			f := newFixture(t)
			f.primary.text = sentinel
			sink := &recordSink{}
			job := roomJob(f.uploadFile(t), sink)

			f.runner.Submit(job)
			<-job.Done()

			assert.Equal(t, 1, f.fallback.Calls())
			assert.Equal(t, []string{"fallback words"}, sink.transcripts)
			require.Len(t, sink.audios, 1)
			assert.Equal(t, "fallback words[es]", sink.audios[0].TranslatedText)
		})
	}
}

func TestRunner_PrimaryErrorTriggersFallback(t *testing.T) {
	f := newFixture(t)
	f.primary.err = errors.New("recognizer crashed")
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateDone, job.State())
	assert.Equal(t, []string{"fallback words"}, sink.transcripts)
}

func TestRunner_BothTranscribersFail(t *testing.T) {
	f := newFixture(t)
	f.primary.err = errors.New("online down")
	f.fallback.err = errors.New("offline down")
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateFailed, job.State())
	assert.Empty(t, sink.transcripts)
	require.Len(t, sink.failures, 1)
	var stageErr *pipeline.StageError
	require.ErrorAs(t, sink.failures[0], &stageErr)
	assert.Equal(t, pipeline.StageTranscribe, stageErr.Stage)
	assert.Zero(t, f.trans.Calls())
}

func TestRunner_EmptyTranscriptIsSilentInBroadcast(t *testing.T) {
	f := newFixture(t)
	f.primary.text = ""
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateDone, job.State())
	assert.Empty(t, sink.transcripts)
	assert.Empty(t, sink.failures, "silence is not an error in a room")
	assert.Zero(t, f.trans.Calls())
	assert.Zero(t, f.synth.Calls())
}

func TestRunner_NoSpeechDetectedInSingleShot(t *testing.T) {
	for _, text := range []string{"", "Could not understand audio"} {
		t.Run(fmt.Sprintf("%q", text), func(t *testing.T) {
			f := newFixture(t)
			f.primary.text = text
			sink := &recordSink{}
			job := &pipeline.Job{
				Mode:          pipeline.ModeSingleShot,
				AudioPath:     f.uploadFile(t),
				TargetLang:    "es",
				CorrelationID: time.Now().UnixMilli(),
				Sink:          sink,
			}

			f.runner.Submit(job)
			<-job.Done()

			assert.Equal(t, pipeline.StateFailed, job.State())
			require.Len(t, sink.failures, 1)
			assert.ErrorIs(t, sink.failures[0], domain.ErrNoSpeechDetected)
			assert.Zero(t, f.trans.Calls(), "no translation attempted")
			assert.Zero(t, f.synth.Calls(), "no synthesis attempted")
		})
	}
}

func TestRunner_TranslationFailureKeepsTranscript(t *testing.T) {
	f := newFixture(t)
	f.trans.err = errors.New("translator down")
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateFailed, job.State())
	assert.Equal(t, []string{"hello there"}, sink.transcripts, "transcript is not retracted")
	assert.Empty(t, sink.audios, "no audio event for this correlation id")
	require.Len(t, sink.failures, 1)
	var stageErr *pipeline.StageError
	require.ErrorAs(t, sink.failures[0], &stageErr)
	assert.Equal(t, pipeline.StageTranslate, stageErr.Stage)
	assert.Zero(t, f.synth.Calls())
}

func TestRunner_SynthesisFailure(t *testing.T) {
	f := newFixture(t)
	f.synth.err = errors.New("voice engine down")
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateFailed, job.State())
	require.Len(t, sink.translations, 1)
	assert.Empty(t, sink.audios)
	var stageErr *pipeline.StageError
	require.ErrorAs(t, sink.failures[0], &stageErr)
	assert.Equal(t, pipeline.StageSynthesize, stageErr.Stage)
}

func TestRunner_PerLanguageFanout(t *testing.T) {
	f := newFixture(t)
	sink := &recordSink{}
	job := roomJob(f.uploadFile(t), sink)
	job.Fanout = pipeline.FanoutPerLanguage
	job.Languages = []string{"es", "fr"}

	f.runner.Submit(job)
	<-job.Done()

	assert.Equal(t, pipeline.StateDone, job.State())
	require.Len(t, sink.translations, 2)
	require.Len(t, sink.audios, 2)
	langs := []string{sink.audios[0].TargetLang, sink.audios[1].TargetLang}
	assert.ElementsMatch(t, []string{"es", "fr"}, langs)
	for _, ev := range sink.audios {
		assert.Contains(t, ev.URL, "_"+ev.TargetLang+".wav")
	}
}

func TestRunner_JobsFromOtherSessionsAreNotSerialized(t *testing.T) {
	f := newFixture(t)
	slowPath := f.uploadFile(t)
	f.primary.gate = make(chan struct{})
	f.primary.blockPath = slowPath

	slowSink := &recordSink{}
	slow := roomJob(slowPath, slowSink)
	fastSink := &recordSink{}
	fast := roomJob(f.uploadFile(t), fastSink)
	fast.Sender.SID = "sidB"

	f.runner.Submit(slow)
	f.runner.Submit(fast)

	// The fast job finishes while the slow one is still inside its
	// transcription call.
	select {
	case <-fast.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("fast job blocked behind an unrelated session's job")
	}
	assert.Equal(t, pipeline.StateTranscribing, slow.State())

	close(f.primary.gate)
	<-slow.Done()
	assert.Equal(t, pipeline.StateDone, slow.State())
}
