package pipeline

import "fmt"

// Stage identifies which external engine failed. The engines return only an
// opaque diagnostic, so failures are classified by stage identity alone.
type Stage string

const (
	StageTranscribe Stage = "STT"
	StageTranslate  Stage = "Translation"
	StageSynthesize Stage = "TTS"
)

// StageError wraps an engine failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
