// Package engines wraps the external speech engines. Each engine is an
// opaque process invoked with positional arguments; stdout carries the
// payload, a non-zero exit carries only a diagnostic string.
package engines

import "context"

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Translator converts text into the target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Synthesizer renders text as speech into outputPath.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang, outputPath string) error
}
