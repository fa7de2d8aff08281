package engines

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExecEngine invokes the Python engine scripts as child processes.
// One instance serves all three stage roles; Online, Offline, Translator
// and Synthesizer fix the script per role.
type ExecEngine struct {
	pythonBin string
	scriptDir string
}

func NewExecEngine(pythonBin, scriptDir string) *ExecEngine {
	return &ExecEngine{pythonBin: pythonBin, scriptDir: scriptDir}
}

func (e *ExecEngine) run(ctx context.Context, script string, args ...string) (string, error) {
	cmdArgs := append([]string{filepath.Join(e.scriptDir, script)}, args...)
	cmd := exec.CommandContext(ctx, e.pythonBin, cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s failed: %w: %s", script, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// OnlineTranscriber uses the network-backed recognizer.
type OnlineTranscriber struct{ e *ExecEngine }

func (e *ExecEngine) Online() Transcriber { return &OnlineTranscriber{e: e} }

func (t *OnlineTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return t.e.run(ctx, "transcribe.py", audioPath)
}

// OfflineTranscriber is the local fallback recognizer.
type OfflineTranscriber struct{ e *ExecEngine }

func (e *ExecEngine) Offline() Transcriber { return &OfflineTranscriber{e: e} }

func (t *OfflineTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return t.e.run(ctx, "transcribe_offline.py", audioPath)
}

type execTranslator struct{ e *ExecEngine }

func (e *ExecEngine) Translator() Translator { return &execTranslator{e: e} }

func (t *execTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return t.e.run(ctx, "translate.py", text, targetLang)
}

type execSynthesizer struct{ e *ExecEngine }

func (e *ExecEngine) Synthesizer() Synthesizer { return &execSynthesizer{e: e} }

func (s *execSynthesizer) Synthesize(ctx context.Context, text, lang, outputPath string) error {
	_, err := s.e.run(ctx, "synthesize.py", text, lang, outputPath)
	return err
}
