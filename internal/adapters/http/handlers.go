package http

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/babelroom/babelroom/internal/adapters/engines"
	"github.com/babelroom/babelroom/internal/app/orch"
	"github.com/babelroom/babelroom/internal/artifacts"
	"github.com/babelroom/babelroom/internal/config"
	"github.com/babelroom/babelroom/internal/domain"
	"github.com/babelroom/babelroom/internal/pipeline"
)

// Handlers carries the request/response surface: room management and the
// one-shot pipeline endpoints.
type Handlers struct {
	Orch  *orch.Orchestrator
	Store *artifacts.Store

	Transcriber engines.Transcriber
	Translator  engines.Translator
	Synthesizer engines.Synthesizer

	cfg     *config.Config
	started time.Time
}

func NewHandlers(o *orch.Orchestrator, store *artifacts.Store, eng *engines.ExecEngine, cfg *config.Config) *Handlers {
	return &Handlers{
		Orch:        o,
		Store:       store,
		Transcriber: eng.Online(),
		Translator:  eng.Translator(),
		Synthesizer: eng.Synthesizer(),
		cfg:         cfg,
		started:     time.Now(),
	}
}

func (h *Handlers) Root(c *gin.Context) {
	st := h.Orch.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":           "OK",
		"message":          "Multi-User Live Audio Translation Server is running",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"rooms":            st.Rooms,
		"connectedClients": st.Sessions,
	})
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Orch.Rooms.List()})
}

func (h *Handlers) CreateRoom(c *gin.Context) {
	var req struct {
		RoomName    string `json:"roomName"`
		Password    string `json:"password"`
		CreatorName string `json:"creatorName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	room, err := h.Orch.Rooms.Create(domain.RoomID(req.RoomName), req.Password, req.CreatorName)
	if errors.Is(err, domain.ErrRoomAlreadyExists) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Room already exists"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"roomId":      room.Room().ID,
		"message":     "Room created successfully",
		"hasPassword": room.Room().HasPassphrase(),
	})
}

// saveAudioUpload stores the multipart "audio" part under the upload dir.
func (h *Handlers) saveAudioUpload(c *gin.Context) (string, bool) {
	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing audio upload"})
		return "", false
	}
	path := filepath.Join(h.cfg.UploadPath, fmt.Sprintf("upload_%d%s", time.Now().UnixMilli(), filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload", "details": err.Error()})
		return "", false
	}
	return path, true
}

// TranslateSpeech runs the full one-shot pipeline on an uploaded blob.
func (h *Handlers) TranslateSpeech(c *gin.Context) {
	targetLang := c.DefaultPostForm("targetLang", "ta")
	path, ok := h.saveAudioUpload(c)
	if !ok {
		return
	}

	sink := &collectSink{}
	job := h.Orch.SubmitFileJob(path, targetLang, sink)
	<-job.Done()

	if sink.err != nil {
		h.pipelineError(c, sink.err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"originalText":   sink.original,
		"translatedText": sink.translated,
		"targetLanguage": targetLang,
		"audioUrl":       sink.url,
		"audioReady":     true,
	})
}

// LiveTranslate is the one-shot variant used by the live capture path; it
// carries the client's video timestamp through for sync.
func (h *Handlers) LiveTranslate(c *gin.Context) {
	targetLang := c.DefaultPostForm("targetLang", "ta")
	videoTimestamp := c.PostForm("videoTimestamp")
	path, ok := h.saveAudioUpload(c)
	if !ok {
		return
	}

	sink := &collectSink{}
	job := h.Orch.SubmitFileJob(path, targetLang, sink)
	<-job.Done()

	if sink.err != nil {
		h.pipelineError(c, sink.err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"originalText":   sink.original,
		"translatedText": sink.translated,
		"targetLanguage": targetLang,
		"audioUrl":       sink.url,
		"videoTimestamp": videoTimestamp,
		"processingTime": time.Now().UnixMilli(),
		"audioReady":     true,
	})
}

func (h *Handlers) pipelineError(c *gin.Context, err error) {
	if errors.Is(err, domain.ErrNoSpeechDetected) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No speech detected"})
		return
	}
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   fmt.Sprintf("%s error", stageErr.Stage),
			"details": stageErr.Err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "pipeline error", "details": err.Error()})
}

// STT, Translate and TTS exercise one engine each; kept for testing the
// stages in isolation.
func (h *Handlers) STT(c *gin.Context) {
	path, ok := h.saveAudioUpload(c)
	if !ok {
		return
	}
	h.Store.Put(path, h.cfg.SingleRetention)

	text, err := h.Transcriber.Transcribe(c.Request.Context(), path)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "STT error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

func (h *Handlers) Translate(c *gin.Context) {
	var req struct {
		Text       string `json:"text"`
		TargetLang string `json:"targetLang"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text or targetLang"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("target_lang", req.TargetLang).Msg("translation request")

	translated, err := h.Translator.Translate(c.Request.Context(), req.Text, req.TargetLang)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Translation error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"translatedText": translated})
}

func (h *Handlers) TTS(c *gin.Context) {
	var req struct {
		Text     string `json:"text"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing text"})
		return
	}
	if req.Language == "" {
		req.Language = "en"
	}

	name := fmt.Sprintf("tts_%d.wav", time.Now().UnixMilli())
	path := filepath.Join(h.cfg.StaticPath, name)
	if err := h.Synthesizer.Synthesize(c.Request.Context(), req.Text, req.Language, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "TTS error", "details": err.Error()})
		return
	}
	h.Store.Put(path, h.cfg.SingleRetention)
	c.JSON(http.StatusOK, gin.H{"audioUrl": "/static/" + name})
}

// collectSink gathers one-shot pipeline events for a blocking HTTP reply.
type collectSink struct {
	original   string
	translated string
	url        string
	err        error
}

func (s *collectSink) Transcript(job *pipeline.Job, text string) { s.original = text }

func (s *collectSink) Translation(job *pipeline.Job, ev pipeline.TranslationEvent) {
	s.translated = ev.TranslatedText
}

func (s *collectSink) Audio(job *pipeline.Job, ev pipeline.AudioEvent) { s.url = ev.URL }

func (s *collectSink) Failure(job *pipeline.Job, err error) { s.err = err }
