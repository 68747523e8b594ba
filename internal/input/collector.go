package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

// Source is where the prompt comes from. At most one is active.
type Source string

const (
	SourceNone      Source = ""
	SourceText      Source = "text"
	SourceFile      Source = "file"
	SourceRecording Source = "recording"
)

// maxFileBytes bounds how much of an uploaded file is read.
const maxFileBytes = 1 << 20

var (
	ErrNothingToSubmit   = errors.New("no prompt source has content")
	ErrRecordingTooLarge = errors.New("recording exceeds the size limit")
	ErrNoEnhancer        = errors.New("file uploads are not available")
	ErrNotText           = errors.New("not a text file")
	ErrCollectorClosed   = errors.New("input collector is closed")
)

type fileInput struct {
	name    string
	content string
}

// Recording is a captured audio blob held in memory until released.
type Recording struct {
	Data     []byte
	MimeType string
}

// State describes the collector for a front end.
type State struct {
	Source         Source `json:"source"`
	Text           string `json:"text,omitempty"`
	FileName       string `json:"file_name,omitempty"`
	FileChars      int    `json:"file_chars,omitempty"`
	RecordingBytes int    `json:"recording_bytes,omitempty"`
	CanSubmit      bool   `json:"can_submit"`
}

// Collector resolves exactly one prompt source into prompt text.
type Collector struct {
	cfg         config.InputConfig
	backend     config.BackendConfig
	enhancer    interfaces.PromptEnhancer
	transcriber interfaces.Transcriber
	logger      *zap.Logger

	mu        sync.Mutex
	source    Source
	text      string
	file      *fileInput
	recording *Recording
	closed    bool
}

// NewCollector creates a collector. transcriber may be nil, in which case
// recordings resolve to the configured placeholder prompt.
func NewCollector(cfg *config.Config, enhancer interfaces.PromptEnhancer, transcriber interfaces.Transcriber, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:         cfg.Input,
		backend:     cfg.Backend,
		enhancer:    enhancer,
		transcriber: transcriber,
		logger:      logger.Named("input"),
	}
}

// SetText selects typed text, clearing any file or recording.
func (c *Collector) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	c.resetLocked()
	c.source = SourceText
	c.text = text
	return nil
}

// SetFile reads an uploaded text file, keeping only the first
// FileCharLimit characters. It clears typed text and any recording.
func (c *Collector) SetFile(name string, r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxFileBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: %s", ErrNotText, name)
	}
	content := truncateRunes(string(data), c.cfg.FileCharLimit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	c.resetLocked()
	c.source = SourceFile
	c.file = &fileInput{name: name, content: content}
	return nil
}

// SetRecording stores a recorded audio blob, clearing text and file.
func (c *Collector) SetRecording(data []byte, mimeType string) error {
	if c.cfg.MaxRecordingBytes > 0 && int64(len(data)) > c.cfg.MaxRecordingBytes {
		return fmt.Errorf("%w: %d bytes", ErrRecordingTooLarge, len(data))
	}
	blob := make([]byte, len(data))
	copy(blob, data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCollectorClosed
	}
	c.resetLocked()
	c.source = SourceRecording
	c.recording = &Recording{Data: blob, MimeType: mimeType}
	return nil
}

// Recording returns the held recording, if any.
func (c *Collector) Recording() (Recording, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recording == nil {
		return Recording{}, false
	}
	return *c.recording, true
}

// CanSubmit reports whether the active source has content.
func (c *Collector) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked()
}

func (c *Collector) canSubmitLocked() bool {
	switch c.source {
	case SourceText:
		return strings.TrimSpace(c.text) != ""
	case SourceFile:
		return c.file != nil && strings.TrimSpace(c.file.content) != ""
	case SourceRecording:
		return c.recording != nil && len(c.recording.Data) > 0
	}
	return false
}

func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{Source: c.source, Text: c.text, CanSubmit: c.canSubmitLocked()}
	if c.file != nil {
		st.FileName = c.file.name
		st.FileChars = utf8.RuneCountInString(c.file.content)
	}
	if c.recording != nil {
		st.RecordingBytes = len(c.recording.Data)
	}
	return st
}

// Resolve turns the active source into prompt text. params supply the
// title and story metadata sent along with an uploaded file.
func (c *Collector) Resolve(ctx context.Context, params models.StoryInput) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrCollectorClosed
	}
	if !c.canSubmitLocked() {
		c.mu.Unlock()
		return "", ErrNothingToSubmit
	}
	source, text := c.source, c.text
	var file fileInput
	if c.file != nil {
		file = *c.file
	}
	var rec Recording
	if c.recording != nil {
		rec = *c.recording
	}
	c.mu.Unlock()

	switch source {
	case SourceText:
		return strings.TrimSpace(text), nil
	case SourceFile:
		return c.enhance(ctx, file, params)
	case SourceRecording:
		return c.transcribe(ctx, rec), nil
	}
	return "", ErrNothingToSubmit
}

func (c *Collector) enhance(ctx context.Context, file fileInput, params models.StoryInput) (string, error) {
	if c.enhancer == nil {
		return "", ErrNoEnhancer
	}
	culture := params.Culture
	if culture == "" {
		culture = c.backend.Culture
	}
	ageGroup := params.TargetAgeGroup
	if ageGroup == "" {
		ageGroup = c.backend.TargetAgeGroup
	}
	prompt, err := c.enhancer.EnhanceUpload(ctx, interfaces.UploadInput{
		Filename:       file.name,
		Content:        file.content,
		Title:          params.Title,
		StoryType:      params.StoryType,
		Language:       params.Language,
		Culture:        culture,
		TargetAgeGroup: ageGroup,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enhance %s: %w", file.name, err)
	}
	return strings.TrimSpace(prompt), nil
}

// transcribe falls back to the placeholder prompt when no transcriber is
// configured or transcription yields nothing.
func (c *Collector) transcribe(ctx context.Context, rec Recording) string {
	if c.transcriber == nil {
		return c.cfg.RecordingPrompt
	}
	text, err := c.transcriber.Transcribe(ctx, RecordingFilename(rec.MimeType), rec.Data)
	if err != nil {
		c.logger.Warn("transcription failed, using placeholder prompt", zap.Error(err))
		return c.cfg.RecordingPrompt
	}
	if text = strings.TrimSpace(text); text == "" {
		return c.cfg.RecordingPrompt
	}
	return text
}

// Build resolves the prompt and completes params into a validated StoryInput.
func (c *Collector) Build(ctx context.Context, params models.StoryInput) (models.StoryInput, error) {
	prompt, err := c.Resolve(ctx, params)
	if err != nil {
		return models.StoryInput{}, err
	}
	params.Prompt = prompt
	if params.Culture == "" {
		params.Culture = c.backend.Culture
	}
	if params.TargetAgeGroup == "" {
		params.TargetAgeGroup = c.backend.TargetAgeGroup
	}
	return models.NewStoryInput(params)
}

// Clear drops every source and releases the recording.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// Close releases held resources. The collector rejects input afterwards.
func (c *Collector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.closed = true
}

func (c *Collector) resetLocked() {
	c.source = SourceNone
	c.text = ""
	c.file = nil
	c.recording = nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// RecordingFilename names a recording after its container format.
func RecordingFilename(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "ogg"):
		return "recording.ogg"
	case strings.Contains(mimeType, "mpeg"), strings.Contains(mimeType, "mp3"):
		return "recording.mp3"
	case strings.Contains(mimeType, "wav"):
		return "recording.wav"
	case strings.Contains(mimeType, "mp4"), strings.Contains(mimeType, "m4a"):
		return "recording.m4a"
	}
	return "recording.webm"
}
