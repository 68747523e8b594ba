package input

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
)

// WhisperTranscriber turns recordings into prompt text with an
// OpenAI-compatible transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewWhisperTranscriber(cfg config.TranscriptionConfig, logger *zap.Logger) *WhisperTranscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger.Named("whisper"),
	}
}

// Transcribe sends audio to the transcription endpoint.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("recording is empty")
	}

	startTime := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe recording: %w", err)
	}

	t.logger.Debug("recording transcribed",
		zap.Int("bytes", len(audio)),
		zap.Duration("elapsed", time.Since(startTime)))
	return strings.TrimSpace(resp.Text), nil
}
