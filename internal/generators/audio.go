package generators

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
)

// AudioGenerator narrates text through the backend TTS endpoint.
type AudioGenerator struct {
	client     *mediaClient
	cache      interfaces.RefCache
	voiceStyle string
	language   string
	accent     string
}

type audioRequest struct {
	Text       string  `json:"text"`
	VoiceStyle string  `json:"voice_style"`
	Language   string  `json:"language"`
	Accent     *string `json:"accent"`
}

type audioResponse struct {
	AudioID string `json:"audio_id"`
	Status  string `json:"status"`
}

// GenerateAudio returns a playable reference for text, or "" on any failure.
// The language defaults to the configured one unless WithLanguage is given.
func (g *AudioGenerator) GenerateAudio(ctx context.Context, text string, opts ...interfaces.AudioOption) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var options interfaces.AudioOptions
	for _, opt := range opts {
		opt(&options)
	}
	if options.Language == "" {
		options.Language = g.language
	}
	log := g.client.logger.With(zap.String("kind", "audio"),
		zap.Int("text_len", len(text)),
		zap.String("language", options.Language))

	key := GenerateCacheKey(interfaces.MediaAudio, text, g.voiceStyle, options.Language, g.accent)
	if ref, ok := g.client.lookup(ctx, g.cache, interfaces.MediaAudio, key); ok {
		log.Debug("audio cache hit")
		return ref
	}

	req := audioRequest{Text: text, VoiceStyle: g.voiceStyle, Language: options.Language}
	if g.accent != "" {
		req.Accent = &g.accent
	}

	startTime := time.Now()
	var resp audioResponse
	if err := g.client.post(ctx, "generate_audio", "/media/generate-audio", req, &resp); err != nil {
		log.Warn("audio generation failed", zap.Error(err))
		return ""
	}
	if resp.AudioID == "" {
		log.Warn("audio generation failed", zap.Error(errNoMediaID))
		return ""
	}

	ref := g.client.audioURL(resp.AudioID)
	g.client.confirm(g.cache, interfaces.MediaAudio, resp.AudioID, key, ref)
	log.Info("audio requested", zap.String("audio_id", resp.AudioID), zap.Duration("elapsed", time.Since(startTime)))
	return ref
}
