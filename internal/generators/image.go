package generators

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

// ImageGenerator illustrates scenes through the backend visual endpoint.
type ImageGenerator struct {
	client       *mediaClient
	cache        interfaces.RefCache
	storyContext string
}

type visualRequest struct {
	Description  string `json:"description"`
	StoryContext string `json:"story_context"`
	Style        string `json:"style"`
}

type visualResponse struct {
	ImageID string `json:"image_id"`
	Status  string `json:"status"`
}

// GenerateImage returns a displayable reference for description, or "" on any failure.
// style may be a form visual style or a backend image style.
func (g *ImageGenerator) GenerateImage(ctx context.Context, description, style string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}
	style = models.ImageStyleFor(style)
	log := g.client.logger.With(zap.String("kind", "image"), zap.String("style", style))

	key := GenerateCacheKey(interfaces.MediaImage, description, g.storyContext, style)
	if ref, ok := g.client.lookup(ctx, g.cache, interfaces.MediaImage, key); ok {
		log.Debug("image cache hit")
		return ref
	}

	startTime := time.Now()
	var resp visualResponse
	req := visualRequest{Description: description, StoryContext: g.storyContext, Style: style}
	if err := g.client.post(ctx, "generate_image", "/media/generate-visual", req, &resp); err != nil {
		log.Warn("image generation failed", zap.Error(err))
		return ""
	}
	if resp.ImageID == "" {
		log.Warn("image generation failed", zap.Error(errNoMediaID))
		return ""
	}

	ref := g.client.imageURL(resp.ImageID)
	g.client.confirm(g.cache, interfaces.MediaImage, resp.ImageID, key, ref)
	log.Info("image requested", zap.String("image_id", resp.ImageID), zap.Duration("elapsed", time.Since(startTime)))
	return ref
}
