package interfaces

import "context"

// AudioOptions tune one narration request.
type AudioOptions struct {
	Language string
}

type AudioOption func(*AudioOptions)

// WithLanguage narrates in lang instead of the configured default.
func WithLanguage(lang string) AudioOption {
	return func(o *AudioOptions) {
		o.Language = lang
	}
}

// AudioGenerator narrates text through the backend. Failures yield "".
type AudioGenerator interface {
	GenerateAudio(ctx context.Context, text string, opts ...AudioOption) string
}

// ImageGenerator illustrates a description through the backend. Failures yield "".
type ImageGenerator interface {
	GenerateImage(ctx context.Context, description, style string) string
}

// MediaKind distinguishes the two generated media types.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

// MediaStatus reports whether a generated file is ready on the backend.
type MediaStatus struct {
	MediaID  string `json:"media_id"`
	Status   string `json:"status"`
	FileSize int64  `json:"file_size,omitempty"`
}

// RefCache remembers media references for identical generation requests.
type RefCache interface {
	// Get returns the cached reference for key
	Get(ctx context.Context, key string) (string, bool)

	// Put stores a reference for key
	Put(ctx context.Context, key, ref string) error
}
