package interfaces

import (
	"context"

	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

// SceneOptions tune the media requested alongside a new scene.
type SceneOptions struct {
	ImageStyle string
	Mood       string
	Culture    string
}

// SceneOption mutates SceneOptions.
type SceneOption func(*SceneOptions)

// WithImageStyle sets the backend image style used to illustrate a scene.
func WithImageStyle(style string) SceneOption {
	return func(o *SceneOptions) {
		o.ImageStyle = style
	}
}

// WithMood sets the mood mentioned when a scene is illustrated.
func WithMood(mood string) SceneOption {
	return func(o *SceneOptions) {
		o.Mood = mood
	}
}

// WithCulture sets the cultural setting mentioned when a scene is illustrated.
func WithCulture(culture string) SceneOption {
	return func(o *SceneOptions) {
		o.Culture = culture
	}
}

// StoryBackend is what the segment holder needs from the session client.
// None of the methods fail: errors come back as fallback segments or empty refs.
type StoryBackend interface {
	// CreateAndStartSession creates a story and opens an interactive session on it
	CreateAndStartSession(ctx context.Context, input models.StoryInput) models.StorySegment

	// SubmitChoice advances the session by one choice
	SubmitChoice(ctx context.Context, sessionID, choiceID string, opts ...SceneOption) models.StorySegment

	// RestartSession replaces a session with a fresh one on the same story
	RestartSession(ctx context.Context, sessionID string) models.StorySegment

	// GenerateAudio narrates text, returning an empty reference on failure
	GenerateAudio(ctx context.Context, text string, opts ...AudioOption) string
}

// SessionManager covers the session calls made outside the choice flow.
type SessionManager interface {
	GetSession(ctx context.Context, sessionID string) (*models.SessionState, error)
	History(ctx context.Context, sessionID string) ([]string, error)
	EndSession(ctx context.Context, sessionID string) error
}

// UploadInput is a text file handed to the backend for prompt enhancement.
type UploadInput struct {
	Filename       string
	Content        string
	Title          string
	StoryType      models.StoryType
	Language       models.Language
	Culture        string
	TargetAgeGroup string
}

// PromptEnhancer expands uploaded text into a full prompt.
type PromptEnhancer interface {
	EnhanceUpload(ctx context.Context, in UploadInput) (string, error)
}

// Transcriber turns a recorded audio blob into prompt text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}
