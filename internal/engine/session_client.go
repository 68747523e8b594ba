package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/metrics"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
	"github.com/Harshitjoshi133/MangoDesk/internal/prompts"
)

const (
	opCreate  = "create_story"
	opStart   = "start_session"
	opChoose  = "choose"
	opUpload  = "upload_story"
	opGet     = "get_session"
	opHistory = "session_history"
	opEnd     = "end_session"
	opRestart = "restart_session"

	// maxSceneDescription bounds the scene text sent to the image generator.
	maxSceneDescription = 200
)

// SessionClient drives an interactive story session on the storyteller backend.
// Story operations never return errors; failures come back as fallback segments.
type SessionClient struct {
	backend  *backendClient
	cfg      config.BackendConfig
	media    config.MediaConfig
	audio    interfaces.AudioGenerator
	images   interfaces.ImageGenerator
	inflight *inflight
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a SessionClient.
type Option func(*SessionClient)

// WithAudioGenerator sets the narration generator used by GenerateAudio.
func WithAudioGenerator(g interfaces.AudioGenerator) Option {
	return func(c *SessionClient) { c.audio = g }
}

// WithImageGenerator sets the generator used to illustrate new scenes.
func WithImageGenerator(g interfaces.ImageGenerator) Option {
	return func(c *SessionClient) { c.images = g }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *SessionClient) { c.metrics = m }
}

// WithClock overrides the time source used for fallback segment ids.
func WithClock(now func() time.Time) Option {
	return func(c *SessionClient) { c.now = now }
}

// NewSessionClient creates a client for the backend described by cfg.
func NewSessionClient(cfg *config.Config, logger *zap.Logger, opts ...Option) *SessionClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &SessionClient{
		cfg:      cfg.Backend,
		media:    cfg.Media,
		inflight: newInflight(),
		logger:   logger.Named("session"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.backend = newBackendClient(cfg.Backend, c.logger, c.metrics)
	return c
}

// CreateAndStartSession creates a story from input and opens a session on it.
// The first segment's id is the session id.
func (c *SessionClient) CreateAndStartSession(ctx context.Context, input models.StoryInput) models.StorySegment {
	log := c.logger.With(zap.String("title", input.Title), zap.String("story_type", string(input.StoryType)))

	if strings.TrimSpace(input.Prompt) == "" {
		return c.fallback(opCreate, "", fmt.Errorf("%w: prompt is empty", ErrInvalidRequest))
	}

	created, err := c.createStory(ctx, input)
	if err != nil {
		log.Warn("failed to create story", zap.Error(err))
		return c.fallback(opCreate, "", err)
	}

	seg, err := c.startSession(ctx, created.StoryID, input.Language)
	if err != nil {
		log.Warn("failed to start session", zap.String("story_id", created.StoryID), zap.Error(err))
		return c.fallback(opStart, "", err)
	}

	log.Info("session started",
		zap.String("story_id", created.StoryID),
		zap.String("session_id", seg.SessionID),
		zap.Int("choices", len(seg.Choices)))
	return seg
}

func (c *SessionClient) createStory(ctx context.Context, input models.StoryInput) (*storyCreatedResponse, error) {
	req := createStoryRequest{
		Title:          input.Title,
		Content:        input.Prompt,
		StoryType:      string(input.StoryType),
		Tone:           input.Tone,
		VisualStyle:    input.VisualStyle,
		Language:       string(input.Language),
		Culture:        input.Culture,
		TargetAgeGroup: input.TargetAgeGroup,
		Tags:           input.Tags,
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}

	var resp storyCreatedResponse
	if err := c.backend.postJSON(ctx, opCreate, "/stories/create", req, &resp); err != nil {
		return nil, err
	}
	if err := checkSchema(opCreate, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *SessionClient) startSession(ctx context.Context, storyID string, lang models.Language) (models.StorySegment, error) {
	var resp sessionStartedResponse
	path := "/interactive/start/" + url.PathEscape(storyID)
	if err := c.backend.postJSON(ctx, opStart, path, startSessionRequest{Language: string(lang)}, &resp); err != nil {
		return models.StorySegment{}, err
	}
	if err := checkSchema(opStart, &resp); err != nil {
		return models.StorySegment{}, err
	}
	return models.StorySegment{
		ID:        resp.SessionID,
		SessionID: resp.SessionID,
		StoryID:   storyID,
		Text:      resp.CurrentScene,
		Choices:   normalizeChoices(resp.Choices),
	}, nil
}

// SubmitChoice advances a session by one choice. The returned segment always
// carries sessionID. While another request for the same session is
// outstanding the call fails fast with ErrSessionBusy.
func (c *SessionClient) SubmitChoice(ctx context.Context, sessionID, choiceID string, opts ...interfaces.SceneOption) models.StorySegment {
	options := interfaces.SceneOptions{ImageStyle: c.media.ImageStyle}
	for _, opt := range opts {
		opt(&options)
	}
	log := c.logger.With(zap.String("session_id", sessionID), zap.String("choice_id", choiceID))

	if sessionID == "" || choiceID == "" {
		return c.fallback(opChoose, sessionID, fmt.Errorf("%w: session and choice ids are required", ErrInvalidRequest))
	}
	if !c.inflight.acquire(sessionID) {
		log.Warn("rejected concurrent choice")
		return c.fallback(opChoose, sessionID, ErrSessionBusy)
	}
	defer c.inflight.release(sessionID)

	seg, err := c.choose(ctx, sessionID, choiceID)
	if err != nil {
		log.Warn("failed to submit choice", zap.Error(err))
		return c.fallback(opChoose, sessionID, err)
	}

	if seg.ImageRef == "" && c.images != nil && seg.Text != "" {
		description := prompts.RenderImagePrompt(prompts.ImagePromptContext{
			SceneDescription: sceneDescription(seg.Text),
			Mood:             options.Mood,
			Culture:          options.Culture,
		})
		if ref := c.images.GenerateImage(ctx, description, options.ImageStyle); ref != "" {
			seg = seg.WithImage(ref)
		}
	}

	log.Info("choice accepted", zap.Int("choices", len(seg.Choices)), zap.Bool("image", seg.ImageRef != ""))
	return seg
}

func (c *SessionClient) choose(ctx context.Context, sessionID, choiceID string) (models.StorySegment, error) {
	var resp choiceMadeResponse
	req := chooseRequest{SessionID: sessionID, ChoiceID: choiceID}
	if err := c.backend.postJSON(ctx, opChoose, "/interactive/choose", req, &resp); err != nil {
		return models.StorySegment{}, err
	}
	if err := checkSchema(opChoose, &resp); err != nil {
		return models.StorySegment{}, err
	}
	if resp.SessionID != "" && resp.SessionID != sessionID {
		return models.StorySegment{}, fmt.Errorf("%w: sent %s, got %s", ErrSessionMismatch, sessionID, resp.SessionID)
	}

	seg := models.StorySegment{
		ID:        c.segmentID(sessionID),
		SessionID: sessionID,
		Text:      resp.sceneText(),
		ImageRef:  c.resolveRef(resp.ImageURL),
		AudioRef:  c.resolveRef(resp.AudioURL),
		Choices:   normalizeChoices(resp.Choices),
	}
	if resp.PreviousChoice != nil {
		prev := normalizeChoice(*resp.PreviousChoice, 0)
		if resp.PreviousChoice.ChoiceID == "" {
			prev.ID = choiceID
		}
		seg.PreviousChoice = &prev
	}
	return seg, nil
}

// GenerateAudio narrates text. It returns "" when no generator is configured
// or generation fails.
func (c *SessionClient) GenerateAudio(ctx context.Context, text string, opts ...interfaces.AudioOption) string {
	if c.audio == nil || strings.TrimSpace(text) == "" {
		return ""
	}
	return c.audio.GenerateAudio(ctx, text, opts...)
}

// GenerateImage illustrates description in style, returning "" on failure.
func (c *SessionClient) GenerateImage(ctx context.Context, description, style string) string {
	if c.images == nil || strings.TrimSpace(description) == "" {
		return ""
	}
	return c.images.GenerateImage(ctx, description, style)
}

// Busy reports whether a request for sessionID is outstanding.
func (c *SessionClient) Busy(sessionID string) bool {
	return c.inflight.busy(sessionID)
}

func (c *SessionClient) fallback(op, sessionID string, err error) models.StorySegment {
	c.metrics.Fallback(op)
	return models.FallbackSegment(sessionID, err, c.now())
}

// segmentID names a segment after its session and the time it arrived.
func (c *SessionClient) segmentID(sessionID string) string {
	return fmt.Sprintf("%s-%d", sessionID, c.now().UnixNano())
}

// resolveRef makes backend-relative media paths absolute.
func (c *SessionClient) resolveRef(ref string) string {
	if ref == "" || strings.Contains(ref, "://") {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return c.backend.baseURL + ref
}

func sceneDescription(text string) string {
	if utf8.RuneCountInString(text) <= maxSceneDescription {
		return text
	}
	return string([]rune(text)[:maxSceneDescription])
}
