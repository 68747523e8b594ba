package generators

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/metrics"
)

const (
	statusCompleted  = "completed"
	statusProcessing = "processing"
)

var (
	errNoMediaID = errors.New("backend returned no media id")
	errNotReady  = errors.New("media not ready before timeout")
)

// mediaClient is the HTTP side of the media endpoints.
type mediaClient struct {
	httpClient   *http.Client
	baseURL      string
	readyTimeout time.Duration
	pollInterval time.Duration
	queue        *Queue
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// MediaOption tunes NewMedia.
type MediaOption func(*mediaClient)

// WithReadyQueue runs readiness checks on q instead of on their own goroutines.
func WithReadyQueue(q *Queue) MediaOption {
	return func(c *mediaClient) {
		c.queue = q
	}
}

// Media bundles the narration and illustration generators with status checks.
type Media struct {
	client *mediaClient
	Audio  *AudioGenerator
	Image  *ImageGenerator
}

// NewMedia creates generators for the backend in cfg. cache may be nil.
func NewMedia(cfg *config.Config, cache interfaces.RefCache, logger *zap.Logger, m *metrics.Metrics, opts ...MediaOption) *Media {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &mediaClient{
		httpClient:   &http.Client{Timeout: cfg.Backend.Timeout},
		baseURL:      strings.TrimRight(cfg.Backend.URL, "/"),
		readyTimeout: cfg.Media.ReadyTimeout,
		pollInterval: cfg.Media.PollInterval,
		logger:       logger.Named("media"),
		metrics:      m,
	}
	if client.pollInterval <= 0 {
		client.pollInterval = time.Second
	}
	for _, opt := range opts {
		opt(client)
	}
	return &Media{
		client: client,
		Audio: &AudioGenerator{
			client:     client,
			cache:      cache,
			voiceStyle: cfg.Media.VoiceStyle,
			language:   cfg.Media.Language,
			accent:     cfg.Media.Accent,
		},
		Image: &ImageGenerator{
			client:       client,
			cache:        cache,
			storyContext: cfg.Media.StoryContext,
		},
	}
}

// Status asks the backend whether a generated file exists yet.
func (m *Media) Status(ctx context.Context, kind interfaces.MediaKind, id string) (*interfaces.MediaStatus, error) {
	return m.client.status(ctx, kind, id)
}

// AudioURL is where the backend serves the narration with the given id.
func (m *Media) AudioURL(id string) string { return m.client.audioURL(id) }

// ImageURL is where the backend serves the illustration with the given id.
func (m *Media) ImageURL(id string) string { return m.client.imageURL(id) }

// post sends body as JSON and decodes a 2xx response into out.
func (c *mediaClient) post(ctx context.Context, op, path string, body, out interface{}) error {
	reqJSON, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(op, httpReq, out)
}

func (c *mediaClient) do(op string, req *http.Request, out interface{}) (err error) {
	started := time.Now()
	defer func() { c.metrics.ObserveRequest(op, started, err) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: HTTP %d: %s", op, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: failed to unmarshal response: %w", op, err)
	}
	return nil
}

func (c *mediaClient) status(ctx context.Context, kind interfaces.MediaKind, id string) (*interfaces.MediaStatus, error) {
	switch kind {
	case interfaces.MediaAudio, interfaces.MediaImage:
	default:
		return nil, fmt.Errorf("invalid media type %q", kind)
	}
	u := fmt.Sprintf("%s/media/status/%s?media_type=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(string(kind)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var st interfaces.MediaStatus
	if err := c.do("media_status", req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// confirm caches ref once the backend reports the file as completed. The
// caller gets the ref right away; without a ready timeout it is cached as is.
func (c *mediaClient) confirm(cache interfaces.RefCache, kind interfaces.MediaKind, id, key, ref string) {
	if cache == nil {
		return
	}
	if c.readyTimeout <= 0 {
		c.remember(context.Background(), cache, key, ref)
		return
	}

	log := c.logger.With(zap.String("kind", string(kind)), zap.String("media_id", id))
	run := func(ctx context.Context) error {
		if !c.awaitReady(ctx, kind, id) {
			log.Warn("media not ready before timeout, not cached")
			return errNotReady
		}
		c.remember(ctx, cache, key, ref)
		return nil
	}

	if c.queue == nil {
		go func() { _ = run(context.Background()) }()
		return
	}
	if err := c.queue.Enqueue(&Job{ID: string(kind) + "-" + id + "-ready", Run: run}); err != nil {
		log.Debug("readiness check not queued", zap.Error(err))
	}
}

// awaitReady polls the status endpoint until the file is completed or the
// ready timeout elapses. It reports whether the file was seen completed.
func (c *mediaClient) awaitReady(ctx context.Context, kind interfaces.MediaKind, id string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.readyTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		st, err := c.status(ctx, kind, id)
		if err == nil && st.Status == statusCompleted {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func (c *mediaClient) audioURL(id string) string {
	return fmt.Sprintf("%s/media/audio/audio_%s.mp3", c.baseURL, id)
}

func (c *mediaClient) imageURL(id string) string {
	return fmt.Sprintf("%s/media/image/image_%s.png", c.baseURL, id)
}

// lookup consults the ref cache, recording the outcome.
func (c *mediaClient) lookup(ctx context.Context, cache interfaces.RefCache, kind interfaces.MediaKind, key string) (string, bool) {
	if cache == nil {
		return "", false
	}
	ref, ok := cache.Get(ctx, key)
	c.metrics.CacheLookup(string(kind), ok)
	return ref, ok
}

func (c *mediaClient) remember(ctx context.Context, cache interfaces.RefCache, key, ref string) {
	if cache == nil {
		return
	}
	if err := cache.Put(ctx, key, ref); err != nil {
		c.logger.Warn("failed to cache media reference", zap.String("key", key), zap.Error(err))
	}
}

// GenerateCacheKey derives a stable cache key from request parameters.
func GenerateCacheKey(kind interfaces.MediaKind, parts ...string) string {
	data := string(kind) + "|" + strings.Join(parts, "|")
	hash := md5.Sum([]byte(data))
	return hex.EncodeToString(hash[:])
}
