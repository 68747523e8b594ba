package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

type uploadResponse struct {
	StoryID         string `json:"story_id" validate:"required"`
	EnhancedContent string `json:"enhanced_content" validate:"required"`
}

// EnhanceUpload sends a text file to the backend and returns the expanded prompt.
func (c *SessionClient) EnhanceUpload(ctx context.Context, in interfaces.UploadInput) (string, error) {
	if strings.TrimSpace(in.Content) == "" {
		return "", fmt.Errorf("%w: upload is empty", ErrInvalidRequest)
	}

	filename := in.Filename
	if filename == "" {
		filename = "story.txt"
	}
	title := in.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	fields := map[string]string{
		"title":            title,
		"story_type":       orDefault(string(in.StoryType), string(models.StoryTypeFolkTale)),
		"language":         orDefault(string(in.Language), string(models.LanguageEnglish)),
		"culture":          orDefault(in.Culture, c.cfg.Culture),
		"target_age_group": orDefault(in.TargetAgeGroup, c.cfg.TargetAgeGroup),
	}
	files := []formFile{{field: "file", filename: filename, content: []byte(in.Content)}}

	var resp uploadResponse
	if err := c.backend.postForm(ctx, opUpload, "/stories/upload", fields, files, &resp); err != nil {
		return "", err
	}
	if err := checkSchema(opUpload, &resp); err != nil {
		return "", err
	}

	c.logger.Debug("upload enhanced",
		zap.String("filename", filename),
		zap.String("story_id", resp.StoryID),
		zap.Int("enhanced_len", len(resp.EnhancedContent)))
	return resp.EnhancedContent, nil
}

// GetSession fetches the current scene and choices of a session.
func (c *SessionClient) GetSession(ctx context.Context, sessionID string) (*models.SessionState, error) {
	var resp sessionStateResponse
	if err := c.backend.send(ctx, http.MethodGet, opGet, sessionPath(sessionID), &resp); err != nil {
		return nil, err
	}
	if err := checkSchema(opGet, &resp); err != nil {
		return nil, err
	}
	return &models.SessionState{
		SessionID:     resp.SessionID,
		Scene:         resp.CurrentScene,
		Choices:       normalizeChoices(resp.Choices),
		HistoryLength: resp.HistoryLength,
	}, nil
}

// History returns the scenes and choices of a session in order.
func (c *SessionClient) History(ctx context.Context, sessionID string) ([]string, error) {
	var resp sessionHistoryResponse
	if err := c.backend.send(ctx, http.MethodGet, opHistory, sessionPath(sessionID)+"/history", &resp); err != nil {
		return nil, err
	}
	if err := checkSchema(opHistory, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return []string{}, nil
	}
	return resp.History, nil
}

// EndSession discards a session on the backend.
func (c *SessionClient) EndSession(ctx context.Context, sessionID string) error {
	var resp messageResponse
	if err := c.backend.send(ctx, http.MethodDelete, opEnd, sessionPath(sessionID), &resp); err != nil {
		return err
	}
	c.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}

// RestartSession replaces a session with a fresh one on the same story.
// Like the other story operations it returns a fallback segment on failure.
func (c *SessionClient) RestartSession(ctx context.Context, sessionID string) models.StorySegment {
	log := c.logger.With(zap.String("session_id", sessionID))

	if !c.inflight.acquire(sessionID) {
		return c.fallback(opRestart, sessionID, ErrSessionBusy)
	}
	defer c.inflight.release(sessionID)

	var resp sessionStartedResponse
	if err := c.backend.postJSON(ctx, opRestart, sessionPath(sessionID)+"/restart", struct{}{}, &resp); err != nil {
		log.Warn("failed to restart session", zap.Error(err))
		return c.fallback(opRestart, sessionID, err)
	}
	if err := checkSchema(opRestart, &resp); err != nil {
		log.Warn("failed to restart session", zap.Error(err))
		return c.fallback(opRestart, sessionID, err)
	}

	log.Info("session restarted", zap.String("new_session_id", resp.SessionID))
	return models.StorySegment{
		ID:        resp.SessionID,
		SessionID: resp.SessionID,
		Text:      resp.CurrentScene,
		Choices:   normalizeChoices(resp.Choices),
	}
}

func sessionPath(sessionID string) string {
	return "/interactive/session/" + url.PathEscape(sessionID)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
