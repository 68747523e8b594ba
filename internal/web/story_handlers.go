package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/input"
	"github.com/Harshitjoshi133/MangoDesk/internal/media"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
	"github.com/Harshitjoshi133/MangoDesk/internal/story"
)

const (
	// maxUploadBytes bounds multipart bodies for text file uploads.
	maxUploadBytes        = 2 << 20
	defaultRecordingLimit = 10 << 20
)

type TextRequest struct {
	Text string `json:"text"`
}

// SubmitRequest carries the story metadata chosen next to the prompt source.
type SubmitRequest struct {
	Title          string           `json:"title"`
	Tone           string           `json:"tone"`
	VisualStyle    string           `json:"visual_style"`
	StoryType      models.StoryType `json:"story_type"`
	Language       models.Language  `json:"language"`
	Culture        string           `json:"culture"`
	TargetAgeGroup string           `json:"target_age_group"`
	Tags           []string         `json:"tags,omitempty"`
}

// ChooseRequest selects a choice by id or by its 1-based number.
type ChooseRequest struct {
	ChoiceID string `json:"choice_id"`
	Number   int    `json:"number"`
}

// PlayerRequest is either a transport command from the listener or an
// event reported by the playback primitive.
type PlayerRequest struct {
	Command     string  `json:"command,omitempty"`
	Event       string  `json:"event,omitempty"`
	Position    float64 `json:"position,omitempty"`
	Volume      float64 `json:"volume,omitempty"`
	Duration    float64 `json:"duration,omitempty"`
	CurrentTime float64 `json:"current_time,omitempty"`
	Muted       bool    `json:"muted,omitempty"`
}

type ImageRequest struct {
	Event  string `json:"event" validate:"required,oneof=load error"`
	Ref    string `json:"ref" validate:"required"`
	Reason string `json:"reason"`
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request) (*Page, bool) {
	id := chi.URLParam(r, "page_id")
	p, ok := h.pages.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %s not found", id))
		return nil, false
	}
	return p, true
}

func (h *Handlers) CreatePage(w http.ResponseWriter, r *http.Request) {
	p := h.pages.Create()
	writeJSON(w, http.StatusCreated, p.View())
}

func (h *Handlers) GetPage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

// DeletePage unmounts a page. Requests still in flight for it are discarded.
func (h *Handlers) DeletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "page_id")
	if !h.pages.Delete(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("page %s not found", id))
		return
	}
	if h.hub != nil {
		h.hub.DisconnectPage(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetText(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := p.Input.SetText(req.Text); err != nil {
		h.inputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Input.State())
}

// SetFile accepts a text file in the multipart field "file".
func (h *Handlers) SetFile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a text file is required in field \"file\"")
		return
	}
	defer f.Close()

	if err := p.Input.SetFile(header.Filename, f); err != nil {
		h.inputError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Input.State())
}

// SetRecording accepts a recorded blob in the multipart field "audio". The
// recording also becomes the page's live audio so it can be previewed.
func (h *Handlers) SetRecording(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	limit := h.config.Input.MaxRecordingBytes
	if limit <= 0 {
		limit = defaultRecordingLimit
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxUploadBytes)
	f, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a recording is required in field \"audio\"")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read recording")
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if err := p.Input.SetRecording(data, mimeType); err != nil {
		h.inputError(w, err)
		return
	}

	ext := filepath.Ext(input.RecordingFilename(mimeType))
	if _, err := p.Deck.AcquireBlob(data, ext, localAudioPath(p.ID)); err != nil {
		h.logger.Warn("recording preview unavailable", zap.String("page_id", p.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, p.Input.State())
}

func (h *Handlers) ClearInput(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	p.Input.Clear()
	writeJSON(w, http.StatusOK, p.Input.State())
}

// Submit resolves the active prompt source and starts a story with it.
func (h *Handlers) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if p.Holder.Snapshot().Loading() {
		writeError(w, http.StatusConflict, story.ErrBusy.Error())
		return
	}

	in, err := p.Input.Build(r.Context(), models.StoryInput{
		Title:          req.Title,
		Tone:           req.Tone,
		VisualStyle:    req.VisualStyle,
		StoryType:      req.StoryType,
		Language:       req.Language,
		Culture:        req.Culture,
		TargetAgeGroup: req.TargetAgeGroup,
		Tags:           req.Tags,
	})
	if err != nil {
		h.inputError(w, err)
		return
	}

	if err := p.Holder.Start(r.Context(), in); err != nil {
		h.storyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (h *Handlers) Choose(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req ChooseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChoiceID == "" && req.Number == 0 {
		writeError(w, http.StatusBadRequest, "choice_id or number is required")
		return
	}

	var err error
	if req.ChoiceID != "" {
		err = p.Choices.Select(r.Context(), req.ChoiceID)
	} else {
		err = p.Choices.SelectNumber(r.Context(), req.Number)
	}
	if err != nil {
		h.storyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

// Player applies a transport command or a playback event.
// Restart replaces the page's session with a fresh one on the same story.
func (h *Handlers) Restart(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	if err := p.Holder.Restart(r.Context()); err != nil {
		h.storyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

// History lists the scenes and choices of the page's session as the backend
// recorded them.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	p, sessionID, ok := h.pageSession(w, r)
	if !ok {
		return
	}
	history, err := p.sessions.History(r.Context(), sessionID)
	if err != nil {
		h.backendError(w, "session_history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    history,
	})
}

// Session reports the backend's view of the page's session.
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	p, sessionID, ok := h.pageSession(w, r)
	if !ok {
		return
	}
	state, err := p.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		h.backendError(w, "get_session", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handlers) pageSession(w http.ResponseWriter, r *http.Request) (*Page, string, bool) {
	p, ok := h.page(w, r)
	if !ok {
		return nil, "", false
	}
	if p.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "session service unavailable")
		return nil, "", false
	}
	sessionID := p.Holder.Snapshot().SessionID
	if sessionID == "" {
		h.storyError(w, story.ErrNoSession)
		return nil, "", false
	}
	return p, sessionID, true
}

func (h *Handlers) Player(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req PlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	player := p.Player
	var err error
	switch {
	case req.Command != "":
		err = applyCommand(player, req)
	case req.Event != "":
		err = applyEvent(player, req)
	default:
		err = errors.New("command or event is required")
	}
	if errors.Is(err, media.ErrNoSource) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, player.State())
}

func applyCommand(p *media.AudioPlayer, req PlayerRequest) error {
	switch req.Command {
	case "play":
		return p.Play()
	case "pause":
		p.Pause()
	case "toggle":
		return p.Toggle()
	case "seek":
		return p.Seek(req.Position)
	case "volume":
		p.SetVolume(req.Volume)
	case "mute":
		p.Mute()
	case "unmute":
		p.Unmute()
	default:
		return fmt.Errorf("unknown player command %q", req.Command)
	}
	return nil
}

func applyEvent(p *media.AudioPlayer, req PlayerRequest) error {
	switch req.Event {
	case "loadedmetadata":
		p.OnMetadataLoaded(req.Duration)
	case "timeupdate":
		p.OnTimeUpdate(req.CurrentTime)
	case "playing":
		p.OnPlaying()
	case "pause":
		p.OnPaused()
	case "ended":
		p.OnEnded()
	case "volumechange":
		p.OnVolumeChange(req.Volume, req.Muted)
	default:
		return fmt.Errorf("unknown player event %q", req.Event)
	}
	return nil
}

// LocalAudio serves the page's live audio when it is a local blob.
func (h *Handlers) LocalAudio(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	cur, ok := p.Deck.Current()
	if !ok || cur.LocalPath == "" {
		writeError(w, http.StatusNotFound, "no local audio")
		return
	}
	http.ServeFile(w, r, cur.LocalPath)
}

// Image records a load or error event for the page's image.
func (h *Handlers) Image(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Event == "load" {
		p.Image.OnLoad(req.Ref)
	} else {
		p.Image.OnError(req.Ref, req.Reason)
	}
	writeJSON(w, http.StatusOK, p.Image.State())
}

// Stream upgrades to a websocket carrying the page's events.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	p, ok := h.page(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Hub not initialized")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		PageID: p.ID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    h.hub,
	}

	welcome, _ := json.Marshal(Message{Type: "connected", PageID: p.ID, Data: p.View()})
	client.Send <- welcome

	h.hub.register <- client
	go client.readPump()
}

func (h *Handlers) inputError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, input.ErrNothingToSubmit), errors.Is(err, input.ErrNotText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, input.ErrRecordingTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, input.ErrCollectorClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, input.ErrNoEnhancer):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Warn("prompt source could not be resolved", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *Handlers) storyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, story.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, story.ErrNoSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, story.ErrUnknownChoice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, story.ErrClosed):
		writeError(w, http.StatusGone, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func localAudioPath(pageID string) string {
	return "/api/v1/pages/" + pageID + "/audio/local"
}
