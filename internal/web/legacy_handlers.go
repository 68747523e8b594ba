package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/engine"
)

// EmailRequest sends a summary to a list of recipients.
type EmailRequest struct {
	Summary    string   `json:"summary" validate:"required"`
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
}

// Summarize relays a transcript upload to the backend summarizer. The
// transcript must be a text file in the multipart field "transcript".
func (h *Handlers) Summarize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, header, err := r.FormFile("transcript")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a transcript is required in field \"transcript\"")
		return
	}
	defer f.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "text/") {
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a .txt file.")
		return
	}
	transcript, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read transcript")
		return
	}

	summary, err := h.summarizer.Summarize(r.Context(), header.Filename, transcript, r.FormValue("custom_prompt"))
	if err != nil {
		h.backendError(w, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *Handlers) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	msg, err := h.summarizer.SendEmail(r.Context(), req.Summary, req.Recipients)
	if err != nil {
		h.backendError(w, "send_email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// backendError passes client errors from the backend through and reports
// everything else as a bad gateway.
func (h *Handlers) backendError(w http.ResponseWriter, op string, err error) {
	h.logger.Warn("backend call failed", zap.String("op", op), zap.Error(err))

	if errors.Is(err, engine.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var se *engine.StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		detail := se.Detail
		if detail == "" {
			detail = se.Error()
		}
		writeError(w, se.Code, detail)
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
