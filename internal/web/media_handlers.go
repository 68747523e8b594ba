package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
)

// MediaStatus reports whether a narration or illustration the backend is
// generating has been written yet.
func (h *Handlers) MediaStatus(w http.ResponseWriter, r *http.Request) {
	kind := interfaces.MediaKind(chi.URLParam(r, "media_type"))
	if kind != interfaces.MediaAudio && kind != interfaces.MediaImage {
		writeError(w, http.StatusBadRequest, "media_type must be audio or image")
		return
	}
	st, err := h.media.Status(r.Context(), kind, chi.URLParam(r, "media_id"))
	if err != nil {
		h.backendError(w, "media_status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
