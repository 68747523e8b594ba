package input

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
)

func TestWhisperTranscriber(t *testing.T) {
	var model, filename string
	var audio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		audio, _ = io.ReadAll(file)
		filename = header.Filename
		model = r.FormValue("model")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": " A tale of two rivers. "})
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(config.TranscriptionConfig{
		Enabled: true,
		BaseURL: srv.URL + "/v1",
		APIKey:  "test-key",
	}, nil)

	text, err := tr.Transcribe(context.Background(), "recording.webm", []byte("opus-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "A tale of two rivers.", text)
	assert.Equal(t, "whisper-1", model)
	assert.Equal(t, "recording.webm", filename)
	assert.Equal(t, []byte("opus-bytes"), audio)
}

func TestWhisperTranscriberErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid api key", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	tr := NewWhisperTranscriber(config.TranscriptionConfig{BaseURL: srv.URL + "/v1", APIKey: "bad"}, nil)

	_, err := tr.Transcribe(context.Background(), "recording.webm", []byte("x"))
	assert.ErrorContains(t, err, "invalid api key")

	_, err = tr.Transcribe(context.Background(), "recording.webm", nil)
	assert.Error(t, err)
}
