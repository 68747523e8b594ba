package input

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

type fakeEnhancer struct {
	got interfaces.UploadInput
	out string
	err error
}

func (f *fakeEnhancer) EnhanceUpload(ctx context.Context, in interfaces.UploadInput) (string, error) {
	f.got = in
	return f.out, f.err
}

type fakeTranscriber struct {
	filename string
	text     string
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	f.filename = filename
	return f.text, f.err
}

func newCollector(enhancer interfaces.PromptEnhancer, transcriber interfaces.Transcriber) *Collector {
	return NewCollector(config.Default(), enhancer, transcriber, nil)
}

func TestCollectorText(t *testing.T) {
	c := newCollector(nil, nil)
	assert.False(t, c.CanSubmit())

	require.NoError(t, c.SetText("   "))
	assert.False(t, c.CanSubmit())

	require.NoError(t, c.SetText("  A village elder tells a tale "))
	assert.True(t, c.CanSubmit())

	prompt, err := c.Resolve(context.Background(), models.StoryInput{})
	require.NoError(t, err)
	assert.Equal(t, "A village elder tells a tale", prompt)
}

func TestCollectorFileTruncatedBeforeEnhance(t *testing.T) {
	enhancer := &fakeEnhancer{out: "An enhanced tale."}
	c := newCollector(enhancer, nil)
	content := strings.Repeat("ab", 250)

	require.NoError(t, c.SetFile("tale.txt", strings.NewReader(content)))
	assert.Equal(t, 200, c.State().FileChars)

	prompt, err := c.Resolve(context.Background(), models.StoryInput{Title: "Tale", StoryType: models.StoryTypeMythology})
	require.NoError(t, err)
	assert.Equal(t, "An enhanced tale.", prompt)
	assert.Equal(t, content[:200], enhancer.got.Content)
	assert.Equal(t, "tale.txt", enhancer.got.Filename)
	assert.Equal(t, "Tale", enhancer.got.Title)
	assert.Equal(t, models.StoryTypeMythology, enhancer.got.StoryType)
	assert.Equal(t, "Global", enhancer.got.Culture)
}

func TestCollectorFileCountsCharactersNotBytes(t *testing.T) {
	enhancer := &fakeEnhancer{out: "ok"}
	c := newCollector(enhancer, nil)

	require.NoError(t, c.SetFile("kahani.txt", strings.NewReader(strings.Repeat("क", 300))))
	_, err := c.Resolve(context.Background(), models.StoryInput{})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("क", 200), enhancer.got.Content)
}

func TestCollectorFileErrors(t *testing.T) {
	c := newCollector(nil, nil)
	assert.Error(t, c.SetFile("image.png", strings.NewReader("\xff\xfe\xfd")))

	require.NoError(t, c.SetFile("tale.txt", strings.NewReader("text")))
	_, err := c.Resolve(context.Background(), models.StoryInput{})
	assert.ErrorIs(t, err, ErrNoEnhancer)

	failing := newCollector(&fakeEnhancer{err: errors.New("status 500")}, nil)
	require.NoError(t, failing.SetFile("tale.txt", strings.NewReader("text")))
	_, err = failing.Resolve(context.Background(), models.StoryInput{})
	assert.ErrorContains(t, err, "status 500")
}

func TestCollectorSourcesAreExclusive(t *testing.T) {
	c := newCollector(&fakeEnhancer{}, nil)

	require.NoError(t, c.SetFile("tale.txt", strings.NewReader("file text")))
	require.NoError(t, c.SetText("typed"))
	st := c.State()
	assert.Equal(t, SourceText, st.Source)
	assert.Empty(t, st.FileName)

	require.NoError(t, c.SetRecording([]byte{1, 2, 3}, "audio/webm"))
	st = c.State()
	assert.Equal(t, SourceRecording, st.Source)
	assert.Empty(t, st.Text)
	assert.Equal(t, 3, st.RecordingBytes)

	require.NoError(t, c.SetText("typed again"))
	_, ok := c.Recording()
	assert.False(t, ok)
}

func TestCollectorRecordingPlaceholder(t *testing.T) {
	c := newCollector(nil, nil)
	require.NoError(t, c.SetRecording([]byte("blob"), "audio/webm"))

	prompt, err := c.Resolve(context.Background(), models.StoryInput{})
	require.NoError(t, err)
	assert.Equal(t, config.Default().Input.RecordingPrompt, prompt)
}

func TestCollectorRecordingTranscribed(t *testing.T) {
	transcriber := &fakeTranscriber{text: " The elder spoke of rivers. "}
	c := newCollector(nil, transcriber)
	require.NoError(t, c.SetRecording([]byte("blob"), "audio/ogg;codecs=opus"))

	prompt, err := c.Resolve(context.Background(), models.StoryInput{})
	require.NoError(t, err)
	assert.Equal(t, "The elder spoke of rivers.", prompt)
	assert.Equal(t, "recording.ogg", transcriber.filename)

	transcriber.err = errors.New("quota")
	prompt, err = c.Resolve(context.Background(), models.StoryInput{})
	require.NoError(t, err)
	assert.Equal(t, config.Default().Input.RecordingPrompt, prompt)
}

func TestCollectorRecordingTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Input.MaxRecordingBytes = 4
	c := NewCollector(cfg, nil, nil, nil)

	assert.ErrorIs(t, c.SetRecording([]byte("12345"), "audio/webm"), ErrRecordingTooLarge)
	assert.Equal(t, SourceNone, c.State().Source)
}

func TestCollectorBuild(t *testing.T) {
	c := newCollector(nil, nil)
	_, err := c.Build(context.Background(), models.StoryInput{})
	assert.ErrorIs(t, err, ErrNothingToSubmit)

	require.NoError(t, c.SetText("A village elder tells a tale"))
	in, err := c.Build(context.Background(), models.StoryInput{Tone: "Mysterious", Language: models.LanguageHindi})
	require.NoError(t, err)
	assert.Equal(t, "A village elder tells a tale", in.Prompt)
	assert.Equal(t, "Mysterious", in.Tone)
	assert.Equal(t, models.LanguageHindi, in.Language)
	assert.Equal(t, "Global", in.Culture)
}

func TestCollectorClearAndClose(t *testing.T) {
	c := newCollector(nil, nil)
	require.NoError(t, c.SetRecording([]byte("blob"), "audio/webm"))

	c.Clear()
	_, ok := c.Recording()
	assert.False(t, ok)
	assert.False(t, c.CanSubmit())

	c.Close()
	assert.ErrorIs(t, c.SetText("late"), ErrCollectorClosed)
	_, err := c.Resolve(context.Background(), models.StoryInput{})
	assert.ErrorIs(t, err, ErrCollectorClosed)
}
