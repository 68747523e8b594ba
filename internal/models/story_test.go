package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoryInput_Defaults(t *testing.T) {
	in, err := NewStoryInput(StoryInput{Prompt: "  A village elder tells a tale of the river spirit  "})
	require.NoError(t, err)

	assert.Equal(t, "A village elder tells a tale of the river spirit", in.Prompt)
	assert.Equal(t, "Epic", in.Tone)
	assert.Equal(t, "Anime", in.VisualStyle)
	assert.Equal(t, StoryTypeFolkTale, in.StoryType)
	assert.Equal(t, LanguageEnglish, in.Language)
	assert.Equal(t, "A village elder tells a tale", in.Title)
	assert.Equal(t, "all", in.TargetAgeGroup)
}

func TestNewStoryInput_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   StoryInput
	}{
		{"empty prompt", StoryInput{Prompt: "   "}},
		{"unknown story type", StoryInput{Prompt: "p", StoryType: "sci_fi"}},
		{"unsupported language", StoryInput{Prompt: "p", Language: "jp"}},
		{"bad age group", StoryInput{Prompt: "p", TargetAgeGroup: "elders"}},
		{"long culture", StoryInput{Prompt: "p", Culture: strings.Repeat("x", 101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStoryInput(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestNewStoryInput_CopiesTags(t *testing.T) {
	tags := []string{"river"}
	in, err := NewStoryInput(StoryInput{Prompt: "p", Tags: tags})
	require.NoError(t, err)

	tags[0] = "changed"
	assert.Equal(t, "river", in.Tags[0])
}

func TestImageStyleFor(t *testing.T) {
	assert.Equal(t, "cartoon", ImageStyleFor("Anime"))
	assert.Equal(t, "realistic", ImageStyleFor("Photorealistic"))
	assert.Equal(t, "traditional_art", ImageStyleFor("Oil Painting"))
	assert.Equal(t, "realistic", ImageStyleFor("realistic"))
	assert.Equal(t, "illustration", ImageStyleFor("Vaporwave"))
}

func TestFallbackSegment(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	seg := FallbackSegment("sess1", errors.New("boom"), now)

	assert.Equal(t, "error-1700000000123", seg.ID)
	assert.Equal(t, "sess1", seg.SessionID)
	assert.Contains(t, seg.Text, "boom")
	require.Len(t, seg.Choices, 1)
	assert.Equal(t, RetryChoiceID, seg.Choices[0].ID)
	assert.True(t, seg.IsRetry())
}

func TestStorySegment_WithAudioCopies(t *testing.T) {
	orig := StorySegment{ID: "s", Choices: []Choice{{ID: "c1"}}}
	withAudio := orig.WithAudio("http://a/audio.mp3")

	withAudio.Choices[0].ID = "mutated"
	assert.Empty(t, orig.AudioRef)
	assert.Equal(t, "c1", orig.Choices[0].ID)
	assert.Equal(t, "http://a/audio.mp3", withAudio.AudioRef)
}

func TestProgress(t *testing.T) {
	var p Progress
	_, ok := p.Current()
	assert.False(t, ok)

	p.Record(StorySegment{ID: "1"}, "")
	p.Record(StorySegment{ID: "2"}, "c1")
	p.ReplaceCurrent(StorySegment{ID: "2", AudioRef: "a"})

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, "a", cur.AudioRef)
	assert.Equal(t, []string{"c1"}, p.UserChoices)
	assert.Len(t, p.Segments, 2)
}
