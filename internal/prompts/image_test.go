package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderImagePrompt(t *testing.T) {
	tests := []struct {
		name string
		ctx  ImagePromptContext
		want string
	}{
		{
			name: "scene only",
			ctx:  ImagePromptContext{SceneDescription: "A heron lands on the rice terrace."},
			want: "A heron lands on the rice terrace.",
		},
		{
			name: "mood and culture",
			ctx:  ImagePromptContext{SceneDescription: "A drum circle at dusk", Mood: "Mysterious", Culture: "Yoruba"},
			want: "A drum circle at dusk, mysterious mood, set in Yoruba culture",
		},
		{
			name: "default culture is dropped",
			ctx:  ImagePromptContext{SceneDescription: "A lantern", Mood: "Epic", Culture: "Global"},
			want: "A lantern, epic mood",
		},
		{
			name: "no scene",
			ctx:  ImagePromptContext{Mood: "Dark"},
			want: "dark mood",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderImagePrompt(tt.ctx))
		})
	}
}
