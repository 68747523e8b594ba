package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// StoryType is the category of story the backend is asked to tell.
type StoryType string

const (
	StoryTypeFolkTale          StoryType = "folk_tale"
	StoryTypeHistorical        StoryType = "historical"
	StoryTypeMythology         StoryType = "mythology"
	StoryTypeCulturalTradition StoryType = "cultural_tradition"
)

// Language is one of the language codes the backend supports.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
	LanguageSpanish Language = "es"
	LanguageFrench  Language = "fr"
	LanguageGerman  Language = "de"
)

// Tones offered by the input form.
var Tones = []string{"Epic", "Mysterious", "Whimsical", "Dark", "Romantic", "Adventure"}

// VisualStyles offered by the input form.
var VisualStyles = []string{"Anime", "Photorealistic", "Oil Painting", "Digital Art", "Watercolor", "Cinematic"}

// imageStyles maps form visual styles onto the styles the image endpoint accepts.
var imageStyles = map[string]string{
	"anime":          "cartoon",
	"photorealistic": "realistic",
	"cinematic":      "realistic",
	"oil painting":   "traditional_art",
	"watercolor":     "traditional_art",
	"digital art":    "illustration",
}

// ImageStyleFor returns the backend image style for a form visual style.
// Values the backend already understands pass through unchanged.
func ImageStyleFor(visualStyle string) string {
	key := strings.ToLower(strings.TrimSpace(visualStyle))
	if style, ok := imageStyles[key]; ok {
		return style
	}
	switch key {
	case "illustration", "realistic", "cartoon", "traditional_art":
		return key
	}
	return "illustration"
}

const (
	defaultTone        = "Epic"
	defaultVisualStyle = "Anime"
	defaultCulture     = "Global"
	defaultAgeGroup    = "all"
	titleWords         = 6
	maxTitleLen        = 200
)

// StoryInput seeds an interactive session. It is a value: build it with
// NewStoryInput and pass it around by copy.
type StoryInput struct {
	Prompt         string    `json:"prompt" validate:"required"`
	Tone           string    `json:"tone" validate:"required"`
	VisualStyle    string    `json:"visual_style" validate:"required"`
	StoryType      StoryType `json:"story_type" validate:"required,oneof=folk_tale historical mythology cultural_tradition"`
	Language       Language  `json:"language" validate:"required,oneof=en hi es fr de"`
	Title          string    `json:"title" validate:"required,max=200"`
	Culture        string    `json:"culture" validate:"required,max=100"`
	TargetAgeGroup string    `json:"target_age_group" validate:"oneof=children teens adults all"`
	Tags           []string  `json:"tags,omitempty"`
}

var validate = validator.New()

// NewStoryInput fills defaults for empty optional fields and validates the result.
func NewStoryInput(in StoryInput) (StoryInput, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	if in.Tone == "" {
		in.Tone = defaultTone
	}
	if in.VisualStyle == "" {
		in.VisualStyle = defaultVisualStyle
	}
	if in.StoryType == "" {
		in.StoryType = StoryTypeFolkTale
	}
	if in.Language == "" {
		in.Language = LanguageEnglish
	}
	if in.Culture == "" {
		in.Culture = defaultCulture
	}
	if in.TargetAgeGroup == "" {
		in.TargetAgeGroup = defaultAgeGroup
	}
	if in.Title == "" {
		in.Title = TitleFromPrompt(in.Prompt)
	}
	if len(in.Tags) > 0 {
		in.Tags = append([]string(nil), in.Tags...)
	}

	if err := validate.Struct(in); err != nil {
		return StoryInput{}, fmt.Errorf("invalid story input: %w", err)
	}
	return in, nil
}

// ImageStyle is the backend image style for this input's visual style.
func (in StoryInput) ImageStyle() string {
	return ImageStyleFor(in.VisualStyle)
}

// TitleFromPrompt derives a short title from the first words of a prompt.
func TitleFromPrompt(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > titleWords {
		words = words[:titleWords]
	}
	title := strings.Join(words, " ")
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}
	return title
}

// Choice is one option offered at the end of a segment.
type Choice struct {
	ID          string `json:"choice_id"`
	Text        string `json:"choice_text"`
	Consequence string `json:"consequence"`
}

// RetryChoiceID is the id of the only choice on a fallback segment.
const RetryChoiceID = "retry"

// StorySegment is one unit of rendered story plus its next choices.
// Segments are never mutated once installed; the With* helpers return copies.
type StorySegment struct {
	ID             string   `json:"id"`
	SessionID      string   `json:"session_id"`
	StoryID        string   `json:"story_id,omitempty"`
	Text           string   `json:"text"`
	ImageRef       string   `json:"image_url,omitempty"`
	AudioRef       string   `json:"audio_url,omitempty"`
	Choices        []Choice `json:"choices"`
	PreviousChoice *Choice  `json:"previous_choice,omitempty"`

	// Fallback marks a locally built segment standing in for a failed request.
	Fallback bool   `json:"fallback,omitempty"`
	Err      string `json:"error,omitempty"`
}

// WithAudio returns a copy of s carrying the given audio reference.
func (s StorySegment) WithAudio(ref string) StorySegment {
	out := s.clone()
	out.AudioRef = ref
	return out
}

// WithImage returns a copy of s carrying the given image reference.
func (s StorySegment) WithImage(ref string) StorySegment {
	out := s.clone()
	out.ImageRef = ref
	return out
}

func (s StorySegment) clone() StorySegment {
	out := s
	out.Choices = append([]Choice{}, s.Choices...)
	if s.PreviousChoice != nil {
		prev := *s.PreviousChoice
		out.PreviousChoice = &prev
	}
	return out
}

// IsRetry reports whether s is a fallback whose only way forward is a retry.
func (s StorySegment) IsRetry() bool {
	return s.Fallback && len(s.Choices) == 1 && s.Choices[0].ID == RetryChoiceID
}

// FallbackSegment represents a failure while keeping the page in a valid state.
func FallbackSegment(sessionID string, err error, now time.Time) StorySegment {
	msg := "the storyteller is unavailable"
	if err != nil {
		msg = err.Error()
	}
	return StorySegment{
		ID:        fmt.Sprintf("error-%d", now.UnixMilli()),
		SessionID: sessionID,
		Text:      fmt.Sprintf("Something went wrong while weaving your story: %s. Please try again.", msg),
		Choices: []Choice{{
			ID:          RetryChoiceID,
			Text:        "Retry",
			Consequence: "Try the last step again",
		}},
		Fallback: true,
		Err:      msg,
	}
}

// Progress is the ordered record of a playthrough on one page.
type Progress struct {
	Segments    []StorySegment `json:"segments"`
	UserChoices []string       `json:"user_choices"`
}

// Current returns the most recent segment, if any.
func (p *Progress) Current() (StorySegment, bool) {
	if len(p.Segments) == 0 {
		return StorySegment{}, false
	}
	return p.Segments[len(p.Segments)-1], true
}

// Record appends a segment and, when non-empty, the choice that led to it.
func (p *Progress) Record(seg StorySegment, choiceID string) {
	p.Segments = append(p.Segments, seg)
	if choiceID != "" {
		p.UserChoices = append(p.UserChoices, choiceID)
	}
}

// ReplaceCurrent swaps the latest segment, used when media arrives for it.
func (p *Progress) ReplaceCurrent(seg StorySegment) {
	if len(p.Segments) == 0 {
		return
	}
	p.Segments[len(p.Segments)-1] = seg
}

// SessionState is the backend's view of a live session.
type SessionState struct {
	SessionID     string   `json:"session_id"`
	Scene         string   `json:"current_scene"`
	Choices       []Choice `json:"choices"`
	HistoryLength int      `json:"history_length"`
}
