package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

// Request and response bodies of the storyteller backend, schema v1.
// Every response is decoded once and checked by checkSchema; nothing else
// in the package looks at raw backend JSON.

type createStoryRequest struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	StoryType      string   `json:"story_type"`
	Tone           string   `json:"tone"`
	VisualStyle    string   `json:"visual_style"`
	Language       string   `json:"language"`
	Culture        string   `json:"culture"`
	TargetAgeGroup string   `json:"target_age_group"`
	Tags           []string `json:"tags"`
}

type storyCreatedResponse struct {
	StoryID         string `json:"story_id" validate:"required"`
	EnhancedContent string `json:"enhanced_content"`
}

type startSessionRequest struct {
	Language string `json:"language"`
}

type choiceV1 struct {
	ChoiceID    string `json:"choice_id"`
	ChoiceText  string `json:"choice_text"`
	Consequence string `json:"consequence"`
}

type sessionStartedResponse struct {
	SessionID    string     `json:"session_id" validate:"required"`
	CurrentScene string     `json:"current_scene" validate:"required"`
	Choices      []choiceV1 `json:"choices" validate:"min=1"`
}

type chooseRequest struct {
	SessionID string `json:"session_id"`
	ChoiceID  string `json:"choice_id"`
}

// choiceMadeResponse accepts "scene" as the v1 alias of "current_scene".
// session_id may be absent; when present it must match the request.
type choiceMadeResponse struct {
	SessionID      string     `json:"session_id"`
	CurrentScene   string     `json:"current_scene" validate:"required_without=Scene"`
	Scene          string     `json:"scene"`
	Choices        []choiceV1 `json:"choices"`
	AudioURL       string     `json:"audio_url"`
	ImageURL       string     `json:"image_url"`
	PreviousChoice *choiceV1  `json:"previous_choice"`
}

func (r *choiceMadeResponse) sceneText() string {
	if r.CurrentScene != "" {
		return r.CurrentScene
	}
	return r.Scene
}

type sessionStateResponse struct {
	SessionID     string     `json:"session_id" validate:"required"`
	CurrentScene  string     `json:"current_scene"`
	Choices       []choiceV1 `json:"choices"`
	HistoryLength int        `json:"history_length"`
}

type sessionHistoryResponse struct {
	SessionID string   `json:"session_id" validate:"required"`
	History   []string `json:"history"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type summaryResponse struct {
	Summary string `json:"summary" validate:"required"`
}

type sendEmailRequest struct {
	Summary    string   `json:"summary"`
	Recipients []string `json:"recipients"`
}

var schema = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkSchema validates a decoded response and reports the first violation.
func checkSchema(op string, resp interface{}) error {
	err := schema.Struct(resp)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &SchemaError{Op: op, Field: fieldErrs[0].Field(), Rule: fieldErrs[0].Tag()}
	}
	return fmt.Errorf("%s: schema check failed: %w", op, err)
}

// normalizeChoices maps backend choices onto models.Choice, keeping order
// and length. A missing id is replaced with a fresh unique one.
func normalizeChoices(in []choiceV1) []models.Choice {
	out := make([]models.Choice, 0, len(in))
	for i, c := range in {
		out = append(out, normalizeChoice(c, i))
	}
	return out
}

func normalizeChoice(c choiceV1, i int) models.Choice {
	id := strings.TrimSpace(c.ChoiceID)
	if id == "" {
		id = "choice-" + uuid.NewString()
	}
	text := c.ChoiceText
	if text == "" {
		text = fmt.Sprintf("Choice %d", i+1)
	}
	return models.Choice{ID: id, Text: text, Consequence: c.Consequence}
}
