package prompts

import (
	"regexp"
	"strings"
)

// ImagePromptContext holds what is known about a scene to illustrate.
type ImagePromptContext struct {
	SceneDescription string
	Mood             string
	Culture          string
}

// imageClauses are joined in order; a clause is dropped when any of its
// variables is empty.
var imageClauses = []string{
	"{{scene_description}}",
	"{{mood}} mood",
	"set in {{culture}} culture",
}

var varRegex = regexp.MustCompile(`\{\{(\w+)\}\}`)

// RenderImagePrompt builds the description sent to the visual generator.
func RenderImagePrompt(ctx ImagePromptContext) string {
	vars := map[string]string{
		"scene_description": strings.TrimSpace(ctx.SceneDescription),
		"mood":              strings.ToLower(strings.TrimSpace(ctx.Mood)),
		"culture":           strings.TrimSpace(ctx.Culture),
	}
	// the default culture says nothing about the scene
	if strings.EqualFold(vars["culture"], "global") {
		vars["culture"] = ""
	}

	parts := make([]string, 0, len(imageClauses))
	for _, clause := range imageClauses {
		if rendered, ok := render(clause, vars); ok {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, ", ")
}

func render(tmpl string, vars map[string]string) (string, bool) {
	complete := true
	out := varRegex.ReplaceAllStringFunc(tmpl, func(match string) string {
		value := vars[varRegex.FindStringSubmatch(match)[1]]
		if value == "" {
			complete = false
		}
		return value
	})
	return out, complete
}
