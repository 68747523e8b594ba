package story

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

func TestChoicePanelView(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}}
	h := NewHolder(backend, Options{})
	panel := NewChoicePanel(h)

	view := panel.View()
	assert.True(t, view.Disabled)
	assert.True(t, view.Empty)

	require.NoError(t, h.Start(context.Background(), testInput(t)))
	view = panel.View()
	assert.False(t, view.Disabled)
	assert.False(t, view.Empty)
	require.Len(t, view.Items, 2)
	assert.Equal(t, ChoiceItem{Number: 1, ID: "c1", Text: "Enter the forest"}, view.Items[0])
	assert.Equal(t, 2, view.Items[1].Number)
}

func TestChoicePanelEmptyChoices(t *testing.T) {
	end := models.StorySegment{ID: "sess1", SessionID: "sess1", Text: "The end.", Choices: []models.Choice{}}
	h := NewHolder(&fakeBackend{start: []models.StorySegment{end}}, Options{})
	panel := NewChoicePanel(h)

	require.NoError(t, h.Start(context.Background(), testInput(t)))

	view := panel.View()
	assert.True(t, view.Empty)
	assert.Empty(t, view.Items)
	assert.NotNil(t, view.Items)
}

func TestChoicePanelSelect(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, choose: []models.StorySegment{secondSegment()}}
	h := NewHolder(backend, Options{})
	panel := NewChoicePanel(h)
	ctx := context.Background()

	require.NoError(t, h.Start(ctx, testInput(t)))
	assert.ErrorIs(t, panel.SelectNumber(ctx, 5), ErrUnknownChoice)
	require.NoError(t, panel.SelectNumber(ctx, 2))
	assert.Equal(t, []string{"sess1/c2"}, backend.choices)
	assert.Equal(t, "The forest is dark.", h.Snapshot().Segment.Text)
}

func TestChoicePanelIgnoresSelectWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, choose: []models.StorySegment{secondSegment()}}
	h := NewHolder(backend, Options{})
	panel := NewChoicePanel(h)
	ctx := context.Background()
	require.NoError(t, h.Start(ctx, testInput(t)))

	backend.gate = gate
	done := make(chan error, 1)
	go func() { done <- panel.Select(ctx, "c1") }()
	require.Eventually(t, func() bool { return panel.View().Loading }, time.Second, time.Millisecond)

	assert.True(t, panel.View().Disabled)
	assert.NoError(t, panel.Select(ctx, "c2"))

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"sess1/c1"}, backend.choices)
}
