package story

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	start     []models.StorySegment
	choose    []models.StorySegment
	restart   []models.StorySegment
	restarts  []string
	languages []string
	audioRef  string
	creates   int
	choices   []string
	styles    []string
	moods     []string
	gate      chan struct{}
	audioGate chan struct{}
}

func (b *fakeBackend) CreateAndStartSession(ctx context.Context, input models.StoryInput) models.StorySegment {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	seg := b.start[0]
	if len(b.start) > 1 {
		b.start = b.start[1:]
	}
	return seg
}

func (b *fakeBackend) SubmitChoice(ctx context.Context, sessionID, choiceID string, opts ...interfaces.SceneOption) models.StorySegment {
	b.wait()
	var o interfaces.SceneOptions
	for _, opt := range opts {
		opt(&o)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.choices = append(b.choices, sessionID+"/"+choiceID)
	b.styles = append(b.styles, o.ImageStyle)
	b.moods = append(b.moods, o.Mood)
	seg := b.choose[0]
	if len(b.choose) > 1 {
		b.choose = b.choose[1:]
	}
	return seg
}

func (b *fakeBackend) RestartSession(ctx context.Context, sessionID string) models.StorySegment {
	b.wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restarts = append(b.restarts, sessionID)
	seg := b.restart[0]
	if len(b.restart) > 1 {
		b.restart = b.restart[1:]
	}
	return seg
}

func (b *fakeBackend) GenerateAudio(ctx context.Context, text string, opts ...interfaces.AudioOption) string {
	var o interfaces.AudioOptions
	for _, opt := range opts {
		opt(&o)
	}
	b.mu.Lock()
	b.languages = append(b.languages, o.Language)
	b.mu.Unlock()
	if b.audioGate != nil {
		select {
		case <-b.audioGate:
		case <-ctx.Done():
			return ""
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.audioRef
}

func (b *fakeBackend) wait() {
	if b.gate != nil {
		<-b.gate
	}
}

type countingDeck struct{ releases *atomic.Int32 }

func (d countingDeck) Release() { d.releases.Inc() }

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func firstSegment() models.StorySegment {
	return models.StorySegment{
		ID:        "sess1",
		SessionID: "sess1",
		Text:      "Once upon a time...",
		Choices:   []models.Choice{{ID: "c1", Text: "Enter the forest"}, {ID: "c2", Text: "Stay home"}},
	}
}

func secondSegment() models.StorySegment {
	return models.StorySegment{
		ID:        "sess1-2",
		SessionID: "sess1",
		Text:      "The forest is dark.",
		Choices:   []models.Choice{{ID: "c3", Text: "Light a torch"}},
	}
}

func testInput(t *testing.T) models.StoryInput {
	t.Helper()
	in, err := models.NewStoryInput(models.StoryInput{Prompt: "A village elder tells a tale", VisualStyle: "Watercolor"})
	require.NoError(t, err)
	return in
}

func TestHolderStartAndChoose(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, choose: []models.StorySegment{secondSegment()}}
	deck := countingDeck{releases: atomic.NewInt32(0)}
	h := NewHolder(backend, Options{Deck: deck})
	rec := &recorder{}
	h.Subscribe(rec.listen)
	ctx := context.Background()

	assert.Equal(t, StateIdle, h.Snapshot().State)

	require.NoError(t, h.Start(ctx, testInput(t)))
	snap := h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "sess1", snap.SessionID)
	require.NotNil(t, snap.Segment)
	assert.Equal(t, "Once upon a time...", snap.Segment.Text)
	assert.Equal(t, []EventType{EventState, EventScrollTop, EventSegment, EventState}, rec.types())
	assert.Equal(t, int32(1), deck.releases.Load())

	require.NoError(t, h.Choose(ctx, "c1"))
	snap = h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "The forest is dark.", snap.Segment.Text)
	assert.Equal(t, []string{"sess1/c1"}, backend.choices)
	assert.Equal(t, []string{"traditional_art"}, backend.styles)
	assert.Equal(t, []string{"Epic"}, backend.moods)
	assert.Len(t, snap.Progress.Segments, 2)
	assert.Equal(t, []string{"c1"}, snap.Progress.UserChoices)
	assert.Equal(t, int32(2), deck.releases.Load())
}

func TestHolderRejectsUnknownChoice(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, h.Choose(ctx, "c1"), ErrNoSession)
	require.NoError(t, h.Start(ctx, testInput(t)))
	assert.ErrorIs(t, h.Choose(ctx, "nope"), ErrUnknownChoice)
	assert.Empty(t, backend.choices)
}

func TestHolderBusyWhileLoading(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, gate: gate}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- h.Start(ctx, testInput(t)) }()
	require.Eventually(t, func() bool { return h.Snapshot().State == StateLoading }, time.Second, time.Millisecond)

	assert.ErrorIs(t, h.Start(ctx, testInput(t)), ErrBusy)
	assert.ErrorIs(t, h.Choose(ctx, "c1"), ErrBusy)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, StateReady, h.Snapshot().State)
	assert.Equal(t, 1, backend.creates)
}

func TestHolderRetryAfterFailedStart(t *testing.T) {
	failed := models.FallbackSegment("", errors.New("backend returned status 500"), time.Now())
	backend := &fakeBackend{start: []models.StorySegment{failed, firstSegment()}}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	require.NoError(t, h.Start(ctx, testInput(t)))
	snap := h.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Contains(t, snap.Error, "500")
	assert.Empty(t, snap.Progress.Segments)

	require.NoError(t, h.Choose(ctx, models.RetryChoiceID))
	snap = h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 2, backend.creates)
	assert.Equal(t, "sess1", snap.SessionID)
}

func TestHolderRetryAfterFailedChoice(t *testing.T) {
	failed := models.FallbackSegment("sess1", errors.New("timeout"), time.Now())
	backend := &fakeBackend{
		start:  []models.StorySegment{firstSegment()},
		choose: []models.StorySegment{failed, secondSegment()},
	}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	require.NoError(t, h.Start(ctx, testInput(t)))
	require.NoError(t, h.Choose(ctx, "c2"))
	assert.Equal(t, StateErrored, h.Snapshot().State)
	assert.Equal(t, "sess1", h.Snapshot().SessionID)

	require.NoError(t, h.Choose(ctx, models.RetryChoiceID))
	assert.Equal(t, []string{"sess1/c2", "sess1/c2"}, backend.choices)
	snap := h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, []string{"c2"}, snap.Progress.UserChoices)
}

func TestHolderDiscardsResultsAfterClose(t *testing.T) {
	gate := make(chan struct{})
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, gate: gate}
	h := NewHolder(backend, Options{})
	rec := &recorder{}
	h.Subscribe(rec.listen)

	done := make(chan error, 1)
	go func() { done <- h.Start(context.Background(), testInput(t)) }()
	require.Eventually(t, func() bool { return h.Snapshot().State == StateLoading }, time.Second, time.Millisecond)

	h.Close()
	close(gate)
	require.NoError(t, <-done)

	snap := h.Snapshot()
	assert.Nil(t, snap.Segment)
	assert.Equal(t, []EventType{EventState}, rec.types())
	assert.True(t, h.Closed())
	assert.ErrorIs(t, h.Start(context.Background(), testInput(t)), ErrClosed)
	assert.ErrorIs(t, h.Choose(context.Background(), "c1"), ErrClosed)
}

func TestHolderAutoNarration(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, audioRef: "http://backend/media/audio/audio_1.mp3"}
	q := generators.NewQueue(config.QueueConfig{MaxWorkers: 1, MaxQueueSize: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	h := NewHolder(backend, Options{AutoNarrate: true, Queue: q})
	rec := &recorder{}
	h.Subscribe(rec.listen)

	require.NoError(t, h.Start(context.Background(), testInput(t)))
	require.Eventually(t, func() bool {
		seg := h.Snapshot().Segment
		return seg != nil && seg.AudioRef != ""
	}, time.Second, time.Millisecond)

	snap := h.Snapshot()
	assert.Equal(t, "http://backend/media/audio/audio_1.mp3", snap.Segment.AudioRef)
	assert.Equal(t, "http://backend/media/audio/audio_1.mp3", snap.Progress.Segments[0].AudioRef)
	assert.Contains(t, rec.types(), EventAudio)
}

func TestHolderNarrationFallbackAudio(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}}
	h := NewHolder(backend, Options{AutoNarrate: true, FallbackAudio: "/static/silence.mp3"})

	require.NoError(t, h.Start(context.Background(), testInput(t)))

	require.Eventually(t, func() bool {
		seg := h.Snapshot().Segment
		return seg != nil && seg.AudioRef == "/static/silence.mp3"
	}, time.Second, time.Millisecond)
}

func TestHolderIgnoresStaleNarration(t *testing.T) {
	audioGate := make(chan struct{})
	backend := &fakeBackend{
		start:     []models.StorySegment{firstSegment()},
		choose:    []models.StorySegment{secondSegment()},
		audioRef:  "http://backend/media/audio/audio_old.mp3",
		audioGate: audioGate,
	}
	h := NewHolder(backend, Options{AutoNarrate: true})
	ctx := context.Background()

	require.NoError(t, h.Start(ctx, testInput(t)))
	require.NoError(t, h.Choose(ctx, "c1"))
	close(audioGate)

	// Both narrations finish, but only the second segment's may be attached.
	require.Eventually(t, func() bool {
		seg := h.Snapshot().Segment
		return seg != nil && seg.AudioRef != ""
	}, time.Second, time.Millisecond)
	snap := h.Snapshot()
	assert.Equal(t, "sess1-2", snap.Segment.ID)
	assert.Empty(t, snap.Progress.Segments[0].AudioRef)
}

func restartedSegment() models.StorySegment {
	return models.StorySegment{
		ID:        "sess2",
		SessionID: "sess2",
		Text:      "Once more, the elder begins.",
		Choices:   []models.Choice{{ID: "c1", Text: "Enter the forest"}},
	}
}

func TestHolderRestart(t *testing.T) {
	backend := &fakeBackend{
		start:   []models.StorySegment{firstSegment()},
		choose:  []models.StorySegment{secondSegment()},
		restart: []models.StorySegment{restartedSegment()},
	}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, h.Restart(ctx), ErrNoSession)
	assert.Equal(t, StateIdle, h.Snapshot().State)

	require.NoError(t, h.Start(ctx, testInput(t)))
	require.NoError(t, h.Choose(ctx, "c1"))
	require.NoError(t, h.Restart(ctx))

	snap := h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "sess2", snap.SessionID)
	assert.Equal(t, []string{"sess1"}, backend.restarts)
	require.Len(t, snap.Progress.Segments, 1)
	assert.Equal(t, "Once more, the elder begins.", snap.Progress.Segments[0].Text)
	assert.Empty(t, snap.Progress.UserChoices)
}

func TestHolderRetryAfterFailedRestart(t *testing.T) {
	backend := &fakeBackend{
		start: []models.StorySegment{firstSegment()},
		restart: []models.StorySegment{
			models.FallbackSegment("sess1", errors.New("backend down"), time.Now()),
			restartedSegment(),
		},
	}
	h := NewHolder(backend, Options{})
	ctx := context.Background()

	require.NoError(t, h.Start(ctx, testInput(t)))
	require.NoError(t, h.Restart(ctx))
	snap := h.Snapshot()
	assert.Equal(t, StateErrored, snap.State)
	assert.Len(t, snap.Progress.Segments, 1, "a failed restart keeps the history")

	require.NoError(t, h.Choose(ctx, models.RetryChoiceID))
	snap = h.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, "sess2", snap.SessionID)
	assert.Equal(t, []string{"sess1", "sess1"}, backend.restarts)
	assert.Len(t, snap.Progress.Segments, 1)
}

func TestHolderNarratesInStoryLanguage(t *testing.T) {
	backend := &fakeBackend{start: []models.StorySegment{firstSegment()}, audioRef: "http://backend/media/audio/audio_hi.mp3"}
	h := NewHolder(backend, Options{AutoNarrate: true})

	in, err := models.NewStoryInput(models.StoryInput{Prompt: "Panchatantra ki kahani", Language: models.LanguageHindi})
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background(), in))

	require.Eventually(t, func() bool {
		seg := h.Snapshot().Segment
		return seg != nil && seg.AudioRef != ""
	}, time.Second, time.Millisecond)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"hi"}, backend.languages)
}

func TestHolderAudioNeverFollowsNewerSegment(t *testing.T) {
	for i := 0; i < 50; i++ {
		backend := &fakeBackend{
			start:    []models.StorySegment{firstSegment()},
			choose:   []models.StorySegment{secondSegment()},
			audioRef: "http://backend/media/audio/audio_1.mp3",
		}
		h := NewHolder(backend, Options{AutoNarrate: true})
		rec := &recorder{}
		h.Subscribe(rec.listen)
		ctx := context.Background()

		require.NoError(t, h.Start(ctx, testInput(t)))
		require.NoError(t, h.Choose(ctx, "c1"))
		require.Eventually(t, func() bool {
			seg := h.Snapshot().Segment
			return seg != nil && seg.ID == "sess1-2" && seg.AudioRef != ""
		}, time.Second, time.Millisecond)

		rec.mu.Lock()
		var installed string
		for _, ev := range rec.events {
			switch ev.Type {
			case EventSegment:
				installed = ev.Segment.ID
			case EventAudio:
				assert.Equal(t, installed, ev.Segment.ID, "audio event for a replaced segment")
			}
		}
		rec.mu.Unlock()
		h.Close()
	}
}
