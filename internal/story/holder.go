package story

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
)

var (
	ErrBusy          = errors.New("a story request is already in progress")
	ErrClosed        = errors.New("story page is closed")
	ErrNoSession     = errors.New("no story has been started")
	ErrUnknownChoice = errors.New("choice is not offered by the current segment")
)

var errNoAudio = errors.New("no narration available")

// State is the lifecycle of the segment shown on a page.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateErrored State = "errored"
)

type EventType string

const (
	// EventScrollTop asks the view to reset its scroll position.
	EventScrollTop EventType = "scroll_top"
	// EventSegment carries a newly installed segment.
	EventSegment EventType = "segment"
	// EventState carries a state change.
	EventState EventType = "state"
	// EventAudio carries the current segment after narration was attached.
	EventAudio EventType = "audio"
)

// Event is delivered to listeners in the order the holder produces them.
type Event struct {
	Type    EventType            `json:"type"`
	State   State                `json:"state,omitempty"`
	Segment *models.StorySegment `json:"segment,omitempty"`
	Error   string               `json:"error,omitempty"`
}

type Listener func(Event)

// AudioDeck owns the page's single live audio resource.
type AudioDeck interface {
	// Release pauses playback and frees the current resource.
	Release()
}

// Options tune a Holder.
type Options struct {
	AutoNarrate   bool
	FallbackAudio string
	// Queue runs narration jobs. Without one narration runs on its own goroutine.
	Queue  *generators.Queue
	Deck   AudioDeck
	Logger *zap.Logger
}

// Snapshot is a consistent copy of the holder's state.
type Snapshot struct {
	State     State                `json:"state"`
	Segment   *models.StorySegment `json:"segment,omitempty"`
	Error     string               `json:"error,omitempty"`
	SessionID string               `json:"session_id,omitempty"`
	Progress  models.Progress      `json:"progress"`
}

// Loading reports whether a request is outstanding.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// Holder owns the current segment of one page and the loading/error flags
// around it. Only one request may be outstanding at a time.
type Holder struct {
	backend interfaces.StoryBackend
	opts    Options
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed *atomic.Bool

	mu         sync.Mutex
	state      State
	current    *models.StorySegment
	errMsg     string
	sessionID  string
	imageStyle string
	lastInput  *models.StoryInput
	lastChoice string
	restarting bool
	progress   models.Progress
	generation uint64

	// emitMu orders segment installs against narration attachment so a
	// stale audio event never follows a newer segment.
	emitMu sync.Mutex

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

func NewHolder(backend interfaces.StoryBackend, opts Options) *Holder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Holder{
		backend:   backend,
		opts:      opts,
		logger:    logger.Named("holder"),
		ctx:       ctx,
		cancel:    cancel,
		closed:    atomic.NewBool(false),
		state:     StateIdle,
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l for future events and returns a function removing it.
func (h *Holder) Subscribe(l Listener) func() {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = l
	return func() {
		h.listenersMu.Lock()
		delete(h.listeners, id)
		h.listenersMu.Unlock()
	}
}

func (h *Holder) emit(events ...Event) {
	h.listenersMu.Lock()
	listeners := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.listenersMu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

// Snapshot returns the current state.
func (h *Holder) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	snap := Snapshot{
		State:     h.state,
		Error:     h.errMsg,
		SessionID: h.sessionID,
		Progress: models.Progress{
			Segments:    append([]models.StorySegment{}, h.progress.Segments...),
			UserChoices: append([]string{}, h.progress.UserChoices...),
		},
	}
	if h.current != nil {
		seg := *h.current
		snap.Segment = &seg
	}
	return snap
}

// Start creates a story from input and installs its first segment.
func (h *Holder) Start(ctx context.Context, input models.StoryInput) error {
	h.mu.Lock()
	if err := h.beginLocked(); err != nil {
		h.mu.Unlock()
		return err
	}
	in := input
	h.lastInput = &in
	h.lastChoice = ""
	h.sessionID = ""
	h.imageStyle = input.ImageStyle()
	h.progress = models.Progress{}
	h.mu.Unlock()

	h.emit(Event{Type: EventState, State: StateLoading})
	h.logger.Debug("starting story", zap.String("title", input.Title))

	seg := h.backend.CreateAndStartSession(ctx, input)
	h.install(seg, "")
	return nil
}

// Choose advances the story by choiceID. Choosing retry on a fallback
// segment repeats whatever failed.
func (h *Holder) Choose(ctx context.Context, choiceID string) error {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return ErrClosed
	}
	if h.state == StateLoading {
		h.mu.Unlock()
		return ErrBusy
	}
	if h.current == nil {
		h.mu.Unlock()
		return ErrNoSession
	}

	retry := choiceID == models.RetryChoiceID && h.current.IsRetry()
	if retry && h.sessionID == "" {
		if h.lastInput == nil {
			h.mu.Unlock()
			return ErrNoSession
		}
		input := *h.lastInput
		h.mu.Unlock()
		return h.Start(ctx, input)
	}
	if retry {
		if h.lastChoice == "" {
			// the failed request was a restart
			h.mu.Unlock()
			return h.Restart(ctx)
		}
		choiceID = h.lastChoice
	} else if !offers(h.current, choiceID) {
		h.mu.Unlock()
		return ErrUnknownChoice
	}

	h.state = StateLoading
	h.lastChoice = choiceID
	sessionID := h.sessionID
	opts := []interfaces.SceneOption{interfaces.WithImageStyle(h.imageStyle)}
	if h.lastInput != nil {
		opts = append(opts, interfaces.WithMood(h.lastInput.Tone), interfaces.WithCulture(h.lastInput.Culture))
	}
	h.mu.Unlock()

	h.emit(Event{Type: EventState, State: StateLoading})
	h.logger.Debug("submitting choice", zap.String("session_id", sessionID), zap.String("choice_id", choiceID))

	seg := h.backend.SubmitChoice(ctx, sessionID, choiceID, opts...)
	h.install(seg, choiceID)
	return nil
}

// Restart replaces the session with a fresh one on the same story. The
// history starts over with the new session's first segment.
func (h *Holder) Restart(ctx context.Context) error {
	h.mu.Lock()
	if h.sessionID == "" && !h.closed.Load() && h.state != StateLoading {
		h.mu.Unlock()
		return ErrNoSession
	}
	if err := h.beginLocked(); err != nil {
		h.mu.Unlock()
		return err
	}
	sessionID := h.sessionID
	h.lastChoice = ""
	h.restarting = true
	h.mu.Unlock()

	h.emit(Event{Type: EventState, State: StateLoading})
	h.logger.Debug("restarting session", zap.String("session_id", sessionID))

	seg := h.backend.RestartSession(ctx, sessionID)
	h.install(seg, "")
	return nil
}

func (h *Holder) beginLocked() error {
	if h.closed.Load() {
		return ErrClosed
	}
	if h.state == StateLoading {
		return ErrBusy
	}
	h.state = StateLoading
	return nil
}

// install replaces the current segment wholesale.
func (h *Holder) install(seg models.StorySegment, choiceID string) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		h.logger.Debug("discarding segment for closed page", zap.String("segment_id", seg.ID))
		return
	}

	h.current = &seg
	if seg.SessionID != "" {
		h.sessionID = seg.SessionID
	}
	if seg.Fallback {
		h.state = StateErrored
		h.errMsg = seg.Err
	} else {
		h.state = StateReady
		h.errMsg = ""
		if h.restarting {
			h.progress = models.Progress{}
		}
		h.progress.Record(seg, choiceID)
	}
	h.restarting = false
	h.generation++
	gen := h.generation
	var lang string
	if h.lastInput != nil {
		lang = string(h.lastInput.Language)
	}
	state, errMsg := h.state, h.errMsg
	h.mu.Unlock()

	if h.opts.Deck != nil {
		h.opts.Deck.Release()
	}

	installed := seg
	h.emit(
		Event{Type: EventScrollTop},
		Event{Type: EventSegment, Segment: &installed},
		Event{Type: EventState, State: state, Error: errMsg},
	)

	if h.opts.AutoNarrate && !seg.Fallback && seg.AudioRef == "" {
		h.narrate(seg, gen, lang)
	}
}

// narrate generates audio for seg and attaches it if seg is still current.
func (h *Holder) narrate(seg models.StorySegment, gen uint64, lang string) {
	run := func(ctx context.Context) error {
		ref := h.backend.GenerateAudio(ctx, seg.Text, interfaces.WithLanguage(lang))
		if ref == "" {
			ref = h.opts.FallbackAudio
		}
		if ref == "" {
			return errNoAudio
		}
		h.attachAudio(gen, ref)
		return nil
	}

	if h.opts.Queue == nil {
		go func() { _ = run(h.ctx) }()
		return
	}
	job := &generators.Job{ID: seg.ID + "-narration", Run: run}
	if err := h.opts.Queue.Enqueue(job); err != nil {
		h.logger.Warn("narration not queued", zap.String("segment_id", seg.ID), zap.Error(err))
	}
}

func (h *Holder) attachAudio(gen uint64, ref string) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.mu.Lock()
	if h.closed.Load() || gen != h.generation || h.current == nil {
		h.mu.Unlock()
		return
	}
	updated := h.current.WithAudio(ref)
	h.current = &updated
	h.progress.ReplaceCurrent(updated)
	h.mu.Unlock()

	h.emit(Event{Type: EventAudio, Segment: &updated})
}

// Close unmounts the page. Results arriving afterwards are discarded.
func (h *Holder) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	h.cancel()
	if h.opts.Deck != nil {
		h.opts.Deck.Release()
	}
	h.listenersMu.Lock()
	h.listeners = make(map[int]Listener)
	h.listenersMu.Unlock()
}

// Closed reports whether Close was called.
func (h *Holder) Closed() bool {
	return h.closed.Load()
}

func offers(seg *models.StorySegment, choiceID string) bool {
	for _, c := range seg.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}
