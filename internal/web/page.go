package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/input"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/media"
	"github.com/Harshitjoshi133/MangoDesk/internal/story"
)

// Page event types pushed over the websocket.
const (
	EventStory         = "story"
	EventPlayer        = "player"
	EventPlayerCommand = "player_command"
	EventImageError    = "image_error"
)

// endSessionTimeout bounds the backend call made when a page is unmounted.
const endSessionTimeout = 5 * time.Second

// StoryService is the session client as seen by a page.
type StoryService interface {
	interfaces.StoryBackend
	interfaces.PromptEnhancer
	interfaces.SessionManager
}

// Summarizer is the legacy summarize-and-email surface.
type Summarizer interface {
	Summarize(ctx context.Context, filename string, transcript []byte, customPrompt string) (string, error)
	SendEmail(ctx context.Context, summary string, recipients []string) (string, error)
}

// Publisher delivers page events to whoever follows the page.
type Publisher interface {
	Publish(pageID, msgType string, data interface{})
}

// Page is one mounted story page: the segment holder, its choice panel,
// the input collector and the media players.
type Page struct {
	ID        string
	CreatedAt time.Time

	Holder  *story.Holder
	Choices *story.ChoicePanel
	Input   *input.Collector
	Player  *media.AudioPlayer
	Deck    *media.Deck
	Image   *media.ImageView

	sessions    interfaces.SessionManager
	publisher   Publisher
	logger      *zap.Logger
	unsubscribe func()
	closeOnce   sync.Once
}

// PageView is the full state of a page for a front end.
type PageView struct {
	ID      string            `json:"page_id"`
	Story   story.Snapshot    `json:"story"`
	Choices story.ChoiceView  `json:"choices"`
	Input   input.State       `json:"input"`
	Player  media.PlayerState `json:"player"`
	Image   media.ImageState  `json:"image"`
}

func (p *Page) View() PageView {
	return PageView{
		ID:      p.ID,
		Story:   p.Holder.Snapshot(),
		Choices: p.Choices.View(),
		Input:   p.Input.State(),
		Player:  p.Player.State(),
		Image:   p.Image.State(),
	}
}

// onStoryEvent binds the players to each installed segment and forwards
// the event to the page's followers.
func (p *Page) onStoryEvent(ev story.Event) {
	switch ev.Type {
	case story.EventSegment:
		p.Image.Load(ev.Segment.ImageRef)
		if ev.Segment.AudioRef != "" {
			p.acquire(ev.Segment.AudioRef)
		}
	case story.EventAudio:
		p.acquire(ev.Segment.AudioRef)
	}
	p.publisher.Publish(p.ID, EventStory, ev)
}

func (p *Page) acquire(ref string) {
	if err := p.Deck.Acquire(ref); err != nil {
		p.logger.Debug("audio not acquired", zap.String("ref", ref), zap.Error(err))
	}
}

// close unmounts the page, releases everything it holds and ends its
// session on the backend.
func (p *Page) close() {
	p.closeOnce.Do(func() {
		sessionID := p.Holder.Snapshot().SessionID
		p.unsubscribe()
		p.Holder.Close()
		p.Deck.Close()
		p.Input.Close()

		if sessionID == "" || p.sessions == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), endSessionTimeout)
		defer cancel()
		if err := p.sessions.EndSession(ctx, sessionID); err != nil {
			p.logger.Warn("failed to end session", zap.String("session_id", sessionID), zap.Error(err))
		}
	})
}

// PageDeps are the collaborators shared by every page.
type PageDeps struct {
	Config      *config.Config
	Service     StoryService
	Transcriber interfaces.Transcriber
	Queue       *generators.Queue
	Publisher   Publisher
	Logger      *zap.Logger
}

// Pages tracks mounted pages by id.
type Pages struct {
	deps   PageDeps
	logger *zap.Logger

	mu    sync.RWMutex
	pages map[string]*Page
}

func NewPages(deps PageDeps) *Pages {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	return &Pages{
		deps:   deps,
		logger: deps.Logger.Named("pages"),
		pages:  make(map[string]*Page),
	}
}

// Create mounts a new page.
func (ps *Pages) Create() *Page {
	cfg := ps.deps.Config
	id := uuid.NewString()
	log := ps.deps.Logger.With(zap.String("page_id", id))
	pub := ps.deps.Publisher

	p := &Page{
		ID:        id,
		CreatedAt: time.Now(),
		sessions:  ps.deps.Service,
		publisher: pub,
		logger:    log,
	}
	p.Player = media.NewAudioPlayer(func(cmd media.Command) {
		pub.Publish(id, EventPlayerCommand, cmd)
	})
	p.Player.OnChange(func(st media.PlayerState) {
		pub.Publish(id, EventPlayer, st)
	})
	p.Deck = media.NewDeck(p.Player, cfg.Media.TempDir, log)
	p.Image = media.NewImageView(func(ref, reason string) {
		log.Warn("image failed to load", zap.String("ref", ref), zap.String("reason", reason))
		pub.Publish(id, EventImageError, map[string]string{"ref": ref, "reason": reason})
	})
	p.Holder = story.NewHolder(ps.deps.Service, story.Options{
		AutoNarrate:   cfg.Media.AutoNarrate,
		FallbackAudio: cfg.Media.FallbackAudio,
		Queue:         ps.deps.Queue,
		Deck:          p.Deck,
		Logger:        log,
	})
	p.Choices = story.NewChoicePanel(p.Holder)
	p.Input = input.NewCollector(cfg, ps.deps.Service, ps.deps.Transcriber, log)
	p.unsubscribe = p.Holder.Subscribe(p.onStoryEvent)

	ps.mu.Lock()
	ps.pages[id] = p
	n := len(ps.pages)
	ps.mu.Unlock()

	ps.logger.Info("page mounted", zap.String("page_id", id), zap.Int("pages", n))
	return p
}

func (ps *Pages) Get(id string) (*Page, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.pages[id]
	return p, ok
}

// Delete unmounts and forgets a page.
func (ps *Pages) Delete(id string) bool {
	ps.mu.Lock()
	p, ok := ps.pages[id]
	delete(ps.pages, id)
	ps.mu.Unlock()

	if !ok {
		return false
	}
	p.close()
	ps.logger.Info("page unmounted", zap.String("page_id", id))
	return true
}

// CloseAll unmounts every page.
func (ps *Pages) CloseAll() {
	ps.mu.Lock()
	pages := ps.pages
	ps.pages = make(map[string]*Page)
	ps.mu.Unlock()

	for _, p := range pages {
		p.close()
	}
}

func (ps *Pages) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.pages)
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, interface{}) {}
