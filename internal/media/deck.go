package media

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrDeckClosed = errors.New("audio deck is closed")

// Resource is the audio currently bound to the deck. LocalPath is set for
// blobs the deck wrote to disk itself.
type Resource struct {
	Ref       string `json:"ref"`
	LocalPath string `json:"-"`
}

// Deck keeps exactly one live audio resource. Acquiring a new one pauses
// and releases the previous one first.
type Deck struct {
	mu      sync.Mutex
	player  *AudioPlayer
	current *Resource
	tempDir string
	closed  *atomic.Bool
	logger  *zap.Logger
}

func NewDeck(player *AudioPlayer, tempDir string, logger *zap.Logger) *Deck {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deck{
		player:  player,
		tempDir: tempDir,
		closed:  atomic.NewBool(false),
		logger:  logger.Named("deck"),
	}
}

func (d *Deck) Player() *AudioPlayer {
	return d.player
}

// Acquire binds ref to the player. An empty ref only releases.
func (d *Deck) Acquire(ref string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return ErrDeckClosed
	}
	d.releaseLocked()
	if ref == "" {
		return nil
	}
	d.current = &Resource{Ref: ref}
	d.player.Load(ref)
	return nil
}

// AcquireBlob writes data to a temp file and binds it to the player under
// ref, or under a file:// reference when ref is empty. The file is removed
// when the resource is released.
func (d *Deck) AcquireBlob(data []byte, ext, ref string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return "", ErrDeckClosed
	}
	d.releaseLocked()

	f, err := os.CreateTemp(d.tempDir, "storyteller-*"+normalizeExt(ext))
	if err != nil {
		return "", fmt.Errorf("failed to create audio blob: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write audio blob: %w", err)
	}

	if ref == "" {
		ref = "file://" + f.Name()
	}
	d.current = &Resource{Ref: ref, LocalPath: f.Name()}
	d.player.Load(ref)
	return ref, nil
}

// Release pauses playback and frees the current resource.
func (d *Deck) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseLocked()
}

// Close releases the current resource and rejects further acquisitions.
func (d *Deck) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed.Store(true)
	d.releaseLocked()
}

func (d *Deck) releaseLocked() {
	if d.current == nil {
		return
	}
	d.player.Pause()
	d.player.Unload()
	if d.current.LocalPath != "" {
		if err := os.Remove(d.current.LocalPath); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove audio blob", zap.String("path", d.current.LocalPath), zap.Error(err))
		}
	}
	d.current = nil
}

// Current returns the live resource, if any.
func (d *Deck) Current() (Resource, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return Resource{}, false
	}
	return *d.current, true
}

func normalizeExt(ext string) string {
	if ext == "" {
		return ".webm"
	}
	if !strings.HasPrefix(ext, ".") {
		return "." + ext
	}
	return ext
}
