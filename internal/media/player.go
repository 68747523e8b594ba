package media

import (
	"errors"
	"sync"
)

var ErrNoSource = errors.New("no audio loaded")

// Action is a transport command sent to the playback primitive.
type Action string

const (
	ActionLoad   Action = "load"
	ActionUnload Action = "unload"
	ActionPlay   Action = "play"
	ActionPause  Action = "pause"
	ActionSeek   Action = "seek"
	ActionVolume Action = "volume"
	ActionMute   Action = "mute"
	ActionUnmute Action = "unmute"
)

// Command is one instruction for whatever actually plays the audio.
type Command struct {
	Action   Action  `json:"action"`
	Ref      string  `json:"ref,omitempty"`
	Position float64 `json:"position,omitempty"`
	Volume   float64 `json:"volume,omitempty"`
}

// CommandSink delivers commands to the playback primitive.
type CommandSink func(Command)

// PlayerState is the transport state. Times are in seconds.
type PlayerState struct {
	Ref         string  `json:"ref,omitempty"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Playing     bool    `json:"playing"`
	Ended       bool    `json:"ended"`
	Volume      float64 `json:"volume"`
	Muted       bool    `json:"muted"`
	Loaded      bool    `json:"loaded"`
}

// AudioPlayer controls one audio reference. Commands go out through the
// sink; the state only changes when the primitive reports an event.
type AudioPlayer struct {
	mu       sync.Mutex
	state    PlayerState
	sink     CommandSink
	onChange func(PlayerState)
}

func NewAudioPlayer(sink CommandSink) *AudioPlayer {
	if sink == nil {
		sink = func(Command) {}
	}
	return &AudioPlayer{sink: sink, state: PlayerState{Volume: 1}}
}

// OnChange registers a callback for state changes.
func (p *AudioPlayer) OnChange(fn func(PlayerState)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

func (p *AudioPlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load binds the player to ref and resets position and duration.
func (p *AudioPlayer) Load(ref string) {
	p.mu.Lock()
	volume, muted := p.state.Volume, p.state.Muted
	p.state = PlayerState{Ref: ref, Volume: volume, Muted: muted}
	p.mu.Unlock()

	p.send(Command{Action: ActionLoad, Ref: ref})
	p.changed()
}

// Unload detaches the current reference.
func (p *AudioPlayer) Unload() {
	p.mu.Lock()
	if p.state.Ref == "" {
		p.mu.Unlock()
		return
	}
	volume, muted := p.state.Volume, p.state.Muted
	p.state = PlayerState{Volume: volume, Muted: muted}
	p.mu.Unlock()

	p.send(Command{Action: ActionUnload})
	p.changed()
}

func (p *AudioPlayer) Play() error {
	if p.State().Ref == "" {
		return ErrNoSource
	}
	p.send(Command{Action: ActionPlay})
	return nil
}

func (p *AudioPlayer) Pause() {
	if p.State().Ref == "" {
		return
	}
	p.send(Command{Action: ActionPause})
}

// Toggle plays when paused and pauses when playing.
func (p *AudioPlayer) Toggle() error {
	if p.State().Playing {
		p.Pause()
		return nil
	}
	return p.Play()
}

// Seek asks for a new position, clamped to the known duration.
func (p *AudioPlayer) Seek(position float64) error {
	st := p.State()
	if st.Ref == "" {
		return ErrNoSource
	}
	if position < 0 {
		position = 0
	}
	if st.Duration > 0 && position > st.Duration {
		position = st.Duration
	}
	p.send(Command{Action: ActionSeek, Position: position})
	return nil
}

// SetVolume asks for a volume in [0, 1].
func (p *AudioPlayer) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	p.send(Command{Action: ActionVolume, Volume: volume})
}

func (p *AudioPlayer) Mute()   { p.send(Command{Action: ActionMute}) }
func (p *AudioPlayer) Unmute() { p.send(Command{Action: ActionUnmute}) }

// OnMetadataLoaded records the duration reported by the primitive.
func (p *AudioPlayer) OnMetadataLoaded(duration float64) {
	p.update(func(s *PlayerState) {
		s.Duration = duration
		s.Loaded = true
	})
}

func (p *AudioPlayer) OnTimeUpdate(current float64) {
	p.update(func(s *PlayerState) {
		s.CurrentTime = current
		s.Ended = false
	})
}

func (p *AudioPlayer) OnPlaying() {
	p.update(func(s *PlayerState) {
		s.Playing = true
		s.Ended = false
	})
}

func (p *AudioPlayer) OnPaused() {
	p.update(func(s *PlayerState) { s.Playing = false })
}

func (p *AudioPlayer) OnEnded() {
	p.update(func(s *PlayerState) {
		s.Playing = false
		s.Ended = true
		if s.Duration > 0 {
			s.CurrentTime = s.Duration
		}
	})
}

func (p *AudioPlayer) OnVolumeChange(volume float64, muted bool) {
	p.update(func(s *PlayerState) {
		s.Volume = volume
		s.Muted = muted
	})
}

// update applies an event. Events for an unloaded player are ignored.
func (p *AudioPlayer) update(fn func(*PlayerState)) {
	p.mu.Lock()
	if p.state.Ref == "" {
		p.mu.Unlock()
		return
	}
	fn(&p.state)
	p.mu.Unlock()
	p.changed()
}

func (p *AudioPlayer) send(cmd Command) {
	p.sink(cmd)
}

func (p *AudioPlayer) changed() {
	p.mu.Lock()
	fn, st := p.onChange, p.state
	p.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
