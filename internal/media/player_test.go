package media

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commandLog struct {
	mu   sync.Mutex
	cmds []Command
}

func (l *commandLog) sink(cmd Command) {
	l.mu.Lock()
	l.cmds = append(l.cmds, cmd)
	l.mu.Unlock()
}

func (l *commandLog) actions() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Action, 0, len(l.cmds))
	for _, c := range l.cmds {
		out = append(out, c.Action)
	}
	return out
}

func (l *commandLog) last() Command {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmds[len(l.cmds)-1]
}

func TestPlayerStateFollowsEvents(t *testing.T) {
	log := &commandLog{}
	p := NewAudioPlayer(log.sink)

	p.Load("http://b/media/audio/audio_1.mp3")
	require.NoError(t, p.Play())

	// commands alone do not change the state
	assert.False(t, p.State().Playing)

	p.OnMetadataLoaded(42)
	p.OnPlaying()
	p.OnTimeUpdate(3.5)

	st := p.State()
	assert.True(t, st.Loaded)
	assert.True(t, st.Playing)
	assert.Equal(t, 42.0, st.Duration)
	assert.Equal(t, 3.5, st.CurrentTime)

	p.OnEnded()
	st = p.State()
	assert.False(t, st.Playing)
	assert.True(t, st.Ended)
	assert.Equal(t, 42.0, st.CurrentTime)

	assert.Equal(t, []Action{ActionLoad, ActionPlay}, log.actions())
}

func TestPlayerWithoutSource(t *testing.T) {
	log := &commandLog{}
	p := NewAudioPlayer(log.sink)

	assert.ErrorIs(t, p.Play(), ErrNoSource)
	assert.ErrorIs(t, p.Seek(1), ErrNoSource)
	p.Pause()

	p.OnPlaying()
	assert.False(t, p.State().Playing, "events without a source are ignored")
	assert.Empty(t, log.actions())
}

func TestPlayerSeekClamp(t *testing.T) {
	log := &commandLog{}
	p := NewAudioPlayer(log.sink)
	p.Load("a.mp3")
	p.OnMetadataLoaded(10)

	require.NoError(t, p.Seek(25))
	assert.Equal(t, 10.0, log.last().Position)

	require.NoError(t, p.Seek(-4))
	assert.Equal(t, 0.0, log.last().Position)

	require.NoError(t, p.Seek(4))
	assert.Equal(t, 4.0, log.last().Position)
	assert.Equal(t, 0.0, p.State().CurrentTime, "position only moves on time updates")
}

func TestPlayerVolume(t *testing.T) {
	log := &commandLog{}
	p := NewAudioPlayer(log.sink)
	p.Load("a.mp3")

	p.SetVolume(1.7)
	assert.Equal(t, 1.0, log.last().Volume)
	p.SetVolume(0.25)
	assert.Equal(t, 0.25, log.last().Volume)

	p.Mute()
	assert.Equal(t, ActionMute, log.last().Action)
	p.OnVolumeChange(0.25, true)
	assert.True(t, p.State().Muted)

	// volume survives loading another reference
	p.Load("b.mp3")
	st := p.State()
	assert.Equal(t, 0.25, st.Volume)
	assert.True(t, st.Muted)
	assert.Equal(t, 0.0, st.Duration)
}

func TestPlayerToggleAndChange(t *testing.T) {
	log := &commandLog{}
	p := NewAudioPlayer(log.sink)
	var seen []PlayerState
	p.OnChange(func(st PlayerState) { seen = append(seen, st) })

	p.Load("a.mp3")
	require.NoError(t, p.Toggle())
	p.OnPlaying()
	require.NoError(t, p.Toggle())
	p.OnPaused()

	assert.Equal(t, []Action{ActionLoad, ActionPlay, ActionPause}, log.actions())
	require.Len(t, seen, 3)
	assert.True(t, seen[1].Playing)
	assert.False(t, seen[2].Playing)
}
