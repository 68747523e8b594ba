package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandParser(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		line   string
		typ    CommandType
		number int
	}{
		{"2", CommandChoose, 2},
		{"  3 ", CommandChoose, 3},
		{"/choose 1", CommandChoose, 1},
		{"/CHOOSE 4", CommandChoose, 4},
		{"/vote 2", CommandChoose, 2},
		{"0", CommandUnknown, 0},
		{"/retry", CommandRetry, 0},
		{"/r", CommandRetry, 0},
		{"/audio", CommandAudio, 0},
		{"/pause", CommandAudio, 0},
		{"/history", CommandHistory, 0},
		{"/restart", CommandRestart, 0},
		{"/help", CommandHelp, 0},
		{"/quit", CommandQuit, 0},
		{"/exit", CommandQuit, 0},
		{"/dance now", CommandUnknown, 0},
		{"a fisherman and the moon", CommandText, 0},
		{"", CommandText, 0},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd := p.Parse(tt.line)
			assert.Equal(t, tt.typ, cmd.Type)
			assert.Equal(t, tt.number, cmd.Number)
		})
	}
}

func TestCommandParserArgs(t *testing.T) {
	p := NewCommandParser()

	cmd := p.Parse("/audio volume 0.5")
	assert.Equal(t, CommandAudio, cmd.Type)
	assert.Equal(t, "audio", cmd.Name)
	assert.Equal(t, []string{"volume", "0.5"}, cmd.Args)
	assert.Equal(t, "/audio volume 0.5", cmd.RawText)

	assert.True(t, p.IsCommand("/quit"))
	assert.True(t, p.IsCommand("1"))
	assert.False(t, p.IsCommand("once upon a time"))
}
