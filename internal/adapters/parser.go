package adapters

import (
	"regexp"
	"strconv"
	"strings"
)

// CommandType is what a line typed in play mode asks for.
type CommandType string

const (
	CommandChoose  CommandType = "choose"
	CommandRetry   CommandType = "retry"
	CommandAudio   CommandType = "audio"
	CommandHistory CommandType = "history"
	CommandRestart CommandType = "restart"
	CommandHelp    CommandType = "help"
	CommandQuit    CommandType = "quit"
	// CommandText is a line that is not a command, e.g. a story prompt.
	CommandText CommandType = "text"
	// CommandUnknown is a slash command the parser does not know.
	CommandUnknown CommandType = "unknown"
)

// ParsedCommand is one parsed input line.
type ParsedCommand struct {
	Type    CommandType
	Name    string
	Number  int
	Args    []string
	RawText string
}

// CommandParser parses lines typed in the terminal play mode.
type CommandParser struct {
	numberPattern  *regexp.Regexp
	choosePattern  *regexp.Regexp
	commandPattern *regexp.Regexp
}

func NewCommandParser() *CommandParser {
	return &CommandParser{
		numberPattern:  regexp.MustCompile(`^(\d+)$`),
		choosePattern:  regexp.MustCompile(`^/(?:choose|vote)\s+(\d+)$`),
		commandPattern: regexp.MustCompile(`^/(\w+)(?:\s+(.+))?$`),
	}
}

// Parse parses one line. A bare number and "/choose N" select the N-th choice.
func (p *CommandParser) Parse(line string) *ParsedCommand {
	trimmed := strings.TrimSpace(line)
	result := &ParsedCommand{RawText: trimmed}

	if match := p.numberPattern.FindStringSubmatch(trimmed); match != nil {
		return p.choose(result, match[1])
	}
	if match := p.choosePattern.FindStringSubmatch(strings.ToLower(trimmed)); match != nil {
		return p.choose(result, match[1])
	}

	match := p.commandPattern.FindStringSubmatch(trimmed)
	if match == nil {
		result.Type = CommandText
		return result
	}

	result.Name = strings.ToLower(match[1])
	if match[2] != "" {
		result.Args = strings.Fields(match[2])
	}
	switch result.Name {
	case "retry", "r":
		result.Type = CommandRetry
	case "audio", "play", "pause":
		result.Type = CommandAudio
	case "history":
		result.Type = CommandHistory
	case "restart":
		result.Type = CommandRestart
	case "help", "h":
		result.Type = CommandHelp
	case "quit", "q", "exit":
		result.Type = CommandQuit
	default:
		result.Type = CommandUnknown
	}
	return result
}

func (p *CommandParser) choose(result *ParsedCommand, digits string) *ParsedCommand {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		result.Type = CommandUnknown
		return result
	}
	result.Type = CommandChoose
	result.Name = "choose"
	result.Number = n
	return result
}

// IsCommand reports whether line is a slash command or a choice number.
func (p *CommandParser) IsCommand(line string) bool {
	return p.Parse(line).Type != CommandText
}
