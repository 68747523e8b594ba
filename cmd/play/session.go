package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Harshitjoshi133/MangoDesk/internal/adapters"
	"github.com/Harshitjoshi133/MangoDesk/internal/input"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/media"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
	"github.com/Harshitjoshi133/MangoDesk/internal/story"
)

// player drives one story page from a terminal.
type player struct {
	out    io.Writer
	in     *bufio.Scanner
	parser *adapters.CommandParser

	// sessions backs /history; without it the local progress is listed.
	sessions interfaces.SessionManager

	holder *story.Holder
	panel  *story.ChoicePanel
	input  *input.Collector
	deck   *media.Deck
}

func (p *player) onEvent(ev story.Event) {
	switch ev.Type {
	case story.EventSegment:
		if ev.Segment.AudioRef != "" {
			_ = p.deck.Acquire(ev.Segment.AudioRef)
		}
	case story.EventAudio:
		_ = p.deck.Acquire(ev.Segment.AudioRef)
		fmt.Fprintf(p.out, "\n(narration ready: %s)\n> ", ev.Segment.AudioRef)
	}
}

// start resolves the prompt from a file or from the first line typed and
// installs the first segment.
func (p *player) start(ctx context.Context, file string, params models.StoryInput) error {
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}
		err = p.input.SetFile(filepath.Base(file), f)
		f.Close()
		if err != nil {
			return err
		}
		fmt.Fprintf(p.out, "Enhancing %s...\n", filepath.Base(file))
	} else {
		fmt.Fprintln(p.out, "What story should be told? (a place, a tradition, a legend)")
		for !p.input.CanSubmit() {
			line, ok := p.readLine()
			if !ok {
				return errors.New("no prompt given")
			}
			if err := p.input.SetText(line); err != nil {
				return err
			}
		}
	}

	in, err := p.input.Build(ctx, params)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Weaving \"%s\"...\n", in.Title)
	if err := p.holder.Start(ctx, in); err != nil {
		return err
	}
	p.render()
	return nil
}

func (p *player) loop(ctx context.Context) {
	for ctx.Err() == nil {
		line, ok := p.readLine()
		if !ok {
			return
		}
		cmd := p.parser.Parse(line)

		switch cmd.Type {
		case adapters.CommandChoose:
			if err := p.panel.SelectNumber(ctx, cmd.Number); err != nil {
				fmt.Fprintln(p.out, err)
				continue
			}
			p.render()

		case adapters.CommandRetry:
			if p.holder.Snapshot().State != story.StateErrored {
				fmt.Fprintln(p.out, "Nothing to retry.")
				continue
			}
			if err := p.holder.Choose(ctx, models.RetryChoiceID); err != nil {
				fmt.Fprintln(p.out, err)
				continue
			}
			p.render()

		case adapters.CommandAudio:
			cur, ok := p.deck.Current()
			if !ok {
				fmt.Fprintln(p.out, "No narration for this scene yet.")
				continue
			}
			fmt.Fprintf(p.out, "Narration: %s\n", cur.Ref)

		case adapters.CommandHistory:
			p.history(ctx)

		case adapters.CommandRestart:
			if err := p.holder.Restart(ctx); err != nil {
				fmt.Fprintln(p.out, err)
				continue
			}
			p.render()

		case adapters.CommandHelp:
			fmt.Fprintln(p.out, usage)

		case adapters.CommandQuit:
			return

		case adapters.CommandText:
			if cmd.RawText != "" {
				fmt.Fprintln(p.out, "Pick a choice by number, or /help.")
			}

		default:
			fmt.Fprintf(p.out, "Unknown command %q, try /help.\n", cmd.RawText)
		}
	}
}

func (p *player) render() {
	snap := p.holder.Snapshot()
	view := p.panel.View()

	fmt.Fprintln(p.out, strings.Repeat("-", 60))
	if snap.Segment != nil {
		fmt.Fprintln(p.out, snap.Segment.Text)
		if snap.Segment.ImageRef != "" {
			fmt.Fprintf(p.out, "\n[illustration: %s]\n", snap.Segment.ImageRef)
		}
	}
	if snap.State == story.StateErrored {
		fmt.Fprintf(p.out, "\n(error: %s)\n", snap.Error)
	}

	fmt.Fprintln(p.out)
	if view.Empty {
		fmt.Fprintln(p.out, "The story has reached its end. /quit to leave.")
	}
	for _, item := range view.Items {
		fmt.Fprintf(p.out, "  %d. %s\n", item.Number, item.Text)
	}
	fmt.Fprint(p.out, "> ")
}

// history lists the session as the backend recorded it, falling back to
// the scenes seen on this terminal.
func (p *player) history(ctx context.Context) {
	snap := p.holder.Snapshot()
	entries := make([]string, 0, len(snap.Progress.Segments))
	for _, seg := range snap.Progress.Segments {
		entries = append(entries, seg.Text)
	}
	if p.sessions != nil && snap.SessionID != "" {
		if remote, err := p.sessions.History(ctx, snap.SessionID); err == nil {
			entries = remote
		} else {
			fmt.Fprintf(p.out, "(history unavailable: %v)\n", err)
		}
	}

	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No scenes yet.")
		return
	}
	for i, text := range entries {
		if r := []rune(text); len(r) > 70 {
			text = string(r[:70]) + "..."
		}
		fmt.Fprintf(p.out, "%2d. %s\n", i+1, text)
	}
}

func (p *player) readLine() (string, bool) {
	if !p.in.Scan() {
		return "", false
	}
	return p.in.Text(), true
}

func (p *player) close() {
	p.holder.Close()
	p.deck.Close()
	p.input.Close()
}
