package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Harshitjoshi133/MangoDesk/internal/adapters"
	"github.com/Harshitjoshi133/MangoDesk/internal/config"
	"github.com/Harshitjoshi133/MangoDesk/internal/engine"
	"github.com/Harshitjoshi133/MangoDesk/internal/generators"
	"github.com/Harshitjoshi133/MangoDesk/internal/input"
	"github.com/Harshitjoshi133/MangoDesk/internal/interfaces"
	"github.com/Harshitjoshi133/MangoDesk/internal/logger"
	"github.com/Harshitjoshi133/MangoDesk/internal/media"
	"github.com/Harshitjoshi133/MangoDesk/internal/models"
	"github.com/Harshitjoshi133/MangoDesk/internal/storage"
	"github.com/Harshitjoshi133/MangoDesk/internal/story"
)

const usage = `Commands:
  N or /choose N   pick the N-th choice
  /retry           repeat the step that failed
  /audio           show the narration for the current scene
  /history         list the scenes so far
  /restart         start the story over
  /quit            leave the story`

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the config file")
	file := flag.String("file", "", "text file to enhance into the story prompt")
	tone := flag.String("tone", "", "story tone, e.g. Mysterious")
	style := flag.String("style", "", "visual style, e.g. Watercolor")
	storyType := flag.String("type", "", "folk_tale, historical, mythology or cultural_tradition")
	lang := flag.String("lang", "", "language code: en, hi, es, fr or de")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// keep the terminal for the story
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cache, redisStore, err := storage.NewRefCache(cfg, log)
	if err != nil {
		log.Warn("Redis unavailable, using in-memory media cache", zap.Error(err))
	}
	if redisStore != nil {
		defer redisStore.Close()
	}

	queue := generators.NewQueue(cfg.Queue, log)
	queue.Start(ctx)
	defer queue.Stop()

	gens := generators.NewMedia(cfg, cache, log, nil, generators.WithReadyQueue(queue))
	client := engine.NewSessionClient(cfg, log,
		engine.WithAudioGenerator(gens.Audio),
		engine.WithImageGenerator(gens.Image),
	)

	p := &player{
		out:      os.Stdout,
		in:       bufio.NewScanner(os.Stdin),
		parser:   adapters.NewCommandParser(),
		sessions: client,
	}
	p.deck = media.NewDeck(media.NewAudioPlayer(nil), cfg.Media.TempDir, log)
	p.holder = story.NewHolder(client, story.Options{
		AutoNarrate:   cfg.Media.AutoNarrate,
		FallbackAudio: cfg.Media.FallbackAudio,
		Queue:         queue,
		Deck:          p.deck,
		Logger:        log,
	})
	p.panel = story.NewChoicePanel(p.holder)

	var transcriber interfaces.Transcriber
	if cfg.Input.Transcription.Enabled {
		transcriber = input.NewWhisperTranscriber(cfg.Input.Transcription, log)
	}
	p.input = input.NewCollector(cfg, client, transcriber, log)
	defer p.close()

	p.holder.Subscribe(p.onEvent)

	params := models.StoryInput{
		Tone:        *tone,
		VisualStyle: *style,
		StoryType:   models.StoryType(*storyType),
		Language:    models.Language(*lang),
	}
	if err := p.start(ctx, *file, params); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
	p.loop(ctx)
}
