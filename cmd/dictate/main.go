// dictate is a push-to-talk dictation client: press Enter to start
// recording, press Enter again to stop and transcribe.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/voxlab/go-dictate/internal/config"
	"github.com/voxlab/go-dictate/internal/log"
	"github.com/voxlab/go-dictate/pkg/audioio"
	"github.com/voxlab/go-dictate/pkg/credentials"
	"github.com/voxlab/go-dictate/pkg/dictation"
	"github.com/voxlab/go-dictate/pkg/permissions"
	"github.com/voxlab/go-dictate/pkg/playback"
	"github.com/voxlab/go-dictate/pkg/realtime"
	"github.com/voxlab/go-dictate/pkg/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to YAML config file")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	backend := flag.String("backend", "", "Audio backend: auto, portaudio, mock")
	device := flag.String("device", "", "Capture device index")
	noPlayback := flag.Bool("no-playback", false, "Disable synthesized-audio playback")
	webAddr := flag.String("web", "", "Serve the status API on this address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *backend != "" {
		cfg.Audio.Backend = *backend
	}
	if *device != "" {
		cfg.Audio.Device = *device
	}
	if *noPlayback {
		cfg.Playback.Enabled = false
	}
	if *webAddr != "" {
		cfg.Web.Enabled = true
		cfg.Web.Addr = *webAddr
	}

	log.Init(cfg.LogLevel)
	logger := log.With("component", "main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	audioCfg := audioio.Config{
		Backend: audioio.Backend(cfg.Audio.Backend),
		Format: audioio.Format{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		},
		BufferDuration: cfg.Audio.BufferDuration,
		Device:         cfg.Audio.Device,
	}
	source, err := audioio.NewSource(audioCfg, log.With("component", "capture"))
	if err != nil {
		return fmt.Errorf("opening capture device: %w", err)
	}

	var player *playback.Player
	if cfg.Playback.Enabled {
		sinkCfg := audioio.Config{
			Backend:        audioio.Backend(cfg.Audio.Backend),
			Format:         audioio.WireFormat,
			BufferDuration: cfg.Audio.BufferDuration,
		}
		sink, err := audioio.NewSink(sinkCfg, log.With("component", "playback"))
		if err != nil {
			logger.Warn("playback unavailable, continuing without it", "error", err)
		} else {
			player = playback.NewPlayer(sink, log.With("component", "playback"))
			player.SetEnabled(true)
		}
	}

	var creds credentials.Provider = credentials.Env{}
	if cfg.Realtime.APIKey != "" {
		creds = credentials.Static(cfg.Realtime.APIKey)
	}
	session := realtime.NewClient(realtime.Config{
		Credentials:        creds,
		URL:                cfg.Realtime.URL,
		Model:              cfg.Realtime.Model,
		Voice:              cfg.Realtime.Voice,
		TranscriptionModel: cfg.Realtime.TranscriptionModel,
	})

	coord, err := dictation.New(session, source, player, permissions.Granted{}, dictation.Config{
		TranscribeTimeout: cfg.Realtime.TranscribeTimeout,
	})
	if err != nil {
		return err
	}
	defer coord.Close()

	coord.Subscribe(func(snap dictation.Snapshot) {
		if snap.Err != nil {
			fmt.Fprintf(os.Stderr, "\r[%s] %v\n", snap.Recording, snap.Err)
		}
	})

	var srv *web.Server
	if cfg.Web.Enabled {
		srv = web.NewServer(coord)
		go func() {
			if err := srv.Listen(cfg.Web.Addr); err != nil {
				logger.Error("status api stopped", "error", err)
			}
		}()
		defer srv.Shutdown()
	}

	fmt.Println("Press Enter to start/stop recording, Ctrl+C to quit.")
	go readToggles(ctx, coord)

	printer := &transcriptPrinter{out: os.Stdout}
	coord.Subscribe(printer.observe)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// transcriptPrinter prints each newly finalized transcript exactly
// once. Snapshots arrive on whichever goroutine published them, so the
// version cursor is guarded.
type transcriptPrinter struct {
	mu          sync.Mutex
	lastVersion uint64
	out         io.Writer
}

func (p *transcriptPrinter) observe(snap dictation.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap.TranscriptVersion <= p.lastVersion {
		return
	}
	p.lastVersion = snap.TranscriptVersion
	fmt.Fprintf(p.out, "\n> %s\n", snap.Transcript)
}

// readToggles turns each Enter keypress into a toggle.
func readToggles(ctx context.Context, coord *dictation.Coordinator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		coord.Toggle(ctx)
		switch coord.State() {
		case dictation.Recording:
			fmt.Println("recording... press Enter to stop")
		case dictation.AwaitingTranscription:
			fmt.Println("transcribing...")
		}
	}
}
