// ABOUTME: Entry point for the Resonate Deck audio player
// ABOUTME: Parses CLI flags, builds the playlist and runs the TUI or headless loop
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-deck/internal/config"
	"github.com/Resonate-Protocol/resonate-deck/internal/ui"
	"github.com/Resonate-Protocol/resonate-deck/internal/version"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-deck/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-deck/pkg/deck"
	"github.com/Resonate-Protocol/resonate-deck/pkg/playlist"
)

const (
	toneScheme   = "tone:"
	toneRate     = 48000
	toneDuration = 30 * time.Second
)

var (
	configPath   = flag.String("config", config.DefaultFile, "Settings file path")
	logFile      = flag.String("log-file", "resonate-deck.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	streamLogs   = flag.Bool("stream-logs", false, "Alias for -no-tui")
	outputName   = flag.String("output", "", "Output backend: oto, malgo, null or wav (default from settings)")
	wavFile      = flag.String("wav-file", output.DefaultWAVPath, "File the wav backend renders to")
	blockSize    = flag.Int("block-size", 0, "Decode block size in frames (default from settings)")
	playlistPath = flag.String("playlist", "", "Load a saved playlist")
	savePlaylist = flag.String("save-playlist", "", "Save the playlist here on exit")
	tone         = flag.Float64("tone", 0, "Queue a test tone at this frequency in Hz")
	volume       = flag.Float64("volume", -1, "Initial volume 0-1 (default from settings)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Determine if we should use TUI or streaming logs
	useTUI := !(*noTUI || *streamLogs)

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	settings, err := config.Load(*configPath)
	if err != nil {
		log.Printf("Ignoring settings: %v", err)
	}
	if *outputName != "" {
		settings.Output = *outputName
	}
	if *blockSize > 0 {
		settings.BlockSize = *blockSize
	}
	if *volume >= 0 {
		settings.Volume = min(*volume, 1)
	}

	pl, err := buildPlaylist(*playlistPath, flag.Args(), *tone)
	if err != nil {
		log.Fatalf("Failed to build playlist: %v", err)
	}
	if pl.Len() == 0 {
		fmt.Fprintln(os.Stderr, "usage: resonate-deck [flags] <file|dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	log.Printf("Playlist has %d tracks", pl.Len())

	var out output.Output
	if settings.Output == "wav" {
		out, err = output.NewWAV(*wavFile, 16)
	} else {
		out, err = output.New(settings.Output)
	}
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	engineConfig := settings.EngineConfig(out, pl)
	engineConfig.Open = openTrack
	engine, err := deck.New(engineConfig)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	// Config treats 0 as unset, so apply the stored volume explicitly
	engine.SetVolume(settings.Volume)

	go logEvents(engine)

	if err := engine.Play(); err != nil {
		log.Printf("Playback failed to start: %v", err)
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		tuiProg, err := ui.Run(engine)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			<-sigChan
			log.Printf("Shutdown signal received")
			tuiProg.Quit()
		}()
		if _, err := tuiProg.Run(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		log.Printf("Received quit signal from TUI")
	} else {
		runHeadless(engine, sigChan)
	}

	settings.Capture(engine)
	if err := settings.Save(*configPath); err != nil {
		log.Printf("Failed to save settings: %v", err)
	}
	if *savePlaylist != "" {
		if err := pl.Save(*savePlaylist); err != nil {
			log.Printf("Failed to save playlist: %v", err)
		}
	}

	// Close engine
	if err := engine.Close(); err != nil {
		log.Printf("Error closing engine: %v", err)
	}
	if w, ok := out.(*output.WAV); ok {
		if err := w.Finish(); err != nil {
			log.Printf("Failed to finish %s: %v", *wavFile, err)
		}
		log.Printf("Rendered %d frames to %s", w.Frames(), *wavFile)
	}

	log.Printf("Player stopped")
}

// buildPlaylist collects tracks from a saved playlist, files, directories
// and the optional test tone
func buildPlaylist(saved string, args []string, toneHz float64) (*playlist.Playlist, error) {
	pl := playlist.New()
	if saved != "" {
		loaded, err := playlist.Load(saved)
		if err != nil {
			return nil, err
		}
		pl = loaded
	}

	for _, arg := range args {
		paths, err := expand(arg)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			pl.Add(playlist.TrackFromPath(p))
		}
	}

	if toneHz > 0 {
		pl.Add(playlist.Track{
			Path:   toneScheme + strconv.FormatFloat(toneHz, 'f', -1, 64),
			Title:  fmt.Sprintf("Test tone %g Hz", toneHz),
			Length: toneDuration,
		})
	}
	return pl, nil
}

// expand returns arg itself for a file, or every supported file below a
// directory in name order
func expand(arg string) ([]string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{arg}, nil
	}

	var paths []string
	err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && decode.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
	}
	sort.Strings(paths)
	log.Printf("Found %d tracks in %s", len(paths), arg)
	return paths, nil
}

// openTrack opens files through the decoder and tone: paths as a
// generated sine
func openTrack(path string, blockFrames int) (decode.Stream, error) {
	if hz, ok := strings.CutPrefix(path, toneScheme); ok {
		freq, err := strconv.ParseFloat(hz, 64)
		if err != nil || freq <= 0 {
			return nil, fmt.Errorf("%w: bad tone frequency %q", decode.ErrUnsupportedFormat, hz)
		}
		frames := int64(toneDuration.Seconds() * toneRate)
		return decode.NewTone(freq, toneRate, 2, frames, decode.WithBlockFrames(blockFrames)), nil
	}
	return decode.Open(path, decode.WithBlockFrames(blockFrames))
}

// logEvents writes engine events to the log until the engine closes
func logEvents(engine *deck.Engine) {
	for ev := range engine.Events() {
		switch ev.Type {
		case deck.EventTrackLoaded:
			log.Printf("Loaded [%d] %s", ev.Index, ev.Path)
		case deck.EventTrackEnded:
			log.Printf("Track ended [%d] %s: %s after %d blocks", ev.Index, ev.Path, ev.Reason, ev.Blocks)
		case deck.EventError:
			log.Printf("Engine error: %v", ev.Err)
		case deck.EventStateChanged:
			log.Printf("State: %s", ev.State)
		}
	}
}

// runHeadless logs periodic status until a signal arrives or the
// playlist runs out
func runHeadless(engine *deck.Engine, sigChan <-chan os.Signal) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	started := false
	for {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return

		case <-statsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			sink := engine.SinkStats()
			analyzer := engine.SpectrumStats()
			log.Printf("%s", ui.StatusLine(engine))
			log.Printf("Stats: blocks=%d retries=%d spectrum=%d/%d goroutines=%d alloc=%dKB",
				sink.Blocks, sink.Retries, analyzer.Analyzed, analyzer.Offered,
				runtime.NumGoroutine(), m.Alloc/1024)

		case <-ticker.C:
			switch engine.State() {
			case deck.Playing, deck.Paused, deck.Loading:
				started = true
			case deck.Stopped, deck.Idle:
				if started {
					log.Printf("Playlist finished")
					return
				}
			}
		}
	}
}
