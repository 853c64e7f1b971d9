package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Global panic recovery: log the stack before dying
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			panic(r)
		}
	}()

	installCrashHandler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		display    string
		input      string
		theme      string
		debugLogs  bool
	)

	cmd := &cobra.Command{
		Use:   APP_NAME,
		Short: "Now-playing display for Spotify and MPD",
		Long: `Shows the track playing on a Spotify account or an MPD server on a small
framebuffer panel: artist, title, device, album art, progress and a clock.
Four transport buttons and a rotary encoder control playback and volume.

Display devices:
  /dev/fbN      Linux framebuffer, RGB565
  png:<path>    write each frame to a PNG file
  none          render without presenting

Input devices:
  /dev/input/eventN   evdev keys and REL_DIAL rotary
  terminal            z/x/c/v prev/play/pause/next, +/- volume, m mute, q quit
  none                no input`,
		Version:      appVersion(),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("display") {
				cfg.Display.Device = display
			}
			if cmd.Flags().Changed("input") {
				cfg.Input.Device = input
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debugLogs
			}
			return run(cmd.Context(), cfg, theme)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config.toml")
	cmd.Flags().StringVarP(&display, "display", "d", "", "display device (overrides config)")
	cmd.Flags().StringVarP(&input, "input", "i", "", "input device (overrides config)")
	cmd.Flags().StringVarP(&theme, "theme", "t", "", "switch to a theme and remember it (Classic, Dark, Nord, Gruvbox)")
	cmd.Flags().BoolVar(&debugLogs, "debug", false, "enable DEBUG log lines")

	return cmd
}

func appVersion() string {
	bi, hasBuildInfo := debug.ReadBuildInfo()
	if !hasBuildInfo {
		return APP_VERSION
	}

	versionString := bi.Main.Version
	if versionString == "" || versionString == "(devel)" {
		versionString = APP_VERSION
	}

	return versionString
}

func run(ctx context.Context, cfg *Config, theme string) error {
	if err := initLogger(cfg.LogPath, cfg.LogToFile, cfg.Debug); err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not open log file %s: %v", cfg.LogPath, err))
	}
	defer syncLog()

	logMsg("\n\n\n-----------")
	logMsg(fmt.Sprintf("INFO: %s %s started!", APP_NAME, appVersion()))

	app, err := createApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if theme != "" {
		app.setTheme(themeByName(theme))
	}

	if app.Config.needsPairing() {
		return app.runWithPresenter(ctx, app.runPairing)
	}
	return app.Run(ctx)
}

func createApp(cfg *Config) (*SpotiDeck, error) {
	settings, err := loadSettings(cfg.SettingsPath)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not load settings: %v (using defaults)", err))
		settings = &Settings{path: cfg.SettingsPath}
	}

	app := &SpotiDeck{
		Config:      cfg,
		Settings:    settings,
		Theme:       themeByName(settings.Theme),
		Clock:       newMonoClock(),
		RefreshChan: make(chan struct{}, 1),
		StartedAt:   time.Now(),
	}
	app.Init()
	return app, nil
}

// Init builds every collaborator. Startup resource failures halt the device.
func (app *SpotiDeck) Init() {
	cfg := app.Config
	logMsg(fmt.Sprintf("INFO: Initializing %s (backend %s)...", APP_NAME, cfg.Backend))

	app.FB = newFrameBuffer(cfg.Display.Width, cfg.Display.Height)
	app.Panel = newGGPanel(cfg.Display.Width, cfg.Display.Height, app.Theme, app.FB, app.RefreshChan)

	disp, err := openDisplay(cfg.Display.Device, cfg.Display.Width, cfg.Display.Height)
	if err != nil {
		haltWithFault(app.Panel, nil, app.FB, fmt.Sprintf("display init failed: %v", err))
	}
	app.Display = disp

	app.Panel.drawSplash("Loading...")
	if err := app.FB.present(app.Display); err != nil {
		logMsg(fmt.Sprintf("WARNING: Could not show splash: %v", err))
	}

	app.Alloc = newPixelAllocator(defaultArtBudget(cfg.MaxArtBytes))
	probe, err := app.Alloc.Alloc(ART_BUF_BYTES)
	if err != nil {
		haltWithFault(app.Panel, app.Display, app.FB, fmt.Sprintf("art buffer allocation failed: %v", err))
	}
	app.Alloc.Free(probe)

	app.Channel = NewStateChannel(
		PublishPolicy(time.Duration(cfg.PublishWaitMs)*time.Millisecond),
		DrainPolicy(time.Duration(cfg.DrainWaitMs)*time.Millisecond),
	)
	app.Commands = NewCommandQueue(
		PublishPolicy(time.Duration(cfg.PublishWaitMs)*time.Millisecond),
		DrainPolicy(time.Duration(cfg.DrainWaitMs)*time.Millisecond),
	)
	app.Fetcher = newArtFetcher(cfg, app.Alloc)

	switch cfg.Backend {
	case BACKEND_MPD:
		app.Service = newMPDClient(cfg.MPD, cfg.HTTPTimeout())
		logMsg(fmt.Sprintf("INFO: [MPD] Using server at %s", cfg.MPD.Address))
	default:
		app.Service = newSpotifyClient(cfg, app.Settings.InstallationID)
		logMsg(fmt.Sprintf("INFO: [SPOTIFY] Using API at %s", cfg.Spotify.APIURL))
	}

	in, err := openInput(cfg.Input.Device)
	if err != nil {
		logMsg(fmt.Sprintf("WARNING: %v, buttons disabled", err))
		in = &nullInput{}
	}
	app.Input = in

	logMsg(fmt.Sprintf("INFO: %s init OK!", APP_NAME))
}

// Run starts the producer, the consumer, the presenter and the input reader,
// and returns when any of them fails or ctx is cancelled.
func (app *SpotiDeck) Run(ctx context.Context) error {
	poller := NewPoller(app.Config, app.Service, app.Channel, app.Commands, app.Fetcher, app.Clock)
	frontend := NewFrontend(app.Config, app.Channel, app.Commands, app.Panel, app.Input, app.Clock)

	return app.runWithPresenter(ctx, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return app.Input.Run(gctx) })
		g.Go(func() error { return poller.Run(gctx) })
		g.Go(func() error { return frontend.Run(gctx) })
		return g.Wait()
	})
}

// runWithPresenter runs fn alongside the presenter goroutine.
func (app *SpotiDeck) runWithPresenter(ctx context.Context, fn func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runPresenter(gctx, app.RefreshChan, app.FB, app.Display) })
	g.Go(func() error {
		err := fn(gctx)
		if err == nil || errors.Is(err, errQuit) {
			// Stop the presenter too
			return errQuit
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, errQuit) {
		logMsg(fmt.Sprintf("INFO: %s stopped after %v", APP_NAME, time.Since(app.StartedAt).Round(time.Second)))
		return nil
	}
	return err
}

func (app *SpotiDeck) Close() {
	if app.Input != nil {
		if err := app.Input.Close(); err != nil {
			logMsg(fmt.Sprintf("WARNING: Close input: %v", err))
		}
	}
	if app.Display != nil {
		if err := app.Display.Close(); err != nil {
			logMsg(fmt.Sprintf("WARNING: Close display: %v", err))
		}
	}
}
