package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Avataren/slidekiosk/internal/api"
	"github.com/Avataren/slidekiosk/internal/bridge"
	"github.com/Avataren/slidekiosk/internal/config"
	"github.com/Avataren/slidekiosk/internal/consumer"
	"github.com/Avataren/slidekiosk/internal/logger"
	"github.com/Avataren/slidekiosk/internal/preview"
	"github.com/Avataren/slidekiosk/internal/render"
	"github.com/Avataren/slidekiosk/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the slideshow pipeline",
	Long: `Start the capture pipeline for every configured page and expose the
control API, diagnostic event stream, and MJPEG surface previews.`,
	Example: `  # Start with the default config
  slidekiosk serve

  # Start on a custom port with debug logging
  slidekiosk serve --port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flag overrides
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	log := logger.WithComponent("serve")

	if len(cfg.Pages) == 0 {
		return fmt.Errorf("no pages configured; add one with 'slidekiosk pages add <url>'")
	}

	// Transport bridge between the capture side and the compositor side
	br := bridge.New(bridge.Capabilities{
		Shared: cfg.Transport.AllowShared,
		Copied: cfg.Transport.AllowCopied,
	}, cfg.Transport.QueueDepth)
	defer br.Close()

	// Consumer side first, so its listener is registered before the
	// first frame can possibly arrive
	cons := consumer.New(br, cfg.Consumer.MaxTextureDim, cfg.Consumer.DevicePixelRatio)

	// Producer side
	sched := scheduler.New(br, cfg.Capture.FrameRate,
		time.Duration(cfg.Capture.AckTimeoutMs)*time.Millisecond)
	defer sched.Teardown()

	indices := make([]int, 0, len(cfg.Pages))
	for i, page := range cfg.Pages {
		r := render.NewSynthetic(page.URL, cfg.Capture.Width, cfg.Capture.Height)
		index := i
		r.OnPaint(func(f scheduler.Frame) {
			sched.HandlePaint(index, f)
		})
		sched.Attach(index, r, page.URL)
		indices = append(indices, index)
		log.Info().Int("surface", index).Str("url", page.URL).Msg("Surface attached")
	}

	cons.SetReady(true)

	// Rendering tick loop: retries frames that arrived before the
	// scene was ready
	tickStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second / 60)
		defer ticker.Stop()
		for {
			select {
			case <-tickStop:
				return
			case <-ticker.C:
				cons.Tick()
			}
		}
	}()
	defer close(tickStop)

	sched.SetActivePaintingWindows(indices)

	streamer := preview.NewStreamer(cons, cfg.Capture.FrameRate, 1280)
	server := api.NewServer(sched, cons, br, streamer)

	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Fatal().Err(err).Msg("Control server failed")
		}
	}()

	log.Info().
		Int("pages", len(cfg.Pages)).
		Int("frame_rate", cfg.Capture.FrameRate).
		Int("port", cfg.ServerPort).
		Msg("slidekiosk running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	return nil
}
