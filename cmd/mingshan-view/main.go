//go:build ebiten

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/pflag"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/config"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/logging"
	"github.com/ayusman/mingshan/internal/metrics"
	"github.com/ayusman/mingshan/internal/store"
	"github.com/ayusman/mingshan/internal/viewer"
)

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, ebiten.Termination) {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "mingshan-view: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := config.Flags()
	width := flags.Int("width", 1280, "window width")
	height := flags.Int("height", 800, "window height")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	mt, err := metrics.New()
	if err != nil {
		log.Warn().Err(err).Msg("metrics disabled")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	field, err := app.LoadField(cfg.Terrain, st.Settings())
	if err != nil {
		return fmt.Errorf("generating terrain: %w", err)
	}

	acfg := app.Config{
		Field:      field,
		Store:      st,
		Blender:    cfg.Blender(),
		RenderFPS:  cfg.Blend.RenderFPS,
		Classifier: cfg.Classifier(),
		CaptureFPS: cfg.Capture.FPS,
		Preview:    cfg.Capture.Preview,
		Logger:     log,
		Metrics:    mt,
	}
	gestureOn := cfg.Capture.Enabled && st.Settings().GetBool(store.SettingGestureEnabled, true)
	if cfg.Capture.Enabled {
		acfg.Camera = capture.NewCamera(cfg.Camera())
		acfg.Detector = detector.NewMediaPipeDetector(cfg.Detector())
	}

	a, err := app.New(acfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if gestureOn {
		go func() {
			if err := a.SetGestureEnabled(true); err != nil {
				log.Warn().Err(err).Msg("gesture control unavailable")
			}
		}()
	}

	ebiten.SetWindowTitle("mingshan")
	ebiten.SetTPS(cfg.Blend.RenderFPS)
	ebiten.SetWindowSize(*width, *height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	return ebiten.RunGame(viewer.New(a, *width, *height, log))
}
