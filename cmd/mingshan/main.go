package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/ayusman/mingshan/internal/app"
	"github.com/ayusman/mingshan/internal/capture"
	"github.com/ayusman/mingshan/internal/config"
	"github.com/ayusman/mingshan/internal/detector"
	"github.com/ayusman/mingshan/internal/gesture"
	"github.com/ayusman/mingshan/internal/logging"
	"github.com/ayusman/mingshan/internal/metrics"
	"github.com/ayusman/mingshan/internal/server"
	"github.com/ayusman/mingshan/internal/session"
	"github.com/ayusman/mingshan/internal/store"
	"github.com/ayusman/mingshan/internal/tray"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "mingshan: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := config.Flags()
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info().Str("addr", cfg.Server.Addr).Str("db", cfg.Store.Path).Msg("starting mingshan")

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
	log.Info().Int("points", field.Len()).Uint64("seed", field.Seed()).Msg("terrain generated")

	gestureOn := cfg.Capture.Enabled && st.Settings().GetBool(store.SettingGestureEnabled, true)
	application, err := app.New(app.Config{
		Field:          field,
		Store:          st,
		Blender:        cfg.Blender(),
		RenderFPS:      cfg.Blend.RenderFPS,
		Camera:         capture.NewCamera(cfg.Camera()),
		Detector:       detector.NewMediaPipeDetector(cfg.Detector()),
		Classifier:     cfg.Classifier(),
		CaptureFPS:     cfg.Capture.FPS,
		Preview:        cfg.Capture.Preview,
		GestureEnabled: gestureOn,
		Logger:         log,
		Metrics:        mt,
	})
	if err != nil {
		return err
	}
	defer application.Close()

	webDir := findWebDir(cfg.Server.WebDir)
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("serving static files")
	}
	srv := server.New(server.Config{StaticDir: webDir, App: application, Logger: log})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go application.Run(ctx)

	srvErr := make(chan error, 1)
	go func() {
		err := srv.Run(ctx, cfg.Server.Addr)
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
		srvErr <- err
		stop()
	}()

	if cfg.Tray.Enabled {
		runTray(ctx, stop, application, browserURL(cfg.Server.Addr), gestureOn, log)
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("shutting down")
	application.Close()
	return <-srvErr
}

// runTray blocks on the menu bar until Quit or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, url string, enabled bool, log zerolog.Logger) {
	t := tray.New(enabled)

	a.OnStatus(func(state session.State, status string) {
		t.SetStatus(status)
		if state == session.Error {
			t.SetEnabled(false)
		}
	})
	a.OnGesture(func(kind gesture.Kind) {
		t.SetGesture(kind.Label())
	})
	t.OnToggle(func(on bool) {
		go func() {
			if err := a.SetGestureEnabled(on); err != nil {
				log.Warn().Err(err).Bool("enabled", on).Msg("gesture toggle")
			}
		}()
	})
	t.OnOpen(func() {
		if err := openBrowser(url); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("opening browser")
		}
	})
	t.OnQuit(stop)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func browserURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns configured if set, else the first of "web", "../web",
// "../../web" and ~/.mingshan/web that exists.
func findWebDir(configured string) string {
	if configured != "" {
		return configured
	}

	candidates := []string{"web", "../web", "../../web", filepath.Join(config.DataDir(), "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
