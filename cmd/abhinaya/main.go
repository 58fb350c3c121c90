// Command abhinaya places 3D accessories on faces from a webcam feed and
// serves the result over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/app"
	"github.com/ayusman/abhinaya/internal/capture"
	"github.com/ayusman/abhinaya/internal/config"
	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/logging"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/render"
	"github.com/ayusman/abhinaya/internal/server"
	"github.com/ayusman/abhinaya/internal/store"
	"github.com/ayusman/abhinaya/internal/tray"
)

const (
	flagConfig    = "config"
	flagAddr      = "addr"
	flagDataDir   = "data-dir"
	flagLogLevel  = "log-level"
	flagMock      = "mock-detector"
	flagTray      = "tray"
	flagWireframe = "wireframe"
	flagWebDir    = "web-dir"
)

func main() {
	a := &cli.App{
		Name:  "abhinaya",
		Usage: "face accessory overlay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   filepath.Join(config.DefaultDataDir(), config.Filename),
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override the configured log level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the frame loop and the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagAddr, Usage: "listen address"},
					&cli.StringFlag{Name: flagDataDir, Usage: "data directory"},
					&cli.StringFlag{Name: flagWebDir, Usage: "static web UI directory"},
					&cli.BoolFlag{Name: flagMock, Usage: "use the synthetic face instead of MediaPipe"},
					&cli.BoolFlag{Name: flagTray, Usage: "show the system tray menu"},
					&cli.BoolFlag{Name: flagWireframe, Usage: "draw the occluder mesh in the preview"},
				},
				Action: serve,
			},
			{
				Name:   "topology",
				Usage:  "print the occluder triangulation of the landmark source",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: flagMock, Usage: "use the synthetic face topology"}},
				Action: topology,
			},
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "abhinaya:", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return cfg, err
	}
	if v := c.String(flagLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := c.String(flagAddr); v != "" {
		cfg.Addr = v
	}
	if v := c.String(flagDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := c.String(flagWebDir); v != "" {
		cfg.WebDir = v
	}
	if c.Bool(flagMock) {
		cfg.MockDetector = true
	}
	if c.Bool(flagTray) {
		cfg.Tray = true
	}
	if c.Bool(flagWireframe) {
		cfg.Render.Wireframe = true
	}
	return cfg, nil
}

func newDetector(cfg config.Config, logger *zap.SugaredLogger) (detector.Detector, error) {
	if cfg.MockDetector {
		return detector.NewMockDetector(), nil
	}
	dcfg := cfg.Detector
	dcfg.MaxFaces = cfg.MaxFaces
	return detector.NewMediaPipeDetector(dcfg, logger.Named("detector"))
}

func serve(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := logging.New("abhinaya", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	for _, dir := range []string{cfg.DataDir, cfg.AssetDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}

	var (
		preview  *render.Preview
		renderer render.Renderer = render.Discard{}
	)
	if cfg.Preview {
		preview = render.NewPreview(cfg.Render, logger.Named("render"))
		renderer = preview
	}

	pipeline := app.New(app.Config{
		Store:    st,
		Camera:   capture.NewCamera(cfg.Camera),
		Detector: det,
		Renderer: renderer,
		Logger:   logger.Named("app"),
		AssetDir: cfg.AssetDir,
		MaxFaces: cfg.MaxFaces,
		CanvasW:  cfg.Canvas.Width,
		CanvasH:  cfg.Canvas.Height,
		FPS:      cfg.Camera.FPS,
		Params:   cfg.Overlay,
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pipeline.Start(ctx); err != nil {
		return multierr.Append(err, pipeline.Close())
	}
	defer func() { err = multierr.Append(err, pipeline.Close()) }()

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		logger.Infow("serving static files", "dir", webDir)
	}
	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     st,
		App:       pipeline,
		Preview:   preview,
		Logger:    logger.Named("http"),
	})

	if !cfg.Tray {
		return srv.Serve(ctx, cfg.Addr)
	}

	// The tray owns the main goroutine until it quits.
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ctx, cfg.Addr) }()
	runTray(ctx, stop, pipeline, "http://"+cfg.Addr, logger)
	stop()
	return <-serveErr
}

func runTray(ctx context.Context, quit func(), pipeline *app.App, url string, logger *zap.SugaredLogger) {
	t := tray.New()
	t.OnToggle(pipeline.SetEnabled)
	t.OnNext(func() {
		if err := pipeline.Next(); err != nil {
			logger.Debugw("next accessory", "error", err)
		}
	})
	t.OnPrevious(func() {
		if err := pipeline.Previous(); err != nil {
			logger.Debugw("previous accessory", "error", err)
		}
	})
	t.OnPreview(func() { logger.Infow("preview available", "url", url+"/api/stream") })
	t.OnQuit(quit)

	updates, unsubscribe := pipeline.Subscribe()
	go func() {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				t.Quit()
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				if s := u.State; s.Target < len(s.Assets) {
					if name := s.Assets[s.Target]; name != t.Current() {
						t.SetCurrent(name)
					}
				}
			}
		}
	}()
	t.Run()
}

func topology(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, err := logging.New("abhinaya", cfg.LogLevel)
	if err != nil {
		return err
	}
	det, err := newDetector(cfg, logger)
	if err != nil {
		return err
	}
	defer det.Close()

	topo, err := det.Init(c.Context)
	if err != nil {
		return err
	}
	if err := topo.Validate(); err != nil {
		return err
	}
	tri := occluder.Build(topo)
	fmt.Fprintf(c.App.Writer, "landmarks:        %d\n", topo.NumLandmarks)
	fmt.Fprintf(c.App.Writer, "tessellation:     %d edges\n", len(topo.Tessellation))
	fmt.Fprintf(c.App.Writer, "surface:          %d triangles\n", tri.Surface)
	fmt.Fprintf(c.App.Writer, "hole fill:        %d triangles\n", tri.Triangles()-tri.Surface)
	fmt.Fprintf(c.App.Writer, "trimmed vertices: %d\n", len(tri.Excluded))
	fmt.Fprintf(c.App.Writer, "fingerprint:      %s\n", topo.Fingerprint())
	return nil
}

// findWebDir looks for the web UI next to the working directory, then in the
// data directory.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
