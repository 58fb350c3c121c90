// Package app runs the frame loop that turns camera frames into placed
// accessories and face occluders, and serializes outside commands onto it.
package app

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/asset"
	"github.com/ayusman/abhinaya/internal/capture"
	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/logging"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/pose"
	"github.com/ayusman/abhinaya/internal/render"
	"github.com/ayusman/abhinaya/internal/store"
)

// Canvas defaults, used when Config leaves them unset.
const (
	DefaultCanvasWidth  = 1280
	DefaultCanvasHeight = 720
)

// Config holds the collaborators and settings of an App. Only Camera is
// required; everything else has a default.
type Config struct {
	Store    *store.Store
	Camera   capture.Camera
	Detector detector.Detector
	Renderer render.Renderer
	Loader   asset.Loader
	Clock    clock.Clock
	Logger   *zap.SugaredLogger

	// AssetDir resolves relative model paths.
	AssetDir string
	MaxFaces int
	CanvasW  int
	CanvasH  int
	FPS      int
	Params   overlay.Params
}

type command struct {
	fn    func() error
	reply chan error
}

// App owns the frame loop. Placer and occluder state are only touched while
// holding state, which the loop holds for a whole frame.
type App struct {
	cfg      Config
	logger   *zap.SugaredLogger
	clock    clock.Clock
	camera   capture.Camera
	detector detector.Detector
	renderer render.Renderer
	loader   asset.Loader
	commands chan command

	state        sync.Mutex
	topology     detector.Topology
	estimator    *pose.Estimator
	placer       *overlay.Placer
	synth        *occluder.Synthesizer
	rect         pose.DrawRect
	lastTs       int64
	seq          uint64
	assetsLoaded bool

	mu        sync.RWMutex
	enabled   bool
	cancel    context.CancelFunc
	done      chan struct{}
	snapshot  overlay.Snapshot
	listeners map[int]chan Update
	nextID    int
}

// New creates an App. When no detector is configured it tries the MediaPipe
// service and falls back to the mock detector.
func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Camera == nil {
		cfg.Camera = capture.NewCamera(capture.Options{})
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.Discard{}
	}
	if cfg.Loader == nil {
		cfg.Loader = asset.OBJLoader{}
	}
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = overlay.DefaultMaxFaces
	}
	if cfg.FPS <= 0 {
		cfg.FPS = capture.DefaultFPS
	}
	if cfg.CanvasW <= 0 || cfg.CanvasH <= 0 {
		cfg.CanvasW, cfg.CanvasH = DefaultCanvasWidth, DefaultCanvasHeight
	}
	if cfg.Params == (overlay.Params{}) {
		cfg.Params = overlay.DefaultParams()
	}
	if cfg.Detector == nil {
		dcfg := detector.DefaultConfig()
		dcfg.MaxFaces = cfg.MaxFaces
		if mp, err := detector.NewMediaPipeDetector(dcfg, cfg.Logger.Named("detector")); err == nil {
			cfg.Detector = mp
			cfg.Logger.Info("using MediaPipe face landmarker")
		} else {
			cfg.Logger.Warnw("MediaPipe not available, using mock detector", "error", err)
			cfg.Detector = detector.NewMockDetector()
		}
	}

	w, h := float64(cfg.CanvasW), float64(cfg.CanvasH)
	a := &App{
		cfg:       cfg,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		camera:    cfg.Camera,
		detector:  cfg.Detector,
		renderer:  cfg.Renderer,
		loader:    cfg.Loader,
		commands:  make(chan command),
		placer:    overlay.NewPlacer(overlay.Config{MaxFaces: cfg.MaxFaces, Params: cfg.Params}, cfg.Clock, cfg.Logger.Named("overlay")),
		rect:      pose.Cover(w, h, w, h),
		enabled:   true,
		listeners: make(map[int]chan Update),
	}
	a.refreshSnapshot()
	return a
}

// Init initializes the landmark source and builds the pose and occluder
// stages for its topology. The first successful Init also loads the asset
// catalog and restores persisted settings.
func (a *App) Init(ctx context.Context) error {
	topo, err := a.detector.Init(ctx)
	if err != nil {
		return errors.Wrap(err, "init landmark source")
	}
	if err := topo.Validate(); err != nil {
		return errors.Wrap(err, "landmark topology")
	}

	a.state.Lock()
	defer a.state.Unlock()

	if a.synth == nil || topo.Fingerprint() != a.topology.Fingerprint() {
		a.synth = occluder.NewSynthesizer(topo, a.cfg.MaxFaces, a.logger.Named("occluder"))
	}
	a.topology = topo
	a.estimator = pose.NewEstimator(topo.Anchors, a.cfg.MaxFaces)
	a.logger.Infow("landmark source ready",
		"landmarks", topo.NumLandmarks,
		"occluder_triangles", a.synth.Triangulation().Triangles(),
	)

	if !a.assetsLoaded {
		a.assetsLoaded = true
		if err := a.loadAssets(); err != nil {
			a.logger.Warnw("some assets failed to load", "error", err)
		}
		a.restoreSettings()
	}
	a.refreshSnapshot()
	return nil
}

func (a *App) loadAssets() error {
	if a.cfg.Store == nil {
		return nil
	}
	records, err := a.cfg.Store.Assets().List()
	if err != nil {
		return errors.Wrap(err, "list assets")
	}
	var errs error
	for _, rec := range records {
		model, err := a.loader.Load(a.resolve(rec.Path))
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "asset %q", rec.Name))
			continue
		}
		a.placer.AddAsset(rec.Name, model)
	}
	return errs
}

func (a *App) restoreSettings() {
	if a.cfg.Store == nil {
		return
	}
	settings := a.cfg.Store.Settings()

	var params overlay.Params
	switch err := settings.LoadJSON(store.KeyOverlayParams, &params); {
	case err == nil:
		if err := a.placer.UpdateParams(params.Patch()); err != nil {
			a.logger.Warnw("ignoring persisted params", "error", err)
		}
	case !errors.Is(err, store.ErrNotFound):
		a.logger.Warnw("failed to load persisted params", "error", err)
	}

	var name string
	if err := settings.LoadJSON(store.KeySelectedAsset, &name); err == nil {
		if i := a.assetIndex(name); i >= 0 {
			_ = a.placer.Jump(i)
		}
	}
}

func (a *App) assetIndex(name string) int {
	_, i, ok := lo.FindIndexOf(a.placer.Assets(), func(x *overlay.Asset) bool { return x.Name == name })
	if !ok {
		return -1
	}
	return i
}

// Start opens the camera, initializes the landmark source and starts the
// frame loop. Starting a running App does nothing. Cancelling ctx stops the
// loop but does not release the camera; call Stop for that.
func (a *App) Start(ctx context.Context) error {
	if a.running() {
		return nil
	}
	if err := a.camera.Open(); err != nil {
		return errors.Wrap(err, "open camera")
	}
	a.camera.SetFPS(a.cfg.FPS)
	if err := a.Init(ctx); err != nil {
		return multierr.Append(err, a.camera.Close())
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.mu.Lock()
	a.cancel, a.done = cancel, done
	a.mu.Unlock()

	go a.run(loopCtx, done)
	return nil
}

func (a *App) running() bool {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop ends the frame loop after the current frame and releases the camera
// and the landmark source. The App can be started again.
func (a *App) Stop() error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	err := multierr.Combine(
		errors.Wrap(a.camera.Close(), "close camera"),
		errors.Wrap(a.detector.Close(), "close landmark source"),
	)

	a.state.Lock()
	a.estimator = nil
	a.state.Unlock()

	a.logger.Info("frame loop stopped")
	return err
}

// Close stops the App and releases the renderer.
func (a *App) Close() error {
	return multierr.Append(a.Stop(), errors.Wrap(a.renderer.Close(), "close renderer"))
}

// SetEnabled turns face tracking on or off. While disabled, frames are still
// rendered but no accessories are placed.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether face tracking is on.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Topology returns the landmark topology reported by the last Init.
func (a *App) Topology() detector.Topology {
	a.state.Lock()
	defer a.state.Unlock()
	return a.topology
}

// Snapshot returns the overlay state as of the last frame or command.
func (a *App) Snapshot() overlay.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

// refreshSnapshot must be called with state held.
func (a *App) refreshSnapshot() {
	snap := a.placer.Snapshot()
	a.mu.Lock()
	a.snapshot = snap
	a.mu.Unlock()
}

// exec runs fn on the frame loop, or directly when the loop is not running.
func (a *App) exec(fn func() error) error {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()

	if done != nil {
		reply := make(chan error, 1)
		select {
		case a.commands <- command{fn: fn, reply: reply}:
			return <-reply
		case <-done:
		}
	}

	a.state.Lock()
	defer a.state.Unlock()
	return a.apply(fn)
}

func (a *App) apply(fn func() error) error {
	err := fn()
	a.refreshSnapshot()
	return err
}

// SelectAsset slides from the active accessory to the one at index.
func (a *App) SelectAsset(index int, dir overlay.Direction) error {
	return a.exec(func() error {
		if err := a.placer.SelectAsset(index, dir); err != nil {
			return err
		}
		a.persistSelection()
		return nil
	})
}

// Next slides to the next accessory, wrapping around.
func (a *App) Next() error {
	return a.exec(func() error {
		if err := a.placer.Next(); err != nil {
			return err
		}
		a.persistSelection()
		return nil
	})
}

// Previous slides to the previous accessory, wrapping around.
func (a *App) Previous() error {
	return a.exec(func() error {
		if err := a.placer.Previous(); err != nil {
			return err
		}
		a.persistSelection()
		return nil
	})
}

// UpdateParams applies a partial parameter update and returns the result.
func (a *App) UpdateParams(patch overlay.ParamsPatch) (overlay.Params, error) {
	var params overlay.Params
	err := a.exec(func() error {
		if err := a.placer.UpdateParams(patch); err != nil {
			return err
		}
		params = a.placer.Params()
		a.persist(store.KeyOverlayParams, params)
		return nil
	})
	return params, err
}

// SetClipDepth sets the clip plane distance behind the accessory.
func (a *App) SetClipDepth(depth float64) error {
	_, err := a.UpdateParams(overlay.ParamsPatch{ClipDepth: &depth})
	return err
}

// AddAsset loads the model at path and appends it to the selection order.
func (a *App) AddAsset(name, path string) error {
	model, err := a.loader.Load(a.resolve(path))
	if err != nil {
		return err
	}
	return a.exec(func() error {
		a.placer.AddAsset(name, model)
		return nil
	})
}

// RemoveAsset unloads the named accessory.
func (a *App) RemoveAsset(name string) error {
	return a.exec(func() error {
		i := a.assetIndex(name)
		if i < 0 {
			return errors.Wrapf(overlay.ErrNoSuchAsset, "%q", name)
		}
		return a.placer.RemoveAsset(i)
	})
}

func (a *App) resolve(path string) string {
	if a.cfg.AssetDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.cfg.AssetDir, path)
}

func (a *App) persistSelection() {
	snap := a.placer.Snapshot()
	if snap.Target < len(snap.Assets) {
		a.persist(store.KeySelectedAsset, snap.Assets[snap.Target])
	}
}

func (a *App) persist(key string, v any) {
	if a.cfg.Store == nil {
		return
	}
	if err := a.cfg.Store.Settings().SaveJSON(key, v); err != nil {
		a.logger.Warnw("failed to persist setting", "key", key, "error", err)
	}
}
