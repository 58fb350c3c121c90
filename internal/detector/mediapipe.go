package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const serviceScript = "face_landmarker_service.py"

// MediaPipeDetector implements Detector using a Python MediaPipe FaceLandmarker subprocess.
//
// Wire format, per frame: 8-byte big-endian timestamp, 4-byte big-endian
// length, JPEG bytes. The service answers with one JSON line. On start it
// writes one handshake line carrying the landmark topology.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	logger     *zap.SugaredLogger

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	ready     bool
	topology  Topology
	lastTS    int64
	idleTimer *time.Timer
}

// NewMediaPipeDetector creates a new MediaPipe detector.
// The Python process is started by Init.
func NewMediaPipeDetector(config Config, logger *zap.SugaredLogger) (*MediaPipeDetector, error) {
	scriptPath := config.ScriptPath
	if scriptPath == "" {
		scriptPath = findServiceScript()
	}
	if scriptPath == "" {
		return nil, errors.Errorf("%s not found", serviceScript)
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		logger:     logger,
		lastTS:     -1,
	}, nil
}

// Init starts the service and reads the topology handshake.
func (d *MediaPipeDetector) Init(ctx context.Context) (Topology, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(ctx); err != nil {
		return Topology{}, err
	}
	d.ready = true
	return d.topology, nil
}

// Detect analyzes a frame and returns the detected faces.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat, timestampMs int64) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return Result{}, ErrNotInitialized
	}
	if timestampMs <= d.lastTS {
		return Result{}, errors.Wrapf(ErrTimestampOrder, "got %d after %d", timestampMs, d.lastTS)
	}

	if err := d.ensureStarted(context.Background()); err != nil {
		return Result{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return Result{}, errors.Wrap(err, "encode frame")
	}
	defer buf.Close()

	data := buf.GetBytes()

	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[:8], uint64(timestampMs))
	binary.BigEndian.PutUint32(header[8:], uint32(len(data)))

	if _, err := d.stdin.Write(header); err != nil {
		return Result{}, errors.Wrap(err, "write header")
	}
	if _, err := d.stdin.Write(data); err != nil {
		return Result{}, errors.Wrap(err, "write data")
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return Result{}, errors.Wrap(err, "read response")
	}

	var response struct {
		Faces []jsonFace `json:"faces"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return Result{}, errors.Wrap(err, "parse response")
	}
	if response.Error != "" {
		return Result{}, errors.Errorf("face landmarker: %s", response.Error)
	}

	result := Result{
		Faces:       make([]Face, 0, len(response.Faces)),
		TimestampMs: timestampMs,
	}
	for _, f := range response.Faces {
		face, ok := f.toFace(d.topology.NumLandmarks)
		if !ok {
			d.logger.Debugw("dropping face with short landmark list", "points", len(f.Points))
			continue
		}
		result.Faces = append(result.Faces, face)
	}

	d.lastTS = timestampMs
	d.resetIdleTimer()

	return result, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = false
	return d.shutdown()
}

func (d *MediaPipeDetector) ensureStarted(ctx context.Context) error {
	if d.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	args := []string{
		d.scriptPath,
		"--max-faces", strconv.Itoa(d.config.MaxFaces),
		"--min-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', -1, 64),
	}
	if d.config.ModelPath != "" {
		args = append(args, "--model", d.config.ModelPath)
	}
	d.cmd = exec.Command(pythonPath, args...)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "create stdin pipe")
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "create stdout pipe")
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return errors.Wrap(err, "start face landmarker service")
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	topology, err := d.readHandshake(ctx)
	if err != nil {
		d.shutdown()
		return err
	}
	d.topology = topology
	d.lastTS = -1
	d.logger.Infow("face landmarker service started",
		"landmarks", topology.NumLandmarks,
		"edges", len(topology.Tessellation),
	)

	return nil
}

func (d *MediaPipeDetector) readHandshake(ctx context.Context) (Topology, error) {
	type handshake struct {
		line string
		err  error
	}
	ch := make(chan handshake, 1)
	reader := d.stdout
	go func() {
		line, err := reader.ReadString('\n')
		ch <- handshake{line, err}
	}()

	var hs handshake
	select {
	case <-ctx.Done():
		return Topology{}, errors.Wrap(ctx.Err(), "wait for handshake")
	case hs = <-ch:
	}
	if hs.err != nil {
		return Topology{}, errors.Wrap(hs.err, "read handshake")
	}

	var msg struct {
		Topology Topology `json:"topology"`
	}
	if err := json.Unmarshal([]byte(hs.line), &msg); err != nil {
		return Topology{}, errors.Wrap(err, "parse handshake")
	}
	if err := msg.Topology.Validate(); err != nil {
		return Topology{}, errors.Wrap(err, "invalid topology")
	}
	return msg.Topology, nil
}

func (d *MediaPipeDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.logger.Debugw("idle shutdown", "error", err)
		}
	})
}

func findServiceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".abhinaya", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".abhinaya/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonFace is one face as written by the Python service.
type jsonFace struct {
	Points []Point3D `json:"points"`
	Matrix []float64 `json:"matrix"`
}

// toFace converts the wire form. Faces with fewer points than the topology
// are rejected so that downstream indexing never goes out of range.
func (f jsonFace) toFace(numLandmarks int) (Face, bool) {
	if len(f.Points) < numLandmarks || len(f.Points) == 0 {
		return Face{}, false
	}
	face := Face{Points: f.Points[:numLandmarks]}
	if len(f.Matrix) == 16 {
		var m mgl64.Mat4
		copy(m[:], f.Matrix)
		face.Matrix = &m
	}
	return face, true
}
