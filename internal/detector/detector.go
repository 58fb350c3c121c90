package detector

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrNotInitialized is returned when a detector is used before Init succeeded.
var ErrNotInitialized = errors.New("landmark source not initialized")

// ErrTimestampOrder is returned when Detect is called with a timestamp that
// does not strictly increase.
var ErrTimestampOrder = errors.New("detection timestamps must strictly increase")

// Detector defines the interface for face landmark sources.
type Detector interface {
	// Init performs the one-time model setup and reports the landmark topology.
	Init(ctx context.Context) (Topology, error)

	// Detect analyzes a video frame and returns the detected faces.
	// timestampMs must strictly increase across calls.
	// Returns an empty result if no faces are detected.
	Detect(frame *gocv.Mat, timestampMs int64) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// MaxFaces is the maximum number of faces to detect (default: 2).
	MaxFaces int `yaml:"max_faces"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// ScriptPath overrides the location of face_landmarker_service.py.
	ScriptPath string `yaml:"script_path"`

	// ModelPath is passed through to the service (face_landmarker.task).
	ModelPath string `yaml:"model_path"`

	// IdleTimeout shuts the subprocess down after this long without a frame.
	// Zero keeps it running.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxFaces:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
	}
}
