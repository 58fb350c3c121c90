package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.viam.com/test"
)

func TestNewConfig(t *testing.T) {
	t.Run("parses known level", func(t *testing.T) {
		cfg := NewConfig("debug")
		test.That(t, cfg.Level.Level(), test.ShouldEqual, zapcore.DebugLevel)
		test.That(t, cfg.DisableStacktrace, test.ShouldBeTrue)
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		cfg := NewConfig("loud")
		test.That(t, cfg.Level.Level(), test.ShouldEqual, zapcore.InfoLevel)
	})
}

func TestNew(t *testing.T) {
	logger, err := New("abhinaya", "warn")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, logger, test.ShouldNotBeNil)
	test.That(t, NewNop(), test.ShouldNotBeNil)
}
