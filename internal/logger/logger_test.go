package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, DefaultLevel, cfg.Level)
	assert.Equal(t, DefaultFormat, cfg.Format)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
}

func TestNew_WritesToOutputPath(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "log.txt")
			l, err := New(Config{Level: "warn", Format: format, OutputPaths: []string{out}})
			require.NoError(t, err)

			l.Info("hidden")
			l.With(String("record", "fire/charmander")).Error("fetch failed", Int("status", 404))
			require.NoError(t, l.Sync())

			data, err := os.ReadFile(out)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "hidden")
			assert.Contains(t, string(data), "fetch failed")
			assert.Contains(t, string(data), "fire/charmander")
		})
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestWrap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.Debug("d")
	l.Warn("w", Err(assert.AnError))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "w", logs.All()[1].Message)
	assert.Equal(t, assert.AnError.Error(), logs.All()[1].ContextMap()["error"])
}
