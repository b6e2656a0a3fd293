package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	settings, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spritefetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strategy: async
concurrency: 4
timeout: 5s
columns:
  url: Image
log:
  level: debug
`), 0644))

	t.Setenv("SPRITEFETCH_CONCURRENCY", "16")
	t.Setenv("SPRITEFETCH_COLUMNS_NAME", "Name")

	settings, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "async", settings.Strategy)
	assert.Equal(t, 16, settings.Concurrency, "environment overrides the file")
	assert.Equal(t, 5*time.Second, settings.Timeout)
	assert.Equal(t, "Name", settings.Columns.Name)
	assert.Equal(t, "Type1", settings.Columns.Category)
	assert.Equal(t, "Image", settings.Columns.URL)
	assert.Equal(t, "debug", settings.Log.Level)
	assert.Equal(t, ".png", settings.Extension)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spritefetch.yaml")

	settings := DefaultSettings()
	settings.Strategy = "processes"
	settings.Timeout = 3 * time.Second
	settings.Verify = true
	require.NoError(t, settings.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, settings, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Settings) {}},
		{name: "unknown strategy", mutate: func(s *Settings) { s.Strategy = "fibers" }, wantErr: true},
		{name: "negative concurrency", mutate: func(s *Settings) { s.Concurrency = -1 }, wantErr: true},
		{name: "zero concurrency uses default", mutate: func(s *Settings) { s.Concurrency = 0 }},
		{name: "zero timeout", mutate: func(s *Settings) { s.Timeout = 0 }, wantErr: true},
		{name: "extension without dot", mutate: func(s *Settings) { s.Extension = "png" }, wantErr: true},
		{name: "negative image size", mutate: func(s *Settings) { s.MaxImageSize = -5 }, wantErr: true},
		{name: "missing column", mutate: func(s *Settings) { s.Columns.URL = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWorkerEnvRoundTrip(t *testing.T) {
	settings := DefaultSettings()
	settings.Output = "/tmp/out"
	settings.Timeout = 7 * time.Second

	entry, err := settings.EncodeWorkerEnv()
	require.NoError(t, err)

	t.Setenv(WorkerEnv, entry[len(WorkerEnv)+1:])
	decoded, err := DecodeWorkerEnv()
	require.NoError(t, err)
	assert.Equal(t, settings, decoded)
}

func TestDecodeWorkerEnv_Unset(t *testing.T) {
	t.Setenv(WorkerEnv, "")
	_, err := DecodeWorkerEnv()
	assert.Error(t, err)
}

func TestWorkerEnv_NeverCleans(t *testing.T) {
	settings := DefaultSettings()
	settings.Clean = true

	entry, err := settings.EncodeWorkerEnv()
	require.NoError(t, err)

	t.Setenv(WorkerEnv, entry[len(WorkerEnv)+1:])
	decoded, err := DecodeWorkerEnv()
	require.NoError(t, err)
	assert.False(t, decoded.Clean)
}

func TestLoadWithFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spritefetch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: async\nconcurrency: 4\n"), 0644))
	t.Setenv("SPRITEFETCH_TIMEOUT", "9s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("strategy", "threads", "")
	flags.Int("concurrency", 8, "")
	flags.Duration("timeout", 25*time.Second, "")
	flags.Int("max-size", 0, "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--strategy", "processes", "--max-size", "64"}))

	settings, err := LoadWithFlags(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "processes", settings.Strategy, "flag beats file")
	assert.Equal(t, 4, settings.Concurrency, "unset flag keeps file value")
	assert.Equal(t, 9*time.Second, settings.Timeout, "unset flag keeps env value")
	assert.Equal(t, 64, settings.MaxImageSize)
	assert.Equal(t, "info", settings.Log.Level)
}
