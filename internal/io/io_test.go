package ioutils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bulbasaur.png")

	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("first"), nil))
	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("second"), nil))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assertOnlyFiles(t, dir, "bulbasaur.png")
}

func TestWriteFileAtomic_FailureMidStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "charmander.png")
	boom := errors.New("disk full")

	halfThenFail := func(w io.Writer, data []byte) error {
		if _, err := w.Write(data[:len(data)/2]); err != nil {
			return err
		}
		return boom
	}

	err := WriteFileAtomic(context.Background(), path, []byte("0123456789"), halfThenFail)
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "final name must not exist after a failed write")
	assertOnlyFiles(t, dir)
}

func TestWriteFileAtomic_FailureKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "squirtle.png")
	require.NoError(t, WriteFileAtomic(context.Background(), path, []byte("complete"), nil))

	err := WriteFileAtomic(context.Background(), path, []byte("partial"), func(w io.Writer, data []byte) error {
		w.Write(data[:3])
		return io.ErrShortWrite
	})
	require.Error(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(got))
}

func TestWriteFileAtomic_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "x.png")
	require.ErrorIs(t, WriteFileAtomic(ctx, path, []byte("x"), nil), context.Canceled)
}

func TestEnsureDir_Concurrent(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "grass")

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- EnsureDir(target)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, "grass", entries[0].Name())
}

func TestResetDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	require.NoError(t, EnsureDir(filepath.Join(root, "fire")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "fire", "vulpix.png"), []byte("x"), 0644))

	require.NoError(t, ResetDir(root))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCheckWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new")
	require.NoError(t, CheckWritable(dir))
	assertOnlyFiles(t, dir)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	assert.Error(t, CheckWritable(filepath.Join(file, "sub")))
}

func TestImageService_Validate(t *testing.T) {
	svc := NewImageService()

	format, err := svc.Validate(context.Background(), encodePNG(t, 4, 4))
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	_, err = svc.Validate(context.Background(), []byte("<html>not found</html>"))
	assert.ErrorIs(t, err, ErrNotImage)

	truncated := encodePNG(t, 32, 32)
	_, err = svc.Validate(context.Background(), truncated[:len(truncated)/2])
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestImageService_Fit(t *testing.T) {
	svc := NewImageService()
	ctx := context.Background()

	small := encodePNG(t, 10, 10)
	out, err := svc.Fit(ctx, small, 96)
	require.NoError(t, err)
	assert.Equal(t, small, out, "images within bounds are returned unchanged")

	out, err = svc.Fit(ctx, encodePNG(t, 200, 100), 50)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 25, cfg.Height)

	_, err = svc.Fit(ctx, []byte("nope"), 50)
	assert.ErrorIs(t, err, ErrNotImage)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func assertOnlyFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var got []string
	for _, e := range entries {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, names, got)
}
