package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{200, 150, 100, 255})
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imgio.Save(path, img, imgio.JPEGEncoder(100)))
	return path
}

// verifyInterlaced checks that even rows kept their colour and odd rows are black.
func verifyInterlaced(t *testing.T, path string, width, height int) {
	t.Helper()

	img, err := imgio.Open(path)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, width, height), img.Bounds())

	for y := 0; y < height; y++ {
		r, g, b, _ := img.At(width/2, y).RGBA()
		if y%2 == 0 {
			assert.InDelta(t, 200, r>>8, 6, "row %d red", y)
			assert.InDelta(t, 150, g>>8, 6, "row %d green", y)
			assert.InDelta(t, 100, b>>8, 6, "row %d blue", y)
		} else {
			assert.LessOrEqual(t, r>>8, uint32(6), "row %d red", y)
			assert.LessOrEqual(t, g>>8, uint32(6), "row %d green", y)
			assert.LessOrEqual(t, b>>8, uint32(6), "row %d blue", y)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		in, suffix, want string
	}{
		{"photo.jpg", "-interlaced", "photo-interlaced.jpg"},
		{"dir/photo.JPEG", "-interlaced", "dir/photo-interlaced.JPEG"},
		{"archive.tar.jpg", "_tv", "archive.tar_tv.jpg"},
		{"noext", "-interlaced", "noext-interlaced"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputPath(tt.in, tt.suffix), tt.in)
	}
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in := writeTestImage(t, dir, "in.jpg", 16, 9)
	out := filepath.Join(dir, "out.jpg")

	require.NoError(t, ProcessFile(in, out))
	verifyInterlaced(t, out, 16, 9)
}

func TestProcessFileLoadError(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")

	err := ProcessFile(filepath.Join(dir, "missing.jpg"), out)
	require.Error(t, err)
	assert.True(t, isLoadError(err))

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunMixedBatch(t *testing.T) {
	dir := t.TempDir()
	good := writeTestImage(t, dir, "good.jpg", 8, 6)

	garbage := filepath.Join(dir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("nope"), 0644))

	subdir := filepath.Join(dir, "subdir.jpg")
	require.NoError(t, os.Mkdir(subdir, 0755))

	// a directory squatting on the output name makes the save fail
	blocked := writeTestImage(t, dir, "blocked.jpg", 4, 4)
	require.NoError(t, os.Mkdir(OutputPath(blocked, "-interlaced"), 0755))

	missing := filepath.Join(dir, "missing.jpg")

	var logs bytes.Buffer
	results := Run(context.Background(), []string{good, garbage, subdir, blocked, missing}, Options{
		Suffix: "-interlaced",
		Jobs:   2,
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.Len(t, results, 5)

	want := []Status{StatusSaved, StatusSkipped, StatusSkipped, StatusFailed, StatusSkipped}
	for i, r := range results {
		assert.Equal(t, want[i], r.Status, "%s: %v", filepath.Base(r.Input), r.Err)
		assert.Equal(t, r.Status == StatusSaved, r.Err == nil, filepath.Base(r.Input))
	}
	assert.Equal(t, filepath.Join(dir, "good-interlaced.jpg"), results[0].Output)
	verifyInterlaced(t, results[0].Output, 8, 6)

	_, err := os.Stat(filepath.Join(dir, "garbage-interlaced.jpg"))
	assert.True(t, os.IsNotExist(err), "invalid input must not produce output")

	saved, skipped, failed := Summarize(results)
	assert.Equal(t, 1, saved)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, 1, failed)

	assert.Contains(t, logs.String(), "saved")
	assert.Contains(t, logs.String(), "failed to save")
}

func TestRunParallelKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 12; i++ {
		paths = append(paths, writeTestImage(t, dir, fmt.Sprintf("img%02d.jpg", i), 10+i, 3+i))
	}

	results := Run(context.Background(), paths, Options{Suffix: "_tv", Jobs: 4})
	require.Len(t, results, len(paths))
	for i, r := range results {
		require.Equal(t, StatusSaved, r.Status, "%s: %v", r.Input, r.Err)
		assert.Equal(t, paths[i], r.Input)
		verifyInterlaced(t, r.Output, 10+i, 3+i)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeTestImage(t, dir, "img.jpg", 4, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := Run(ctx, []string{path, path}, Options{Suffix: "-interlaced"})
	for _, r := range results {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}

	_, err := os.Stat(OutputPath(path, "-interlaced"))
	assert.True(t, os.IsNotExist(err))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "saved", StatusSaved.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
