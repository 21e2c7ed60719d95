package ocrlens

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"github.com/pkg/errors"
)

func fakeBinary(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	assert.True(t, os.WriteFile(path, []byte("#!/bin/sh\necho tesseract 5.3.0\n"), 0755) == nil)
	return path
}

func TestResolveTesseractPathConfigured(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script binaries")
	}
	dir := t.TempDir()
	configured := fakeBinary(t, dir, "my-tesseract")

	path, err := resolveTesseractPath(configured, nil)
	assert.True(t, err == nil)
	assert.Equals(t, path, configured)

	_, err = resolveTesseractPath(filepath.Join(dir, "missing"), nil)
	assert.True(t, errors.Is(err, ErrNoTesseract))
}

func TestResolveTesseractPathCandidates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script binaries")
	}
	dir := t.TempDir()
	notExecutable := filepath.Join(dir, "plain")
	assert.True(t, os.WriteFile(notExecutable, []byte("x"), 0644) == nil)
	second := fakeBinary(t, dir, "tesseract")

	path, err := resolveTesseractPath("", []string{filepath.Join(dir, "nope"), notExecutable, dir, second})
	assert.True(t, err == nil)
	assert.Equals(t, path, second)
}

func TestTesseractVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script binaries")
	}
	path := fakeBinary(t, t.TempDir(), "tesseract")
	version, err := TesseractVersion(path)
	assert.True(t, err == nil)
	assert.Equals(t, version, "tesseract 5.3.0")
}

func TestDefaultEngineConfig(t *testing.T) {
	engineConfig := DefaultEngineConfig()
	assert.True(t, engineConfig.PageWorkers > 0)
	assert.True(t, engineConfig.Pipeline != nil)
	assert.Equals(t, engineConfig.Pipeline.Deskewer.Estimator, SkewMinAreaRect)
}
