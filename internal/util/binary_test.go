package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode))
	require.NoError(t, os.Chmod(path, mode))
	return path
}

func TestFindBinary(t *testing.T) {
	t.Run("finds executable binary via environment variable", func(t *testing.T) {
		bin := writeExecutable(t, 0o755)
		t.Setenv("TEST_BINARY_PATH", bin)

		path, err := FindBinary("nonexistent-binary", "TEST_BINARY_PATH")
		require.NoError(t, err)
		assert.Equal(t, bin, path)
	})

	t.Run("env var takes priority over PATH", func(t *testing.T) {
		bin := writeExecutable(t, 0o755)
		t.Setenv("TEST_BINARY_PATH", bin)

		path, err := FindBinary("sh", "TEST_BINARY_PATH")
		require.NoError(t, err)
		assert.Equal(t, bin, path)
	})

	t.Run("finds binary on PATH when no env var", func(t *testing.T) {
		path, err := FindBinary("sh", "")
		require.NoError(t, err)
		assert.Contains(t, path, "sh")
	})

	t.Run("returns ErrNotFound when binary not found", func(t *testing.T) {
		path, err := FindBinary("definitely-nonexistent-binary-12345", "")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Empty(t, path)
		assert.Contains(t, err.Error(), "definitely-nonexistent-binary-12345")
	})

	t.Run("ignores env var if file does not exist", func(t *testing.T) {
		t.Setenv("TEST_BINARY_PATH", "/nonexistent/path/to/binary")

		path, err := FindBinary("sh", "TEST_BINARY_PATH")
		require.NoError(t, err)
		assert.NotEqual(t, "/nonexistent/path/to/binary", path)
	})

	t.Run("ignores env var if file is not executable", func(t *testing.T) {
		bin := writeExecutable(t, 0o644)
		t.Setenv("TEST_BINARY_PATH", bin)

		path, err := FindBinary("sh", "TEST_BINARY_PATH")
		require.NoError(t, err)
		assert.NotEqual(t, bin, path)
	})

	t.Run("ignores directory even if executable", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("TEST_BINARY_PATH", dir)

		path, err := FindBinary("sh", "TEST_BINARY_PATH")
		require.NoError(t, err)
		assert.NotEqual(t, dir, path)
	})

	t.Run("does not search the working directory", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "local-only-tool"), []byte("#!/bin/sh\n"), 0o755))
		t.Chdir(dir)

		_, err := FindBinary("local-only-tool", "")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestResolveExplicit(t *testing.T) {
	t.Run("path to executable", func(t *testing.T) {
		bin := writeExecutable(t, 0o755)
		path, err := ResolveExplicit(bin)
		require.NoError(t, err)
		assert.Equal(t, bin, path)
	})

	t.Run("path to non-executable", func(t *testing.T) {
		bin := writeExecutable(t, 0o600)
		_, err := ResolveExplicit(bin)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("bare name uses PATH", func(t *testing.T) {
		path, err := ResolveExplicit("sh")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(path))
	})

	t.Run("missing bare name", func(t *testing.T) {
		_, err := ResolveExplicit("definitely-nonexistent-binary-12345")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
