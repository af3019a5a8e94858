package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRunMinimalSnapshotExitsZero exercises spec.md §8 scenario 1: a
// snapshot with an empty object graph and zero roots runs to exit
// code 0 through the bootstrap interpreter stand-in.
func TestRunMinimalSnapshotExitsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00}, 0o600)) // root count = 0

	codeCh := make(chan int, 1)
	go func() { codeCh <- run([]string{path}) }()

	select {
	case code := <-codeCh:
		require.Equal(t, 0, code)
	case <-time.After(2 * time.Second):
		t.Fatal("run never returned")
	}
}

func TestRunMissingArgsIsUsageError(t *testing.T) {
	require.Equal(t, -1, run(nil))
}

func TestRunMissingFileIsUsageError(t *testing.T) {
	require.Equal(t, -1, run([]string{filepath.Join(t.TempDir(), "does-not-exist.bin")}))
}
