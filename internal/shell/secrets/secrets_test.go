package secrets

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStubSOPS writes an executable stand-in for the sops binary.
func writeStubSOPS(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub sops script requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "sops")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// =============================================================================
// Detect Tests
// =============================================================================

func TestDetect_NoEnvFiles(t *testing.T) {
	p := NewProvisioner(t.TempDir(), nil)

	envFile, err := p.Detect()
	require.NoError(t, err)
	assert.False(t, envFile.Exists())
	assert.False(t, envFile.Transient)
}

func TestDetect_PlaintextEnv(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(plain, []byte("KEY=value\n"), 0o600))

	p := NewProvisioner(dir, nil)
	envFile, err := p.Detect()
	require.NoError(t, err)

	assert.True(t, envFile.Exists())
	assert.False(t, envFile.Transient)
	assert.Equal(t, plain, envFile.Path)
}

func TestDetect_EncryptedTakesPriority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KEY=plain\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.sops"), []byte("KEY=ENC[...]\n"), 0o600))

	p := NewProvisioner(dir, nil)
	p.SOPSBinary = writeStubSOPS(t, `echo "KEY=decrypted"`)

	envFile, err := p.Detect()
	require.NoError(t, err)
	defer envFile.Cleanup()

	assert.True(t, envFile.Transient)

	content, err := os.ReadFile(envFile.Path)
	require.NoError(t, err)
	assert.Equal(t, "KEY=decrypted\n", string(content))
}

func TestDetect_DecryptedFileIsRestricted(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.sops"), []byte("KEY=ENC[...]\n"), 0o600))

	p := NewProvisioner(dir, nil)
	p.SOPSBinary = writeStubSOPS(t, `echo "KEY=decrypted"`)

	envFile, err := p.Detect()
	require.NoError(t, err)
	defer envFile.Cleanup()

	info, err := os.Stat(envFile.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDetect_SOPSNotInstalled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.sops"), []byte("KEY=ENC[...]\n"), 0o600))

	p := NewProvisioner(dir, nil)
	p.SOPSBinary = "definitely-not-a-real-sops-binary"

	_, err := p.Detect()
	assert.ErrorIs(t, err, ErrSOPSNotInstalled)
}

func TestDetect_DecryptFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.sops"), []byte("KEY=ENC[...]\n"), 0o600))

	p := NewProvisioner(dir, nil)
	p.SOPSBinary = writeStubSOPS(t, `echo "no key found" >&2; exit 1`)

	_, err := p.Detect()
	assert.ErrorIs(t, err, ErrDecryptFailed)

	var decErr *DecryptionError
	require.ErrorAs(t, err, &decErr)
	assert.Contains(t, decErr.Output, "no key found")
}

func TestDetect_FailedDecryptLeavesNoTempFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("TMPDIR redirection requires a POSIX platform")
	}
	t.Setenv("TMPDIR", t.TempDir())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.sops"), []byte("KEY=ENC[...]\n"), 0o600))

	p := NewProvisioner(dir, nil)
	p.SOPSBinary = writeStubSOPS(t, `echo "partial output"; exit 1`)

	_, err := p.Detect()
	require.Error(t, err)

	matches, globErr := filepath.Glob(filepath.Join(os.TempDir(), "deploykit-*.env"))
	require.NoError(t, globErr)
	assert.Empty(t, matches)
}

// =============================================================================
// Cleanup Tests
// =============================================================================

func TestCleanup_RemovesTransientFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decrypted.env")
	require.NoError(t, os.WriteFile(path, []byte("KEY=value\n"), 0o600))

	envFile := &EnvFile{Path: path, Transient: true}
	require.NoError(t, envFile.Cleanup())
	assert.NoFileExists(t, path)
}

func TestCleanup_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decrypted.env")
	require.NoError(t, os.WriteFile(path, []byte("KEY=value\n"), 0o600))

	envFile := &EnvFile{Path: path, Transient: true}
	require.NoError(t, envFile.Cleanup())
	require.NoError(t, envFile.Cleanup())
}

func TestCleanup_LeavesPersistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEY=value\n"), 0o600))

	envFile := &EnvFile{Path: path, Transient: false}
	require.NoError(t, envFile.Cleanup())
	assert.FileExists(t, path)
}

func TestCleanup_NothingProvisioned(t *testing.T) {
	assert.NoError(t, (&EnvFile{}).Cleanup())

	var nilFile *EnvFile
	assert.NoError(t, nilFile.Cleanup())
}
