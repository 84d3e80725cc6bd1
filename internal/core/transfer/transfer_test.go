package transfer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validHash = "d1b2a59f7e1c4c0b9e8d3f6a5b4c3d2e1f0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c"

// =============================================================================
// ShouldSkip Tests
// =============================================================================

func TestShouldSkip_ExactMatch(t *testing.T) {
	got := ShouldSkip(validHash, func() (string, error) {
		return validHash, nil
	})
	assert.True(t, got)
}

func TestShouldSkip_Mismatch(t *testing.T) {
	other := strings.Repeat("a", 64)
	got := ShouldSkip(validHash, func() (string, error) {
		return other, nil
	})
	assert.False(t, got)
}

func TestShouldSkip_ProbeError(t *testing.T) {
	got := ShouldSkip(validHash, func() (string, error) {
		return "", errors.New("connection refused")
	})
	assert.False(t, got)
}

func TestShouldSkip_ProbeErrorWithMatchingOutput(t *testing.T) {
	// A probe that errors forces a transfer even if it also printed the hash.
	got := ShouldSkip(validHash, func() (string, error) {
		return validHash, errors.New("exit status 1")
	})
	assert.False(t, got)
}

func TestShouldSkip_EmptyProbeResult(t *testing.T) {
	got := ShouldSkip(validHash, func() (string, error) {
		return "", nil
	})
	assert.False(t, got)
}

func TestShouldSkip_MalformedProbeResults(t *testing.T) {
	tests := []struct {
		name   string
		remote string
	}{
		{"63 hex chars", validHash[:63]},
		{"65 hex chars", validHash + "a"},
		{"uppercase hex", strings.ToUpper(validHash)},
		{"non-hex chars", strings.Repeat("g", 64)},
		{"garbage", "No such file or directory"},
		{"hash with trailing newline", validHash + "\n"},
		{"hash with filename suffix", validHash + "  app.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldSkip(validHash, func() (string, error) {
				return tt.remote, nil
			})
			assert.False(t, got)
		})
	}
}

func TestShouldSkip_InvalidLocalHash(t *testing.T) {
	probeCalled := false
	got := ShouldSkip("not-a-digest", func() (string, error) {
		probeCalled = true
		return "not-a-digest", nil
	})
	assert.False(t, got)
	assert.False(t, probeCalled)
}

// =============================================================================
// ValidDigest Tests
// =============================================================================

func TestValidDigest(t *testing.T) {
	assert.True(t, ValidDigest(validHash))
	assert.True(t, ValidDigest(strings.Repeat("0", 64)))

	assert.False(t, ValidDigest(""))
	assert.False(t, ValidDigest(validHash[:63]))
	assert.False(t, ValidDigest(strings.ToUpper(validHash)))
	assert.False(t, ValidDigest(strings.Repeat("z", 64)))
}
