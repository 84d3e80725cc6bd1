// Package secrets detects the project's environment file and, when it is
// SOPS-encrypted, decrypts it into a transient plaintext file. The transient
// file is a scoped resource: the caller that triggered the decryption owns its
// cleanup and must run it on every exit path of the deployment attempt.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Files probed in the project directory, in priority order.
const (
	encryptedEnvFile = ".env.sops"
	plaintextEnvFile = ".env"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrSOPSNotInstalled is returned when the sops binary is not on PATH.
	ErrSOPSNotInstalled = errors.New("sops not found, install it with your package manager (e.g. brew install sops)")

	// ErrDecryptFailed is returned when sops exits non-zero. Check that your
	// age or PGP keys are configured for the file.
	ErrDecryptFailed = errors.New("sops decryption failed")
)

// DecryptionError wraps a SOPS failure with the encrypted file it concerned.
type DecryptionError struct {
	File   string
	Output string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("decrypt %s: %v: %s", e.File, e.Err, strings.TrimSpace(e.Output))
	}
	return fmt.Sprintf("decrypt %s: %v", e.File, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EnvFile Resource
// =============================================================================

// EnvFile references the plaintext environment file for one deployment. When
// Transient is true the file was produced by decryption and must be removed by
// Cleanup; otherwise it belongs to the project checkout and is left alone.
// The zero value means "no environment file", which is a valid state.
type EnvFile struct {
	Path      string
	Transient bool
}

// Exists reports whether an environment file was found at all.
func (f *EnvFile) Exists() bool {
	return f != nil && f.Path != ""
}

// Cleanup removes the transient plaintext file. It is idempotent and safe to
// call when nothing was provisioned.
func (f *EnvFile) Cleanup() error {
	if f == nil || !f.Transient || f.Path == "" {
		return nil
	}

	err := os.Remove(f.Path)
	f.Path = ""
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// =============================================================================
// Provisioner
// =============================================================================

// Provisioner locates and prepares the environment file for a deployment.
type Provisioner struct {
	// Dir is the project directory. Empty means the current working directory.
	Dir string

	// SOPSBinary overrides the decrypt tool, used by tests. Default "sops".
	SOPSBinary string

	logger *slog.Logger
}

// NewProvisioner creates a Provisioner for the given project directory.
func NewProvisioner(dir string, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{Dir: dir, logger: logger}
}

// Detect finds the environment file for the project. An encrypted .env.sops
// takes priority over a plaintext .env; when neither exists the returned
// EnvFile is empty, not an error.
func (p *Provisioner) Detect() (*EnvFile, error) {
	dir := p.Dir
	if dir == "" {
		dir = "."
	}

	encrypted := filepath.Join(dir, encryptedEnvFile)
	if _, err := os.Stat(encrypted); err == nil {
		p.logger.Info("detected encrypted env file, decrypting", "file", encryptedEnvFile)
		path, err := p.decryptToTemp(encrypted)
		if err != nil {
			return nil, err
		}
		return &EnvFile{Path: path, Transient: true}, nil
	}

	plain := filepath.Join(dir, plaintextEnvFile)
	if _, err := os.Stat(plain); err == nil {
		p.logger.Info("using plaintext env file", "file", plaintextEnvFile)
		return &EnvFile{Path: plain, Transient: false}, nil
	}

	p.logger.Warn("no .env or .env.sops found, deploying without environment variables")
	return &EnvFile{}, nil
}

// decryptToTemp runs sops with the dotenv envelope on both sides, writing the
// plaintext to a fresh 0600 temp file. The temp file is removed again on any
// decryption failure so a half-written plaintext never lingers.
func (p *Provisioner) decryptToTemp(encrypted string) (string, error) {
	binary := p.SOPSBinary
	if binary == "" {
		binary = "sops"
	}

	tmp, err := os.CreateTemp("", "deploykit-*.env")
	if err != nil {
		return "", fmt.Errorf("create temp env file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("restrict temp env file: %w", err)
	}

	cmd := exec.Command(binary,
		"--input-type", "dotenv",
		"--output-type", "dotenv",
		"-d", encrypted,
	)
	cmd.Stdout = tmp
	var stderr strings.Builder
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	closeErr := tmp.Close()

	if runErr != nil {
		os.Remove(tmp.Name())
		if errors.Is(runErr, exec.ErrNotFound) {
			return "", &DecryptionError{File: encrypted, Err: ErrSOPSNotInstalled}
		}
		return "", &DecryptionError{File: encrypted, Output: stderr.String(), Err: ErrDecryptFailed}
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp env file: %w", closeErr)
	}

	p.logger.Info("decrypted env file", "file", encryptedEnvFile)
	return tmp.Name(), nil
}
