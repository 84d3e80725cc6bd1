// Package image builds, archives, and hashes container images. Builds go
// through the docker CLI (buildx carries the cross-platform flags), exports
// go through the Docker SDK so the archive is streamed straight into a
// gzipped file without an intermediate copy.
package image

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/docker/docker/client"

	"github.com/deploykit-dev/deploykit/internal/core/config"
)

// ArtifactDir is the retention directory for saved archives, relative to the
// project directory.
const ArtifactDir = "dist"

// Artifact is a saved, compressed image archive paired with its content hash.
type Artifact struct {
	Path string
	Hash string
}

// SidecarPath returns the path of the .sha256 sidecar next to the archive.
func (a *Artifact) SidecarPath() string {
	return a.Path + ".sha256"
}

// Provider builds an image and produces a content-addressed archive.
type Provider interface {
	// Build builds the project image for the configured platform.
	Build(ctx context.Context, cfg *config.Config) error

	// Save exports the image to a gzipped archive in the retention directory
	// and writes its hash sidecar.
	Save(ctx context.Context, cfg *config.Config) (*Artifact, error)

	// ContentHash computes the lowercase-hex SHA-256 digest of a file.
	ContentHash(path string) (string, error)
}

// =============================================================================
// Docker Provider
// =============================================================================

// DockerProvider implements Provider against the local Docker daemon.
type DockerProvider struct {
	// Dir is the project directory used as the build context. Empty means the
	// current working directory.
	Dir string

	logger *slog.Logger
}

// NewDockerProvider creates a DockerProvider rooted in dir.
func NewDockerProvider(dir string, logger *slog.Logger) *DockerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerProvider{Dir: dir, logger: logger}
}

// Build runs docker buildx against the project directory.
func (p *DockerProvider) Build(ctx context.Context, cfg *config.Config) error {
	ref := cfg.ImageRef()
	p.logger.Info("building image", "ref", ref, "platform", cfg.Architecture)

	cmd := exec.CommandContext(ctx, "docker", "buildx", "build",
		"--platform", cfg.Architecture,
		"--tag", ref,
		"--load",
		".",
	)
	cmd.Dir = p.dir()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return NewProviderError("Build", ref, err.Error(), ErrBuildFailed)
	}

	p.logger.Info("built image", "ref", ref)
	return nil
}

// Save exports the built image through the Docker SDK into
// dist/{project}-{tag}.tar.gz and writes the .sha256 sidecar.
func (p *DockerProvider) Save(ctx context.Context, cfg *config.Config) (*Artifact, error) {
	ref := cfg.ImageRef()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, NewProviderError("Save", ref, err.Error(), ErrConnectionFailed)
	}
	defer cli.Close()

	dist := filepath.Join(p.dir(), ArtifactDir)
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return nil, NewProviderError("Save", ref, err.Error(), ErrSaveFailed)
	}

	path := filepath.Join(dist, cfg.ArtifactName())
	p.logger.Info("saving image archive", "ref", ref, "path", path)

	reader, err := cli.ImageSave(ctx, []string{ref})
	if err != nil {
		return nil, NewProviderError("Save", ref, err.Error(), ErrSaveFailed)
	}
	defer reader.Close()

	if err := writeGzip(path, reader); err != nil {
		os.Remove(path)
		return nil, NewProviderError("Save", ref, err.Error(), ErrSaveFailed)
	}

	hash, err := p.ContentHash(path)
	if err != nil {
		return nil, NewProviderError("Save", ref, err.Error(), ErrSaveFailed)
	}

	artifact := &Artifact{Path: path, Hash: hash}
	if err := WriteSidecar(artifact); err != nil {
		return nil, NewProviderError("Save", ref, err.Error(), ErrSaveFailed)
	}

	p.logger.Info("saved image archive", "path", path, "sha256", hash)
	return artifact, nil
}

// ContentHash computes the SHA-256 digest of the file at path.
func (p *DockerProvider) ContentHash(path string) (string, error) {
	return FileHash(path)
}

func (p *DockerProvider) dir() string {
	if p.Dir == "" {
		return "."
	}
	return p.Dir
}

func writeGzip(path string, r io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, r); err != nil {
		gz.Close()
		out.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// =============================================================================
// Hashing and Sidecars
// =============================================================================

// FileHash computes the lowercase-hex SHA-256 digest of a file's content.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteSidecar writes the sha256sum-formatted sidecar next to the artifact.
func WriteSidecar(a *Artifact) error {
	line := fmt.Sprintf("%s  %s\n", a.Hash, filepath.Base(a.Path))
	return os.WriteFile(a.SidecarPath(), []byte(line), 0o644)
}
