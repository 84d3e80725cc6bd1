// Package compose deploys over SSH to a host running docker compose. The
// deploy pipeline is linear: save the artifact, locate the template, decide
// whether the archive transfer can be skipped, ship files, apply remotely,
// and prune old local artifacts. Any remote non-zero exit aborts the
// remaining steps; partial transfers are not rolled back, the next run's hash
// probe re-evaluates them.
package compose

import (
	"context"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/deploykit-dev/deploykit/internal/core/config"
	"github.com/deploykit-dev/deploykit/internal/core/template"
	"github.com/deploykit-dev/deploykit/internal/core/transfer"
	"github.com/deploykit-dev/deploykit/internal/shell/image"
	"github.com/deploykit-dev/deploykit/internal/shell/secrets"
	"github.com/deploykit-dev/deploykit/internal/shell/sshexec"
)

// Backend is the SSH/compose deployment backend.
type Backend struct {
	dir      string
	executor sshexec.Executor
	provider image.Provider
	logger   *slog.Logger
}

// New creates a compose backend rooted in the project directory.
func New(dir string, executor sshexec.Executor, provider image.Provider, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		dir:      dir,
		executor: executor,
		provider: provider,
		logger:   logger,
	}
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy ships the project to target and brings the stack up.
func (b *Backend) Deploy(ctx context.Context, target string, cfg *config.Config, envFile *secrets.EnvFile) error {
	artifact, err := b.provider.Save(ctx, cfg)
	if err != nil {
		return err
	}

	tmpl, err := template.Load(b.dir)
	if err != nil {
		return err
	}
	// Pre-flight: catch template-authoring mistakes before any transfer.
	if err := template.Validate(template.Render(tmpl, cfg)); err != nil {
		return err
	}

	skip := transfer.ShouldSkip(artifact.Hash, func() (string, error) {
		return b.probeRemoteHash(ctx, target, cfg)
	})
	if skip {
		b.logger.Info("artifact already on target with matching hash, skipping archive transfer",
			"target", target, "sha256", artifact.Hash)
	}

	if err := b.transferFiles(ctx, target, cfg, tmpl, envFile, artifact, skip); err != nil {
		return err
	}

	b.logger.Info("applying stack on target", "target", target, "project", cfg.ProjectName)
	if _, err := b.executor.Run(ctx, target, "sh", []string{"-c", applyCommand(cfg)}); err != nil {
		return &BackendError{Op: "RemoteApply", Target: target, Err: joinCause(ErrRemoteApplyFailed, err)}
	}
	b.logger.Info("remote deployment complete", "target", target, "project", cfg.ProjectName)

	return image.Prune(b.dir, cfg.ProjectName, cfg.KeepArtifacts, b.logger)
}

// probeRemoteHash reads the first 64 bytes of the remote hash sidecar, which
// is exactly the stored digest when the sidecar is intact.
func (b *Backend) probeRemoteHash(ctx context.Context, target string, cfg *config.Config) (string, error) {
	out, err := b.executor.Run(ctx, target, "head", []string{"-c", "64", remoteSidecarPath(cfg)})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// transferFiles ships the template, the optional env file, and (unless
// skipped) the archive plus its sidecar.
func (b *Backend) transferFiles(ctx context.Context, target string, cfg *config.Config, tmpl string, envFile *secrets.EnvFile, artifact *image.Artifact, skipArchive bool) error {
	dir := remoteDir(cfg.ProjectName)
	b.logger.Info("transferring files", "target", target, "dir", dir)

	if err := b.uploadContent(ctx, target, tmpl, path.Join(dir, template.FileName)); err != nil {
		return &BackendError{Op: "TransferTemplate", Target: target, Err: joinCause(ErrTransferFailed, err)}
	}

	if envFile.Exists() {
		if err := b.executor.Upload(ctx, target, envFile.Path, path.Join(dir, ".env")); err != nil {
			return &BackendError{Op: "TransferSecrets", Target: target, Err: joinCause(ErrTransferFailed, err)}
		}
	}

	if !skipArchive {
		if err := b.executor.Upload(ctx, target, artifact.Path, remoteArtifactPath(cfg)); err != nil {
			return &BackendError{Op: "TransferArtifact", Target: target, Err: joinCause(ErrTransferFailed, err)}
		}
		if err := b.executor.Upload(ctx, target, artifact.SidecarPath(), remoteSidecarPath(cfg)); err != nil {
			return &BackendError{Op: "TransferArtifact", Target: target, Err: joinCause(ErrTransferFailed, err)}
		}
	}

	b.logger.Info("files transferred", "target", target)
	return nil
}

// uploadContent stages in-memory content (the template may come from the
// packaged fallback, which has no file on disk) and uploads it.
func (b *Backend) uploadContent(ctx context.Context, target, content, remotePath string) error {
	tmp, err := os.CreateTemp("", "deploykit-upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return b.executor.Upload(ctx, target, tmp.Name(), remotePath)
}

// =============================================================================
// Teardown
// =============================================================================

// Teardown removes the deployed stack from target. Local artifacts are left
// untouched.
func (b *Backend) Teardown(ctx context.Context, target string, cfg *config.Config, keepImages, keepFiles bool) error {
	b.logger.Info("tearing down stack", "target", target, "project", cfg.ProjectName,
		"keep_images", keepImages, "keep_files", keepFiles)

	cmd := teardownCommand(cfg, keepImages, keepFiles)
	if _, err := b.executor.Run(ctx, target, "sh", []string{"-c", cmd}); err != nil {
		return &BackendError{Op: "RemoteTeardown", Target: target, Err: joinCause(ErrRemoteTeardownFailed, err)}
	}

	b.logger.Info("teardown complete", "target", target, "project", cfg.ProjectName)
	return nil
}
