// Package orchestrator drives one deployment operation end to end: resolve
// configuration, provision secrets, validate the backend selection, build the
// image, dispatch to the chosen backend, and always release the transient
// secret file on the way out.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/deploykit-dev/deploykit/internal/core/backend"
	"github.com/deploykit-dev/deploykit/internal/core/config"
	"github.com/deploykit-dev/deploykit/internal/shell/image"
	"github.com/deploykit-dev/deploykit/internal/shell/secrets"
)

// Selector builds the backend selection for a run. It receives the resolved
// configuration so targets and credentials can fall back to config-file
// values, and it fails when the selected backend's required fields are
// missing. It runs before any build side effect.
type Selector func(cfg *config.Config) (backend.Selection, error)

// ComposeBackend is the SSH/compose deployment strategy.
type ComposeBackend interface {
	Deploy(ctx context.Context, target string, cfg *config.Config, envFile *secrets.EnvFile) error
	Teardown(ctx context.Context, target string, cfg *config.Config, keepImages, keepFiles bool) error
}

// PortainerBackend is the Portainer API deployment strategy.
type PortainerBackend interface {
	Deploy(ctx context.Context, cfg *config.Config, envFile *secrets.EnvFile, url, apiKey string) error
	Teardown(ctx context.Context, cfg *config.Config, url, apiKey string) error
}

// =============================================================================
// Driver
// =============================================================================

// Driver is the top-level deployment state machine.
type Driver struct {
	Resolver  *config.Resolver
	Secrets   *secrets.Provisioner
	Provider  image.Provider
	Compose   ComposeBackend
	Portainer PortainerBackend

	logger *slog.Logger
}

// NewDriver assembles a Driver.
func NewDriver(resolver *config.Resolver, provisioner *secrets.Provisioner, provider image.Provider, composeBackend ComposeBackend, portainerBackend PortainerBackend, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		Resolver:  resolver,
		Secrets:   provisioner,
		Provider:  provider,
		Compose:   composeBackend,
		Portainer: portainerBackend,
		logger:    logger,
	}
}

// Up deploys the project: resolve, detect secrets, select the backend, build,
// dispatch. Secret cleanup runs on every exit path, including backend
// failures and validation failures after detection.
func (d *Driver) Up(ctx context.Context, selector Selector) (err error) {
	logger := d.runLogger()

	cfg, err := d.Resolver.Resolve()
	if err != nil {
		return err
	}
	logger.Info("deploying project", "project", cfg.ProjectName, "tag", cfg.ImageTag)

	envFile, err := d.Secrets.Detect()
	if err != nil {
		return err
	}
	defer func() {
		if cleanupErr := envFile.Cleanup(); cleanupErr != nil {
			logger.Warn("failed to remove transient env file", "error", cleanupErr)
			if err == nil {
				err = cleanupErr
			}
		}
	}()

	// Backend validation gates the build: a misconfigured target must fail
	// before any image work happens.
	sel, err := selector(cfg)
	if err != nil {
		return err
	}

	if err = d.Provider.Build(ctx, cfg); err != nil {
		return err
	}

	switch s := sel.(type) {
	case backend.Compose:
		logger.Info("using compose backend", "target", s.Target)
		err = d.Compose.Deploy(ctx, s.Target, cfg, envFile)
	case backend.Portainer:
		logger.Info("using portainer backend", "url", s.URL)
		err = d.Portainer.Deploy(ctx, cfg, envFile, s.URL, s.APIKey)
	default:
		err = fmt.Errorf("unknown backend selection %T", sel)
	}
	if err != nil {
		return err
	}

	logger.Info("deployment complete", "project", cfg.ProjectName)
	return nil
}

// Down tears the deployment down. No build and no secret provisioning are
// needed on this path.
func (d *Driver) Down(ctx context.Context, selector Selector, keepImages, keepFiles bool) error {
	logger := d.runLogger()

	cfg, err := d.Resolver.Resolve()
	if err != nil {
		return err
	}
	logger.Info("tearing down project", "project", cfg.ProjectName, "tag", cfg.ImageTag)

	sel, err := selector(cfg)
	if err != nil {
		return err
	}

	switch s := sel.(type) {
	case backend.Compose:
		err = d.Compose.Teardown(ctx, s.Target, cfg, keepImages, keepFiles)
	case backend.Portainer:
		err = d.Portainer.Teardown(ctx, cfg, s.URL, s.APIKey)
	default:
		err = fmt.Errorf("unknown backend selection %T", sel)
	}
	if err != nil {
		return err
	}

	logger.Info("teardown complete", "project", cfg.ProjectName)
	return nil
}

// runLogger tags all records of one invocation with a fresh run id.
func (d *Driver) runLogger() *slog.Logger {
	return d.logger.With("run_id", uuid.NewString())
}
