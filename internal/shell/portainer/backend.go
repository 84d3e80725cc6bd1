package portainer

import (
	"context"
	"log/slog"
	"time"

	"github.com/deploykit-dev/deploykit/internal/core/config"
	"github.com/deploykit-dev/deploykit/internal/core/envfile"
	"github.com/deploykit-dev/deploykit/internal/core/template"
	"github.com/deploykit-dev/deploykit/internal/shell/secrets"
)

// Backend is the Portainer API deployment backend.
type Backend struct {
	// Dir is the project directory holding the compose template. Empty means
	// the current working directory.
	Dir string

	// Timeout overrides the per-call HTTP timeout. Zero means DefaultTimeout.
	Timeout time.Duration

	logger *slog.Logger
}

// New creates a Portainer backend rooted in the project directory.
func New(dir string, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{Dir: dir, logger: logger}
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy renders the compose template and creates or updates the project's
// stack. The apply is idempotent: an existing stack with the project's name
// is updated in place, never duplicated.
func (b *Backend) Deploy(ctx context.Context, cfg *config.Config, envFile *secrets.EnvFile, url, apiKey string) error {
	client := newAPIClient(url, apiKey, b.Timeout)
	defer client.close()

	endpointID, err := client.firstEndpoint(ctx)
	if err != nil {
		return err
	}

	content, err := b.renderCompose(cfg)
	if err != nil {
		return err
	}

	var env []envfile.Var
	if envFile.Exists() {
		env, err = envfile.ParseFile(envFile.Path)
		if err != nil {
			return err
		}
	} else {
		env = []envfile.Var{}
	}

	stack, err := client.findStack(ctx, cfg.ProjectName, endpointID)
	if err != nil {
		return err
	}

	if stack.Found {
		b.logger.Info("updating stack", "name", stack.Name, "id", stack.ID, "endpoint", stack.EndpointID)
		if err := client.updateStack(ctx, stack, content, env); err != nil {
			return err
		}
	} else {
		b.logger.Info("creating stack", "name", cfg.ProjectName, "endpoint", endpointID)
		if err := client.createStack(ctx, cfg.ProjectName, endpointID, content, env); err != nil {
			return err
		}
	}

	b.logger.Info("portainer deployment complete", "name", cfg.ProjectName)
	return nil
}

// renderCompose loads the shared compose template and substitutes the four
// deployment placeholders.
func (b *Backend) renderCompose(cfg *config.Config) (string, error) {
	tmpl, err := template.Load(b.Dir)
	if err != nil {
		return "", err
	}

	rendered := template.Render(tmpl, cfg)
	if err := template.Validate(rendered); err != nil {
		return "", err
	}
	return rendered, nil
}

// =============================================================================
// Teardown
// =============================================================================

// Teardown deletes the project's stack. An absent stack is an acceptable
// terminal state, reported as informational rather than failed.
func (b *Backend) Teardown(ctx context.Context, cfg *config.Config, url, apiKey string) error {
	client := newAPIClient(url, apiKey, b.Timeout)
	defer client.close()

	endpointID, err := client.firstEndpoint(ctx)
	if err != nil {
		return err
	}

	stack, err := client.findStack(ctx, cfg.ProjectName, endpointID)
	if err != nil {
		return err
	}

	if !stack.Found {
		b.logger.Info("stack not found, already torn down", "name", cfg.ProjectName)
		return nil
	}

	if err := client.deleteStack(ctx, stack); err != nil {
		return err
	}

	b.logger.Info("stack removed", "name", stack.Name, "id", stack.ID)
	return nil
}
