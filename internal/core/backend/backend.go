// Package backend models the closed set of deployment backends. A Selection
// is constructed exactly once per invocation, and constructing one validates
// the backend's required fields before any build or transfer side effect runs.
package backend

import "errors"

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoBackend is returned when no backend, or more than one, is selected.
	// There is no implicit default backend.
	ErrNoBackend = errors.New("backend required: use exactly one of --compose or --portainer")

	// ErrNoSSHTarget is returned when the compose backend is selected without
	// an SSH target.
	ErrNoSSHTarget = errors.New("SSH target required: pass user@host, set DEPLOY_TARGET, or set deploy.ssh_target")

	// ErrNoPortainerURL is returned when the portainer backend is selected
	// without a URL.
	ErrNoPortainerURL = errors.New("Portainer URL required: pass the URL, set PORTAINER_URL, or set deploy.portainer_url")

	// ErrNoPortainerKey is returned when the portainer backend is selected
	// without an API key.
	ErrNoPortainerKey = errors.New("PORTAINER_API_KEY environment variable required")
)

// =============================================================================
// Selection Sum Type
// =============================================================================

// Selection is one of exactly two deployment backends. The interface is
// sealed: only Compose and Portainer implement it, so a dispatch switch over
// the concrete types is exhaustive.
type Selection interface {
	// Name reports the backend name for logging.
	Name() string

	sealed()
}

// Compose deploys over SSH to a docker compose host.
type Compose struct {
	// Target is the SSH destination in user@host[:port] form.
	Target string
}

func (Compose) Name() string { return "compose" }
func (Compose) sealed()      {}

// Portainer deploys through the Portainer HTTP API.
type Portainer struct {
	URL    string
	APIKey string
}

func (Portainer) Name() string { return "portainer" }
func (Portainer) sealed()      {}

// NewCompose validates and constructs a compose backend selection.
func NewCompose(target string) (Selection, error) {
	if target == "" {
		return nil, ErrNoSSHTarget
	}
	return Compose{Target: target}, nil
}

// NewPortainer validates and constructs a portainer backend selection.
func NewPortainer(url, apiKey string) (Selection, error) {
	if url == "" {
		return nil, ErrNoPortainerURL
	}
	if apiKey == "" {
		return nil, ErrNoPortainerKey
	}
	return Portainer{URL: url, APIKey: apiKey}, nil
}
