// Package config resolves the immutable deployment configuration for one
// invocation. Values are merged with a fixed precedence: process environment
// variables win over the project's deploykit.toml [deploy] table, which wins
// over the optional project.toml manifest, which wins over built-in defaults.
package config

// =============================================================================
// Config Types
// =============================================================================

// Platform strings accepted for image builds.
const (
	PlatformLinuxARM64 = "linux/arm64"
	PlatformLinuxAMD64 = "linux/amd64"
)

// Defaults applied when no other source provides a value.
const (
	DefaultPort            = 8000
	DefaultHealthcheckPath = "/"
	DefaultKeepArtifacts   = 3
	DefaultVersion         = "0.0.0"

	// FallbackImageTag is used when the project has no usable VCS revision.
	FallbackImageTag = "latest"
)

// Config is the resolved deployment configuration. It is built once per
// invocation and never mutated afterwards.
type Config struct {
	ProjectName     string
	ProjectVersion  string
	ImageTag        string
	Port            int
	HealthcheckPath string
	KeepArtifacts   int
	Architecture    string

	// Backend targets; either may be empty, validation happens at backend
	// selection time, not here.
	SSHTarget    string
	PortainerURL string
}

// ImageRef returns the name:tag reference for the project image.
func (c *Config) ImageRef() string {
	return c.ProjectName + ":" + c.ImageTag
}

// ArtifactName returns the file name of the saved image archive.
func (c *Config) ArtifactName() string {
	return c.ProjectName + "-" + c.ImageTag + ".tar.gz"
}
