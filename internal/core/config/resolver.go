package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// File names looked up in the project directory.
const (
	deployConfigFile = "deploykit.toml"
	manifestFile     = "project.toml"
)

// =============================================================================
// Resolver
// =============================================================================

// Resolver builds a Config from the project directory. The probe functions are
// replaceable for tests; zero values use the live host.
type Resolver struct {
	// Dir is the project directory. Empty means the current working directory.
	Dir string

	// ArchProbe reports the raw host architecture (uname -m style output).
	ArchProbe func() (string, error)

	// GitRevision reports the short revision of the checkout in dir.
	GitRevision func(dir string) (string, error)
}

// Resolve merges all configuration sources into an immutable Config.
// It fails with ErrNoProjectName when no project identity can be determined.
func (r *Resolver) Resolve() (*Config, error) {
	dir := r.Dir
	if dir == "" {
		dir = "."
	}

	v := viper.New()
	v.SetDefault("deploy.port", DefaultPort)
	v.SetDefault("deploy.healthcheck_path", DefaultHealthcheckPath)
	v.SetDefault("deploy.keep_artifacts", DefaultKeepArtifacts)
	v.SetDefault("deploy.architecture", "")
	v.SetDefault("deploy.ssh_target", "")
	v.SetDefault("deploy.portainer_url", "")

	// Environment variables outrank the [deploy] table.
	_ = v.BindEnv("deploy.port", "DEPLOY_PORT")
	_ = v.BindEnv("deploy.healthcheck_path", "DEPLOY_HEALTHCHECK_PATH")
	_ = v.BindEnv("deploy.architecture", "DEPLOY_ARCH")
	_ = v.BindEnv("deploy.ssh_target", "DEPLOY_TARGET")
	_ = v.BindEnv("deploy.portainer_url", "PORTAINER_URL")

	v.SetConfigFile(filepath.Join(dir, deployConfigFile))
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, NewConfigError(deployConfigFile, "parse failed", err)
		}
		// Missing deploy config is fine, the manifest may still name the project.
	}

	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}

	name := v.GetString("deploy.name")
	if name == "" {
		name = manifest.GetString("project.name")
	}
	if name == "" {
		return nil, NewConfigError("name", "no project identity", ErrNoProjectName)
	}

	version := v.GetString("deploy.version")
	if version == "" {
		version = manifest.GetString("project.version")
	}
	if version == "" {
		version = DefaultVersion
	}

	arch := v.GetString("deploy.architecture")
	if arch == "" {
		arch, err = r.probeArchitecture()
		if err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		ProjectName:     name,
		ProjectVersion:  version,
		ImageTag:        r.resolveImageTag(dir),
		Port:            v.GetInt("deploy.port"),
		HealthcheckPath: v.GetString("deploy.healthcheck_path"),
		KeepArtifacts:   v.GetInt("deploy.keep_artifacts"),
		Architecture:    arch,
		SSHTarget:       v.GetString("deploy.ssh_target"),
		PortainerURL:    v.GetString("deploy.portainer_url"),
	}

	if cfg.Port <= 0 {
		return nil, NewConfigError("port", fmt.Sprintf("got %d", cfg.Port), ErrInvalidPort)
	}
	if cfg.KeepArtifacts < 0 {
		return nil, NewConfigError("keep_artifacts", fmt.Sprintf("got %d", cfg.KeepArtifacts), ErrInvalidRetention)
	}

	return cfg, nil
}

// readManifest loads the optional project.toml manifest. A missing file yields
// an empty manifest, a malformed one is a fatal configuration error.
func readManifest(dir string) (*viper.Viper, error) {
	m := viper.New()
	m.SetConfigFile(filepath.Join(dir, manifestFile))
	if err := m.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigParseError); ok {
			return nil, NewConfigError(manifestFile, "parse failed", err)
		}
	}
	return m, nil
}

// resolveImageTag returns IMAGE_TAG, the short VCS revision, or "latest".
// It never fails: a project without git metadata still deploys.
func (r *Resolver) resolveImageTag(dir string) string {
	if tag := os.Getenv("IMAGE_TAG"); tag != "" {
		return tag
	}

	gitRevision := r.GitRevision
	if gitRevision == nil {
		gitRevision = gitShortRevision
	}

	rev, err := gitRevision(dir)
	if err != nil || rev == "" {
		return FallbackImageTag
	}
	return rev
}

// probeArchitecture probes the host and normalizes to a Docker platform string.
func (r *Resolver) probeArchitecture() (string, error) {
	probe := r.ArchProbe
	if probe == nil {
		probe = unameMachine
	}

	raw, err := probe()
	if err != nil {
		return "", NewConfigError("architecture", "host probe failed", err)
	}

	return NormalizeArchitecture(raw)
}

// NormalizeArchitecture maps a raw uname machine string onto one of the two
// supported Docker platform strings.
func NormalizeArchitecture(raw string) (string, error) {
	switch strings.TrimSpace(raw) {
	case "arm64", "aarch64":
		return PlatformLinuxARM64, nil
	case "x86_64", "amd64":
		return PlatformLinuxAMD64, nil
	default:
		return "", NewConfigError("architecture", strings.TrimSpace(raw), ErrUnsupportedPlatform)
	}
}

// =============================================================================
// Host Probes
// =============================================================================

func unameMachine() (string, error) {
	out, err := exec.Command("uname", "-m").Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func gitShortRevision(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
