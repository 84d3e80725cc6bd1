package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testResolver returns a Resolver rooted in dir with deterministic probes.
func testResolver(dir string) *Resolver {
	return &Resolver{
		Dir:         dir,
		ArchProbe:   func() (string, error) { return "x86_64", nil },
		GitRevision: func(string) (string, error) { return "", errors.New("no git") },
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

// =============================================================================
// Project Identity Tests
// =============================================================================

func TestResolve_NameFromDeployConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"fromdeploy\"\n")
	writeFile(t, dir, "project.toml", "[project]\nname = \"frommanifest\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "fromdeploy", cfg.ProjectName)
}

func TestResolve_NameFallsBackToManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.toml", "[project]\nname = \"frommanifest\"\nversion = \"1.2.3\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "frommanifest", cfg.ProjectName)
	assert.Equal(t, "1.2.3", cfg.ProjectVersion)
}

func TestResolve_NoProjectName(t *testing.T) {
	dir := t.TempDir()

	_, err := testResolver(dir).Resolve()
	assert.ErrorIs(t, err, ErrNoProjectName)
}

func TestResolve_VersionDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "project.toml", "[project]\nname = \"demo\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", cfg.ProjectVersion)
}

// =============================================================================
// Precedence Tests
// =============================================================================

func TestResolve_PortPrecedence_EnvWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nport = 9000\n")
	t.Setenv("DEPLOY_PORT", "9999")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
}

func TestResolve_PortPrecedence_FileOverDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nport = 9000\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestResolve_PortPrecedence_Default(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestResolve_HealthcheckPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nhealthcheck_path = \"/healthz\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/healthz", cfg.HealthcheckPath)

	t.Setenv("DEPLOY_HEALTHCHECK_PATH", "/status")
	cfg, err = testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "/status", cfg.HealthcheckPath)
}

func TestResolve_TargetsFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml",
		"[deploy]\nname = \"demo\"\nssh_target = \"deploy@host\"\nportainer_url = \"https://p.example.com\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "deploy@host", cfg.SSHTarget)
	assert.Equal(t, "https://p.example.com", cfg.PortainerURL)
}

func TestResolve_TargetEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nssh_target = \"deploy@old\"\n")
	t.Setenv("DEPLOY_TARGET", "deploy@new")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "deploy@new", cfg.SSHTarget)
}

// =============================================================================
// Image Tag Tests
// =============================================================================

func TestResolve_ImageTagFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")
	t.Setenv("IMAGE_TAG", "v1.2.3")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", cfg.ImageTag)
}

func TestResolve_ImageTagFromGit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")

	r := testResolver(dir)
	r.GitRevision = func(string) (string, error) { return "abc1234", nil }

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "abc1234", cfg.ImageTag)
}

func TestResolve_ImageTagFallsBackToLatest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")

	cfg, err := testResolver(dir).Resolve()
	require.NoError(t, err)
	assert.Equal(t, "latest", cfg.ImageTag)
}

// =============================================================================
// Architecture Tests
// =============================================================================

func TestNormalizeArchitecture(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"arm64", PlatformLinuxARM64},
		{"aarch64", PlatformLinuxARM64},
		{"x86_64", PlatformLinuxAMD64},
		{"amd64", PlatformLinuxAMD64},
		{"x86_64\n", PlatformLinuxAMD64},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeArchitecture(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeArchitecture_Unsupported(t *testing.T) {
	_, err := NormalizeArchitecture("riscv64")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestResolve_ArchProbeUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")

	r := testResolver(dir)
	r.ArchProbe = func() (string, error) { return "s390x", nil }

	_, err := r.Resolve()
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestResolve_ArchExplicitSkipsProbe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\n")
	t.Setenv("DEPLOY_ARCH", "linux/arm64")

	r := testResolver(dir)
	r.ArchProbe = func() (string, error) {
		t.Fatal("probe must not run when DEPLOY_ARCH is set")
		return "", nil
	}

	cfg, err := r.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "linux/arm64", cfg.Architecture)
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestResolve_InvalidPort(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nport = 0\n")

	_, err := testResolver(dir).Resolve()
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestResolve_NegativeRetention(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy]\nname = \"demo\"\nkeep_artifacts = -1\n")

	_, err := testResolver(dir).Resolve()
	assert.ErrorIs(t, err, ErrInvalidRetention)
}

func TestResolve_MalformedDeployConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deploykit.toml", "[deploy\nbroken")

	_, err := testResolver(dir).Resolve()
	assert.Error(t, err)
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestConfig_ImageRefAndArtifactName(t *testing.T) {
	cfg := &Config{ProjectName: "demo", ImageTag: "abc123"}
	assert.Equal(t, "demo:abc123", cfg.ImageRef())
	assert.Equal(t, "demo-abc123.tar.gz", cfg.ArtifactName())
}
