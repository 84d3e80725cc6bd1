package compose

import (
	"fmt"
	"path"
	"strconv"

	"github.com/deploykit-dev/deploykit/internal/core/config"
	"github.com/deploykit-dev/deploykit/internal/core/template"
)

// remoteBase is where transferred files live on the target. Teardown's
// keep-files flag decides whether the project's subdirectory survives.
const remoteBase = "/tmp/deploykit"

// =============================================================================
// Remote Command Builders
// =============================================================================
//
// Pure functions assembling the shell lines run on the target. Keeping them
// side-effect free makes the exact remote protocol unit-testable.

// remoteDir returns the target directory for a project's transferred files.
func remoteDir(projectName string) string {
	return path.Join(remoteBase, projectName)
}

// remoteArtifactPath returns where the archive lands on the target.
func remoteArtifactPath(cfg *config.Config) string {
	return path.Join(remoteDir(cfg.ProjectName), cfg.ArtifactName())
}

// remoteSidecarPath returns where the archive's hash sidecar lands.
func remoteSidecarPath(cfg *config.Config) string {
	return remoteArtifactPath(cfg) + ".sha256"
}

// applyCommand builds the remote apply line: load the shipped image, then
// bring the stack up with the four deployment values exported so compose
// interpolates them into the template.
func applyCommand(cfg *config.Config) string {
	dir := remoteDir(cfg.ProjectName)
	return fmt.Sprintf(
		"cd %s && docker load -i %s && touch .env && "+
			"PROJECT_NAME=%s IMAGE_TAG=%s PORT=%s HEALTHCHECK_PATH=%s "+
			"docker compose -p %s -f %s --env-file .env up -d --remove-orphans",
		dir, cfg.ArtifactName(),
		cfg.ProjectName, cfg.ImageTag, strconv.Itoa(cfg.Port), cfg.HealthcheckPath,
		cfg.ProjectName, template.FileName,
	)
}

// teardownCommand builds the remote teardown line. The stack is addressed by
// project name only, so teardown works even after the transferred files are
// gone. Image and file removal honor the two preservation flags; a missing
// image is not an error.
func teardownCommand(cfg *config.Config, keepImages, keepFiles bool) string {
	cmd := fmt.Sprintf("docker compose -p %s down --remove-orphans", cfg.ProjectName)

	if !keepImages {
		cmd += fmt.Sprintf(" && { docker image rm %s || true; }", cfg.ImageRef())
	}
	if !keepFiles {
		cmd += fmt.Sprintf(" && rm -rf %s", remoteDir(cfg.ProjectName))
	}

	return cmd
}
