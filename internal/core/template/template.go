// Package template locates and renders the production compose template. The
// template carries four placeholders (${PROJECT_NAME}, ${IMAGE_TAG}, ${PORT},
// ${HEALTHCHECK_PATH}) substituted literally; they double as compose
// interpolation variables when the raw template is applied remotely with the
// same values exported in the environment.
package template

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deploykit-dev/deploykit/internal/core/config"
)

// FileName is the compose template looked up in the project directory.
const FileName = "docker-compose.prod.yml.template"

//go:embed templates/docker-compose.prod.yml.template
var packaged embed.FS

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrTemplateNotFound is returned when neither the project directory nor
	// the packaged fallback provides a compose template.
	ErrTemplateNotFound = errors.New("compose template not found in project directory or packaged defaults")

	// ErrNoServices is returned when a rendered compose document defines no
	// services.
	ErrNoServices = errors.New("rendered compose defines no services")
)

// =============================================================================
// Location and Rendering
// =============================================================================

// Load returns the template content, preferring the project's own template
// over the packaged fallback.
func Load(dir string) (string, error) {
	local := filepath.Join(dir, FileName)
	if content, err := os.ReadFile(local); err == nil {
		return string(content), nil
	}

	content, err := packaged.ReadFile("templates/" + FileName)
	if err != nil {
		return "", ErrTemplateNotFound
	}
	return string(content), nil
}

// Render substitutes the four deployment placeholders. Placeholders the
// template author invented beyond these four are left untouched; that is a
// template-authoring error surfaced by the well-formedness check or by the
// target, not here.
func Render(content string, cfg *config.Config) string {
	r := strings.NewReplacer(
		"${PROJECT_NAME}", cfg.ProjectName,
		"${IMAGE_TAG}", cfg.ImageTag,
		"${PORT}", strconv.Itoa(cfg.Port),
		"${HEALTHCHECK_PATH}", cfg.HealthcheckPath,
	)
	return r.Replace(content)
}

// Validate checks that rendered compose content is well-formed YAML with at
// least one service.
func Validate(rendered string) error {
	var doc struct {
		Services map[string]any `yaml:"services"`
	}
	if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
		return fmt.Errorf("rendered compose is not valid YAML: %w", err)
	}
	if len(doc.Services) == 0 {
		return ErrNoServices
	}
	return nil
}
