package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the file the loader looks for inside a plugin directory.
const ManifestFileName = "plugin.yaml"

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest reads and parses a plugin manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &manifest, nil
}

// LoadManifestFromDir loads the manifest of a directory-shaped plugin.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFileName))
}

// SaveManifest writes a manifest back to disk as yaml.
func SaveManifest(manifest *Manifest, path string) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// ValidateManifest checks a manifest for missing or malformed fields. It
// returns every problem found rather than stopping at the first one, so a
// plugin author can fix a manifest in one pass.
func ValidateManifest(manifest *Manifest) []ValidationError {
	var errors []ValidationError

	required := []struct {
		field string
		value string
	}{
		{"id", manifest.ID},
		{"name", manifest.Name},
		{"version", manifest.Version},
		{"api_version", manifest.APIVersion},
		{"type", string(manifest.Type)},
	}
	for _, r := range required {
		if r.value == "" {
			errors = append(errors, ValidationError{
				Field:   r.field,
				Message: fmt.Sprintf("%s is required", r.field),
			})
		}
	}

	for _, v := range []struct {
		field string
		value string
	}{
		{"version", manifest.Version},
		{"api_version", manifest.APIVersion},
	} {
		if v.value != "" && !isValidSemver(v.value) {
			errors = append(errors, ValidationError{
				Field:   v.field,
				Message: fmt.Sprintf("not a semver version: %s", v.value),
			})
		}
	}

	switch manifest.Type {
	case "", PluginTypePublish, PluginTypeCollector:
	default:
		errors = append(errors, ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unknown plugin type: %s", manifest.Type),
		})
	}

	return errors
}

func isValidSemver(version string) bool {
	return semverRegex.MatchString(version)
}

// IsCompatibleAPIVersion reports whether a plugin built against one SDK API
// version can run against another. Only the major version matters: v1.x.x
// plugins run on any v1.y.z SDK.
func IsCompatibleAPIVersion(pluginAPIVersion, sdkAPIVersion string) bool {
	return extractMajorVersion(pluginAPIVersion) == extractMajorVersion(sdkAPIVersion)
}

func extractMajorVersion(version string) string {
	matches := semverRegex.FindStringSubmatch(version)
	if len(matches) > 1 {
		return matches[1]
	}
	return "0"
}
