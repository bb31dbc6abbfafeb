package configmgr

import (
	"fmt"
	"strings"

	"streamctl/pkg/models"

	"gopkg.in/yaml.v3"
)

// PathChecker answers whether a stream path is registered with the
// control plane. Satisfied by the health store.
type PathChecker interface {
	PathExists(path string) (bool, error)
}

// knownTopLevelKeys are the media-server config keys the validator
// recognizes. Anything else is flagged as a warning, not an error, so
// newer node versions keep working.
var knownTopLevelKeys = map[string]bool{
	"logLevel":          true,
	"readTimeout":       true,
	"writeTimeout":      true,
	"api":               true,
	"apiAddress":        true,
	"metrics":           true,
	"metricsAddress":    true,
	"rtsp":              true,
	"rtspAddress":       true,
	"rtsps":             true,
	"rtmp":              true,
	"rtmpAddress":       true,
	"hls":               true,
	"hlsAddress":        true,
	"hlsSegmentCount":   true,
	"hlsSegmentDuration": true,
	"webrtc":            true,
	"webrtcAddress":     true,
	"srt":               true,
	"srtAddress":        true,
	"record":            true,
	"recordPath":        true,
	"recordFormat":      true,
	"recordDeleteAfter": true,
	"paths":             true,
}

// Validate checks a proposed config body. It is pure: no side effects,
// no locking, safe to call concurrently. Syntax and structural problems
// are errors; unknown keys and unregistered path references are
// warnings.
func Validate(body string, paths PathChecker) models.ValidationResult {
	result := models.ValidationResult{
		Errors:   []string{},
		Warnings: []string{},
	}

	if strings.TrimSpace(body) == "" {
		result.Errors = append(result.Errors, "config body is empty")
		return result
	}

	var root map[string]interface{}
	if err := yaml.Unmarshal([]byte(body), &root); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid YAML: %v", err))
		return result
	}
	if root == nil {
		result.Errors = append(result.Errors, "config must be a YAML mapping")
		return result
	}

	for key := range root {
		if !knownTopLevelKeys[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown key %q", key))
		}
	}

	validatePaths(root, paths, &result)
	validateRecording(root, &result)

	result.Valid = len(result.Errors) == 0
	return result
}

// validatePaths checks the paths section: structure is an error,
// references to paths the control plane has never seen are warnings.
func validatePaths(root map[string]interface{}, paths PathChecker, result *models.ValidationResult) {
	raw, ok := root["paths"]
	if !ok || raw == nil {
		return
	}

	section, ok := raw.(map[string]interface{})
	if !ok {
		result.Errors = append(result.Errors, "paths must be a mapping of path name to settings")
		return
	}

	for name, settings := range section {
		if strings.TrimSpace(name) == "" {
			result.Errors = append(result.Errors, "path name must not be empty")
			continue
		}
		if strings.ContainsAny(name, " \t") {
			result.Errors = append(result.Errors, fmt.Sprintf("path %q: name must not contain whitespace", name))
			continue
		}

		if settings != nil {
			if _, ok := settings.(map[string]interface{}); !ok {
				result.Errors = append(result.Errors, fmt.Sprintf("path %q: settings must be a mapping", name))
				continue
			}
			if source, ok := settings.(map[string]interface{})["source"]; ok {
				if _, isString := source.(string); !isString {
					result.Errors = append(result.Errors, fmt.Sprintf("path %q: source must be a string", name))
				}
			}
		}

		if name == "all" || strings.HasPrefix(name, "~") {
			// Wildcard and regexp path entries never match the registry.
			continue
		}
		if paths != nil {
			exists, err := paths.PathExists(name)
			if err == nil && !exists {
				result.Warnings = append(result.Warnings, fmt.Sprintf("path %q is not registered as a stream", name))
			}
		}
	}
}

// validateRecording checks that recording settings are coherent.
func validateRecording(root map[string]interface{}, result *models.ValidationResult) {
	record, ok := root["record"].(bool)
	if !ok || !record {
		return
	}
	if path, ok := root["recordPath"].(string); !ok || strings.TrimSpace(path) == "" {
		result.Errors = append(result.Errors, "record is enabled but recordPath is not set")
	}
}
