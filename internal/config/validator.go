package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult contains the results of configuration validation.
// Separates errors (blocking issues) from warnings (non-blocking issues).
type ValidationResult struct {
	// Errors contains validation failures that should block operations
	Errors []string

	// Warnings contains validation issues that should be logged but not block operations
	Warnings []string
}

// IsValid returns true if there are no validation errors.
// Warnings do not affect validity.
func (vr *ValidationResult) IsValid() bool {
	return len(vr.Errors) == 0
}

// HasWarnings returns true if there are any validation warnings.
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// AddError adds an error message to the validation result.
func (vr *ValidationResult) AddError(msg string) {
	vr.Errors = append(vr.Errors, msg)
}

// AddWarning adds a warning message to the validation result.
func (vr *ValidationResult) AddWarning(msg string) {
	vr.Warnings = append(vr.Warnings, msg)
}

// Merge combines multiple validation results into a single result.
func (vr *ValidationResult) Merge(other ValidationResult) {
	vr.Errors = append(vr.Errors, other.Errors...)
	vr.Warnings = append(vr.Warnings, other.Warnings...)
}

// Err returns the errors joined into one error, or nil.
func (vr *ValidationResult) Err() error {
	if vr.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(vr.Errors, "; "))
}

var (
	githubTokenPattern = regexp.MustCompile(`^(ghp_|gho_|ghs_|ghcr_|github_pat_)[A-Za-z0-9_]+$`)
	hostPattern        = regexp.MustCompile(`^[a-z0-9]([a-z0-9.-]*[a-z0-9])?(:[0-9]+)?$`)
)

// knownEngines are the docker-compatible CLIs the build commands target.
var knownEngines = map[string]bool{"docker": true, "podman": true}

// ValidateGitHubToken checks that a token looks like a GitHub token.
// Accepts ghp_, gho_, ghs_ (Actions), ghcr_ and github_pat_ prefixes.
func ValidateGitHubToken(token string) ValidationResult {
	result := ValidationResult{}

	if token == "" {
		result.AddError("GitHub token cannot be empty")
		return result
	}

	if !githubTokenPattern.MatchString(token) {
		result.AddError("invalid GitHub token format: token must start with ghp_, gho_, ghs_, ghcr_, or github_pat_")
	}

	return result
}

// ValidateRegistry checks that registry is a bare host[:port].
func ValidateRegistry(registry string) ValidationResult {
	result := ValidationResult{}

	if registry == "" {
		result.AddError("registry cannot be empty")
		return result
	}
	if strings.Contains(registry, "://") {
		result.AddError(fmt.Sprintf("registry %q must be a host, not a URL", registry))
		return result
	}
	if !hostPattern.MatchString(strings.ToLower(registry)) {
		result.AddError(fmt.Sprintf("registry %q is not a valid host", registry))
	}
	return result
}

// ValidateEngine warns about engines the build commands were not written for.
func ValidateEngine(engine string) ValidationResult {
	result := ValidationResult{}

	if engine == "" {
		result.AddError("engine cannot be empty")
		return result
	}
	base := engine
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if !knownEngines[base] {
		result.AddWarning(fmt.Sprintf("engine %q is not docker or podman; build flags may differ", engine))
	}
	return result
}

// ValidatePath validates that a path exists and is a directory.
// Returns warnings (not errors) for inaccessible paths.
func ValidatePath(path string) ValidationResult {
	result := ValidationResult{}

	if path == "" {
		result.AddWarning("path is empty")
		return result
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			result.AddWarning(fmt.Sprintf("path does not exist: %s", path))
		} else if os.IsPermission(err) {
			result.AddWarning(fmt.Sprintf("path is not readable: %s", path))
		} else {
			result.AddWarning(fmt.Sprintf("cannot access path %s: %v", path, err))
		}
		return result
	}

	if !info.IsDir() {
		result.AddWarning(fmt.Sprintf("path is not a directory: %s", path))
	}

	return result
}

// ValidateConfig validates an entire configuration object.
// Aggregates validation results from all configured values.
func ValidateConfig(cfg *Config) ValidationResult {
	result := ValidationResult{}

	result.Merge(ValidateRegistry(cfg.Registry))
	result.Merge(ValidateEngine(cfg.Engine))
	result.Merge(ValidatePath(cfg.Root))

	if cfg.Owner == "" {
		result.AddWarning("owner is empty; images are tagged registry/<namespace>")
	}

	// Token shape is only known for ghcr.io and is advisory.
	if cfg.Registry == DefaultRegistry && cfg.Token != "" {
		tokenResult := ValidateGitHubToken(cfg.Token)
		for _, msg := range tokenResult.Errors {
			result.AddWarning(msg)
		}
	}

	return result
}
