package gateway

import (
	"regexp"
	"strings"

	"github.com/forgearmory/armory/internal/model"
)

// prefixSep joins the effective prefix and the original tool name into the
// canonical name that uniquely identifies a tool on the aggregated surface.
const prefixSep = "__"

// Only allow letters, numbers, hyphens, and underscores.
var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateBackendName checks if a backend name (or prefix override) is valid.
// Names must not contain double underscores: tools are addressed as
// `<prefix>__<tool>` and the text before the first __ is treated as the
// prefix. eg- in `aws__ec2__create_sg`, `aws` is the prefix and
// `ec2__create_sg` is the tool.
func validateBackendName(name string) error {
	if name == "" {
		return errValidation("invalid name: must not be empty")
	}
	if !validName.MatchString(name) {
		return errValidation("invalid name: '%s' must follow the regular expression %s", name, validName)
	}
	if strings.Contains(name, prefixSep) {
		return errValidation("invalid name: '%s' must not contain multiple consecutive underscores", name)
	}
	if strings.HasSuffix(name, string(prefixSep[0])) {
		// a trailing underscore would produce `aws___tool`, which splits as
		// `aws` + `_tool` because we always cut on the first occurrence of __
		return errValidation("invalid name: '%s' must not end with an underscore", name)
	}
	return nil
}

// mergePrefixedName composes the registry-wide unique tool name.
func mergePrefixedName(prefix, tool string) string {
	return prefix + prefixSep + tool
}

// splitPrefixedName splits a prefixed tool name into prefix and tool name.
func splitPrefixedName(name string) (string, string, bool) {
	return strings.Cut(name, prefixSep)
}

// validateTimeout normalizes and bounds a per-backend timeout in seconds.
// A zero value selects the default.
func validateTimeout(seconds float64) (float64, error) {
	if seconds == 0 {
		return model.TimeoutSecondsDefault, nil
	}
	if seconds < model.TimeoutSecondsMin || seconds > model.TimeoutSecondsMax {
		return 0, errValidation(
			"invalid timeout: %v seconds, must be between %v and %v",
			seconds, model.TimeoutSecondsMin, model.TimeoutSecondsMax,
		)
	}
	return seconds, nil
}
