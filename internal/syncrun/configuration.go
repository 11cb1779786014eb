package syncrun

import (
	"fmt"
	"strings"
)

const (
	rootFieldNameConstant                  = "sync.root"
	requiredTargetsFieldNameConstant       = "sync.required_targets"
	remoteFieldNameConstant                = "sync.remote"
	hookScriptFieldNameConstant            = "sync.hook_script"
	interpreterCandidatesFieldNameConstant = "sync.interpreter_candidates"
	interpreterFallbackFieldNameConstant   = "sync.interpreter_fallback"
	missingConfigurationTemplateConstant   = "missing required configuration value %s"
)

// Configuration captures the validated settings for a synchronization run.
type Configuration struct {
	Root                  string   `mapstructure:"root"`
	RequiredTargets       []string `mapstructure:"required_targets"`
	OptionalTargets       []string `mapstructure:"optional_targets"`
	RemoteName            string   `mapstructure:"remote"`
	HookScriptPath        string   `mapstructure:"hook_script"`
	InterpreterCandidates []string `mapstructure:"interpreter_candidates"`
	FallbackInterpreter   string   `mapstructure:"interpreter_fallback"`
}

// MissingConfigurationValueError indicates a required configuration value is absent or empty.
type MissingConfigurationValueError struct {
	FieldName string
}

// Error describes the missing configuration value.
func (missingError MissingConfigurationValueError) Error() string {
	return fmt.Sprintf(missingConfigurationTemplateConstant, missingError.FieldName)
}

// Sanitize normalizes whitespace and splits list entries that arrive as a
// single whitespace-separated string, preserving the configured order.
func (configuration Configuration) Sanitize() Configuration {
	configuration.Root = strings.TrimSpace(configuration.Root)
	configuration.RemoteName = strings.TrimSpace(configuration.RemoteName)
	configuration.HookScriptPath = strings.TrimSpace(configuration.HookScriptPath)
	configuration.FallbackInterpreter = strings.TrimSpace(configuration.FallbackInterpreter)
	configuration.RequiredTargets = normalizeListValues(configuration.RequiredTargets)
	configuration.OptionalTargets = normalizeListValues(configuration.OptionalTargets)
	configuration.InterpreterCandidates = normalizeListValues(configuration.InterpreterCandidates)
	return configuration
}

// Validate reports the first missing required configuration value.
func (configuration Configuration) Validate() error {
	if len(configuration.Root) == 0 {
		return MissingConfigurationValueError{FieldName: rootFieldNameConstant}
	}
	if len(configuration.RequiredTargets) == 0 {
		return MissingConfigurationValueError{FieldName: requiredTargetsFieldNameConstant}
	}
	if len(configuration.RemoteName) == 0 {
		return MissingConfigurationValueError{FieldName: remoteFieldNameConstant}
	}
	if len(configuration.HookScriptPath) == 0 {
		return MissingConfigurationValueError{FieldName: hookScriptFieldNameConstant}
	}
	if len(configuration.InterpreterCandidates) == 0 {
		return MissingConfigurationValueError{FieldName: interpreterCandidatesFieldNameConstant}
	}
	if len(configuration.FallbackInterpreter) == 0 {
		return MissingConfigurationValueError{FieldName: interpreterFallbackFieldNameConstant}
	}
	return nil
}

func normalizeListValues(rawValues []string) []string {
	normalizedValues := make([]string, 0, len(rawValues))
	for _, rawValue := range rawValues {
		for _, fieldValue := range strings.Fields(rawValue) {
			normalizedValues = append(normalizedValues, fieldValue)
		}
	}
	if len(normalizedValues) == 0 {
		return nil
	}
	return normalizedValues
}
