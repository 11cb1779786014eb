package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant          = "Running: %s"
	startedWithDirectoryTemplateConstant    = "Running: %s (in %s)"
	successMessageTemplateConstant          = "Completed: %s"
	failureMessageTemplateConstant          = "Failed (exit %d): %s"
	executionFailureMessageTemplateConstant = "Unable to run %s: %v"
)

// CommandMessageFormatter renders human-readable lifecycle messages for command execution.
type CommandMessageFormatter struct{}

// BuildStartedMessage renders the command start announcement.
func (CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	renderedCommand := RenderCommandLine(command)
	if len(strings.TrimSpace(command.Details.WorkingDirectory)) > 0 {
		return fmt.Sprintf(startedWithDirectoryTemplateConstant, renderedCommand, command.Details.WorkingDirectory)
	}
	return fmt.Sprintf(startedMessageTemplateConstant, renderedCommand)
}

// BuildSuccessMessage renders the command completion announcement.
func (CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(successMessageTemplateConstant, RenderCommandLine(command))
}

// BuildFailureMessage renders the non-zero exit announcement.
func (CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return fmt.Sprintf(failureMessageTemplateConstant, result.ExitCode, RenderCommandLine(command))
}

// BuildExecutionFailureMessage renders runner-level failures.
func (CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	return fmt.Sprintf(executionFailureMessageTemplateConstant, RenderCommandLine(command), cause)
}
