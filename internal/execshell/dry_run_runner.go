package execshell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	dryRunLinePrefixConstant                = "DRY-RUN"
	dryRunRenderTemplateConstant            = "%s: %s\n"
	dryRunRenderWithDirectoryConstant       = "%s: (cd %s && %s)\n"
	safeArgumentCharactersConstant          = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-"
	singleQuoteEscapeReplacementConstant    = `'\''`
	emptyArgumentQuotedRepresentationResult = "''"
)

// DryRunCommandRunner renders commands to a diagnostic writer instead of executing them.
type DryRunCommandRunner struct {
	outputWriter io.Writer
}

// NewDryRunCommandRunner constructs a rendering runner writing to the provided writer, defaulting to standard error.
func NewDryRunCommandRunner(outputWriter io.Writer) DryRunCommandRunner {
	if outputWriter == nil {
		outputWriter = os.Stderr
	}
	return DryRunCommandRunner{outputWriter: outputWriter}
}

// Run writes the rendered invocation and reports success without executing anything.
func (runner DryRunCommandRunner) Run(_ context.Context, command ShellCommand) (ExecutionResult, error) {
	renderedCommand := RenderCommandLine(command)

	if len(strings.TrimSpace(command.Details.WorkingDirectory)) > 0 {
		fmt.Fprintf(runner.outputWriter, dryRunRenderWithDirectoryConstant, dryRunLinePrefixConstant, QuoteArgument(command.Details.WorkingDirectory), renderedCommand)
		return ExecutionResult{}, nil
	}

	fmt.Fprintf(runner.outputWriter, dryRunRenderTemplateConstant, dryRunLinePrefixConstant, renderedCommand)
	return ExecutionResult{}, nil
}

// RenderCommandLine produces a shell-safe textual rendering of the invocation.
func RenderCommandLine(command ShellCommand) string {
	renderedParts := make([]string, 0, len(command.Details.Arguments)+1)
	renderedParts = append(renderedParts, QuoteArgument(string(command.Name)))
	for _, argument := range command.Details.Arguments {
		renderedParts = append(renderedParts, QuoteArgument(argument))
	}
	return strings.Join(renderedParts, " ")
}

// QuoteArgument wraps the argument in single quotes when it contains characters unsafe for a shell.
func QuoteArgument(argument string) string {
	if len(argument) == 0 {
		return emptyArgumentQuotedRepresentationResult
	}

	requiresQuoting := false
	for _, argumentCharacter := range argument {
		if !strings.ContainsRune(safeArgumentCharactersConstant, argumentCharacter) {
			requiresQuoting = true
			break
		}
	}

	if !requiresQuoting {
		return argument
	}

	return "'" + strings.ReplaceAll(argument, "'", singleQuoteEscapeReplacementConstant) + "'"
}
