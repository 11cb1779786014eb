package syncrun

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tyemirov/labsync/internal/execshell"
	"github.com/tyemirov/labsync/internal/filesystem"
)

const (
	programExecutorMissingMessageConstant = "program executor not configured"
	missingHookScriptTemplateConstant     = "missing %s"
)

// ErrProgramExecutorNotConfigured indicates the HookRunner was constructed without a program executor.
var ErrProgramExecutorNotConfigured = errors.New(programExecutorMissingMessageConstant)

// HookScriptMissingError indicates the post-sync hook script is absent from the target.
type HookScriptMissingError struct {
	HookScriptPath string
}

// Error describes the missing hook script.
func (missingError HookScriptMissingError) Error() string {
	return fmt.Sprintf(missingHookScriptTemplateConstant, missingError.HookScriptPath)
}

// ProgramExecutor exposes the subset of execshell functionality required to invoke hook interpreters.
type ProgramExecutor interface {
	ExecuteProgram(executionContext context.Context, programName string, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// HookRunner invokes the post-sync hook script inside a synchronized target.
//
// The hook is an opaque external program: only its exit status matters.
type HookRunner struct {
	programExecutor ProgramExecutor
	fileSystem      filesystem.FileSystem
	logger          *zap.Logger
}

// NewHookRunner constructs a HookRunner for the provided executor.
func NewHookRunner(programExecutor ProgramExecutor, fileSystem filesystem.FileSystem, logger *zap.Logger) (*HookRunner, error) {
	if programExecutor == nil {
		return nil, ErrProgramExecutorNotConfigured
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HookRunner{programExecutor: programExecutor, fileSystem: fileSystem, logger: logger}, nil
}

// Run verifies the hook script exists under the target and invokes the
// resolved interpreter with the script as its sole argument, working
// directory set to the target root.
func (runner *HookRunner) Run(executionContext context.Context, target Target, hookScriptPath string, interpreterPath string) error {
	absoluteHookPath := filepath.Join(target.Path, hookScriptPath)
	if _, statError := runner.fileSystem.Stat(absoluteHookPath); statError != nil {
		return StepFailureError{
			TargetName: target.Name,
			StepName:   hookScriptPath,
			Cause:      HookScriptMissingError{HookScriptPath: hookScriptPath},
		}
	}

	runner.logger.Info(hookScriptPath, zap.String(targetNameFieldNameConstant, target.Name))

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{hookScriptPath},
		WorkingDirectory: target.Path,
	}
	if _, executionError := runner.programExecutor.ExecuteProgram(executionContext, interpreterPath, commandDetails); executionError != nil {
		return StepFailureError{TargetName: target.Name, StepName: hookScriptPath, Cause: executionError}
	}

	return nil
}
