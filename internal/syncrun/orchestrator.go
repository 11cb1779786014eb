package syncrun

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/labsync/internal/filesystem"
	"github.com/tyemirov/labsync/internal/interpreter"
)

const (
	interpreterStepNameConstant         = "resolve-interpreter"
	runStateFieldNameConstant           = "state"
	targetCountFieldNameConstant        = "target_count"
	runStateTransitionMessageConstant   = "synchronization state changed"
	runCompletedMessageConstant         = "synchronization complete"
	targetVerifiedMessageConstant       = "target ready"
	targetNotReadyErrorTemplateConstant = "target %s not ready: %s"
	statusEntryIndentConstant           = "\n  "
)

// RunState names the orchestrator's phases.
type RunState string

// Orchestrator run states.
const (
	RunStateResolving RunState = "resolving"
	RunStateVerifying RunState = "verifying"
	RunStateActing    RunState = "acting"
	RunStateDone      RunState = "done"
	RunStateAborted   RunState = "aborted"
)

// TargetNotReadyError indicates verification failed for a target, aborting the run before any mutation.
type TargetNotReadyError struct {
	Result ReadinessResult
}

// Error describes the readiness violation, attaching the status listing for dirty worktrees.
func (notReadyError TargetNotReadyError) Error() string {
	baseMessage := fmt.Sprintf(targetNotReadyErrorTemplateConstant, notReadyError.Result.TargetName, notReadyError.Result.FailureDescription())
	if len(notReadyError.Result.StatusEntries) == 0 {
		return baseMessage
	}
	return baseMessage + statusEntryIndentConstant + strings.Join(notReadyError.Result.StatusEntries, statusEntryIndentConstant)
}

// RepositoryManager combines the inspection and mutation surfaces the orchestrator requires.
type RepositoryManager interface {
	RepositoryInspector
	RepositoryMutator
}

// InterpreterResolver selects the interpreter for a target's hook.
type InterpreterResolver interface {
	Resolve(repositoryPath string, candidateSubPaths []string, fallbackCommand string) (string, error)
}

// Dependencies describes the collaborators required by the Orchestrator.
type Dependencies struct {
	Logger              *zap.Logger
	FileSystem          filesystem.FileSystem
	RepositoryManager   RepositoryManager
	ProgramExecutor     ProgramExecutor
	InterpreterResolver InterpreterResolver
}

// Orchestrator coordinates target resolution, readiness verification, and the
// per-target sync and hook sequence.
//
// The run is all-or-nothing with respect to mutation: no target is acted upon
// unless every target in the set passes verification. Targets already acted
// upon before an acting-phase failure are not rolled back; the operator
// re-runs once the fault is fixed.
type Orchestrator struct {
	configuration       Configuration
	logger              *zap.Logger
	targetResolver      *TargetResolver
	readinessVerifier   *ReadinessVerifier
	syncService         *SyncService
	hookRunner          *HookRunner
	interpreterResolver InterpreterResolver
}

// NewOrchestrator validates the configuration and wires the run services.
func NewOrchestrator(configuration Configuration, dependencies Dependencies) (*Orchestrator, error) {
	sanitizedConfiguration := configuration.Sanitize()
	if validationError := sanitizedConfiguration.Validate(); validationError != nil {
		return nil, validationError
	}

	if dependencies.RepositoryManager == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if dependencies.ProgramExecutor == nil {
		return nil, ErrProgramExecutorNotConfigured
	}

	runLogger := dependencies.Logger
	if runLogger == nil {
		runLogger = zap.NewNop()
	}

	fileSystem := dependencies.FileSystem
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}

	interpreterResolver := dependencies.InterpreterResolver
	if interpreterResolver == nil {
		interpreterResolver = interpreter.NewResolver(fileSystem, nil)
	}

	readinessVerifier, verifierError := NewReadinessVerifier(dependencies.RepositoryManager, fileSystem)
	if verifierError != nil {
		return nil, verifierError
	}

	syncService, serviceError := NewSyncService(dependencies.RepositoryManager, runLogger)
	if serviceError != nil {
		return nil, serviceError
	}

	hookRunner, hookRunnerError := NewHookRunner(dependencies.ProgramExecutor, fileSystem, runLogger)
	if hookRunnerError != nil {
		return nil, hookRunnerError
	}

	return &Orchestrator{
		configuration:       sanitizedConfiguration,
		logger:              runLogger,
		targetResolver:      NewTargetResolver(fileSystem, runLogger),
		readinessVerifier:   readinessVerifier,
		syncService:         syncService,
		hookRunner:          hookRunner,
		interpreterResolver: interpreterResolver,
	}, nil
}

// Run executes the Resolving, Verifying, and Acting phases in order. The
// first failure at any phase terminates the run.
func (orchestrator *Orchestrator) Run(executionContext context.Context) error {
	orchestrator.logStateTransition(RunStateResolving)
	targetSet, resolutionError := orchestrator.targetResolver.ResolveTargetSet(orchestrator.configuration)
	if resolutionError != nil {
		return resolutionError
	}

	orchestrator.logStateTransition(RunStateVerifying)
	for _, target := range targetSet {
		readinessResult, verificationError := orchestrator.readinessVerifier.Verify(executionContext, target, orchestrator.configuration.RemoteName)
		if verificationError != nil {
			return verificationError
		}
		if !readinessResult.Ready {
			return TargetNotReadyError{Result: readinessResult}
		}
		orchestrator.logger.Debug(targetVerifiedMessageConstant, zap.String(targetNameFieldNameConstant, target.Name))
	}

	orchestrator.logStateTransition(RunStateActing)
	for _, target := range targetSet {
		if synchronizationError := orchestrator.syncService.Synchronize(executionContext, target, orchestrator.configuration.RemoteName); synchronizationError != nil {
			return synchronizationError
		}

		interpreterPath, resolutionError := orchestrator.interpreterResolver.Resolve(
			target.Path,
			orchestrator.configuration.InterpreterCandidates,
			orchestrator.configuration.FallbackInterpreter,
		)
		if resolutionError != nil {
			return StepFailureError{TargetName: target.Name, StepName: interpreterStepNameConstant, Cause: resolutionError}
		}

		if hookError := orchestrator.hookRunner.Run(executionContext, target, orchestrator.configuration.HookScriptPath, interpreterPath); hookError != nil {
			return hookError
		}
	}

	orchestrator.logStateTransition(RunStateDone)
	orchestrator.logger.Info(runCompletedMessageConstant, zap.Int(targetCountFieldNameConstant, len(targetSet)))
	return nil
}

func (orchestrator *Orchestrator) logStateTransition(runState RunState) {
	orchestrator.logger.Debug(runStateTransitionMessageConstant, zap.String(runStateFieldNameConstant, string(runState)))
}
