package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tyemirov/labsync/internal/execshell"
)

const (
	gitStatusSubcommandConstant               = "status"
	gitStatusPorcelainFlagConstant            = "--porcelain"
	gitRevParseSubcommandConstant             = "rev-parse"
	gitInsideWorkTreeFlagConstant             = "--is-inside-work-tree"
	gitGitDirFlagConstant                     = "--git-dir"
	gitAbbrevRefFlagConstant                  = "--abbrev-ref"
	gitSymbolicFullNameFlagConstant           = "--symbolic-full-name"
	gitUpstreamReferenceConstant              = "@{upstream}"
	gitSymbolicRefSubcommandConstant          = "symbolic-ref"
	gitQuietFlagConstant                      = "--quiet"
	gitShortFlagConstant                      = "--short"
	gitHeadReferenceConstant                  = "HEAD"
	gitRemoteSubcommandConstant               = "remote"
	gitRemoteGetURLSubcommandConstant         = "get-url"
	gitFetchSubcommandConstant                = "fetch"
	gitPruneFlagConstant                      = "--prune"
	gitPullSubcommandConstant                 = "pull"
	gitFastForwardOnlyFlagConstant            = "--ff-only"
	gitPushSubcommandConstant                 = "push"
	repositoryPathFieldNameConstant           = "repository_path"
	remoteNameFieldNameConstant               = "remote_name"
	requiredValueMessageConstant              = "value required"
	inspectionExecutorMissingMessageConstant  = "git inspection executor not configured"
	mutationExecutorMissingMessageConstant    = "git mutation executor not configured"
	repositoryOperationErrorTemplateConstant  = "%s operation failed"
	repositoryOperationErrorWithCauseConstant = "%s operation failed: %s"
	invalidRepositoryInputTemplateConstant    = "%s: %s"
	workingTreeCheckOperationNameConstant     = RepositoryOperationName("CheckWorkingTree")
	remoteCheckOperationNameConstant          = RepositoryOperationName("CheckRemote")
	currentBranchOperationNameConstant        = RepositoryOperationName("GetCurrentBranch")
	upstreamBranchOperationNameConstant       = RepositoryOperationName("GetUpstreamBranch")
	gitDirectoryOperationNameConstant         = RepositoryOperationName("GetGitDirectory")
	worktreeStatusOperationNameConstant       = RepositoryOperationName("WorktreeStatus")
	fetchOperationNameConstant                = RepositoryOperationName("Fetch")
	pullOperationNameConstant                 = RepositoryOperationName("Pull")
	pushOperationNameConstant                 = RepositoryOperationName("Push")
)

// GitCommandExecutor exposes the subset of execshell functionality required by RepositoryManager.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// RepositoryManager coordinates git operations through execshell.
//
// Inspection operations run through the inspection executor, which is always
// live: dry-run mode governs mutation, not read-only interrogation. Mutating
// operations run through the mutation executor, which a dry-run configuration
// replaces with a rendering runner.
type RepositoryManager struct {
	inspectionExecutor GitCommandExecutor
	mutationExecutor   GitCommandExecutor
}

var (
	// ErrInspectionExecutorNotConfigured indicates the RepositoryManager was constructed without an inspection executor.
	ErrInspectionExecutorNotConfigured = errors.New(inspectionExecutorMissingMessageConstant)
	// ErrMutationExecutorNotConfigured indicates the RepositoryManager was constructed without a mutation executor.
	ErrMutationExecutorNotConfigured = errors.New(mutationExecutorMissingMessageConstant)
)

// InvalidRepositoryInputError indicates validation failures for repository operations.
type InvalidRepositoryInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidRepositoryInputError) Error() string {
	return fmt.Sprintf(invalidRepositoryInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryOperationName captures descriptive names for repository operations.
type RepositoryOperationName string

// RepositoryOperationError wraps execution failures for git operations.
type RepositoryOperationError struct {
	Operation RepositoryOperationName
	Cause     error
}

// Error describes the repository operation failure.
func (operationError RepositoryOperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(repositoryOperationErrorTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(repositoryOperationErrorWithCauseConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying error.
func (operationError RepositoryOperationError) Unwrap() error {
	return operationError.Cause
}

// NewRepositoryManager constructs a RepositoryManager for the provided executors.
func NewRepositoryManager(inspectionExecutor GitCommandExecutor, mutationExecutor GitCommandExecutor) (*RepositoryManager, error) {
	if inspectionExecutor == nil {
		return nil, ErrInspectionExecutorNotConfigured
	}
	if mutationExecutor == nil {
		return nil, ErrMutationExecutorNotConfigured
	}
	return &RepositoryManager{inspectionExecutor: inspectionExecutor, mutationExecutor: mutationExecutor}, nil
}

// IsWorkingTree reports whether the path is inside a git working tree.
func (manager *RepositoryManager) IsWorkingTree(executionContext context.Context, repositoryPath string) (bool, error) {
	trimmedPath, validationError := requireRepositoryPath(repositoryPath)
	if validationError != nil {
		return false, validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitInsideWorkTreeFlagConstant},
		WorkingDirectory: trimmedPath,
	}

	executionResult, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return false, nil
		}
		return false, RepositoryOperationError{Operation: workingTreeCheckOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput) == "true", nil
}

// HasRemote reports whether the named remote is configured for the repository.
func (manager *RepositoryManager) HasRemote(executionContext context.Context, repositoryPath string, remoteName string) (bool, error) {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return false, pathError
	}
	trimmedRemote, remoteError := requireRemoteName(remoteName)
	if remoteError != nil {
		return false, remoteError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitRemoteSubcommandConstant, gitRemoteGetURLSubcommandConstant, trimmedRemote},
		WorkingDirectory: trimmedPath,
	}

	_, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return false, nil
		}
		return false, RepositoryOperationError{Operation: remoteCheckOperationNameConstant, Cause: executionError}
	}

	return true, nil
}

// CurrentBranch resolves the checked-out branch name. An empty result indicates a detached HEAD.
func (manager *RepositoryManager) CurrentBranch(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, validationError := requireRepositoryPath(repositoryPath)
	if validationError != nil {
		return "", validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitSymbolicRefSubcommandConstant, gitQuietFlagConstant, gitShortFlagConstant, gitHeadReferenceConstant},
		WorkingDirectory: trimmedPath,
	}

	executionResult, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return "", nil
		}
		return "", RepositoryOperationError{Operation: currentBranchOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// UpstreamBranch resolves the upstream tracking branch for HEAD. An empty result indicates no upstream is configured.
func (manager *RepositoryManager) UpstreamBranch(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, validationError := requireRepositoryPath(repositoryPath)
	if validationError != nil {
		return "", validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitAbbrevRefFlagConstant, gitSymbolicFullNameFlagConstant, gitUpstreamReferenceConstant},
		WorkingDirectory: trimmedPath,
	}

	executionResult, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		if isCommandFailure(executionError) {
			return "", nil
		}
		return "", RepositoryOperationError{Operation: upstreamBranchOperationNameConstant, Cause: executionError}
	}

	return strings.TrimSpace(executionResult.StandardOutput), nil
}

// GitDirectory resolves the repository's git directory as an absolute path.
func (manager *RepositoryManager) GitDirectory(executionContext context.Context, repositoryPath string) (string, error) {
	trimmedPath, validationError := requireRepositoryPath(repositoryPath)
	if validationError != nil {
		return "", validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitRevParseSubcommandConstant, gitGitDirFlagConstant},
		WorkingDirectory: trimmedPath,
	}

	executionResult, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		return "", RepositoryOperationError{Operation: gitDirectoryOperationNameConstant, Cause: executionError}
	}

	gitDirectoryPath := strings.TrimSpace(executionResult.StandardOutput)
	if !filepath.IsAbs(gitDirectoryPath) {
		gitDirectoryPath = filepath.Join(trimmedPath, gitDirectoryPath)
	}

	return gitDirectoryPath, nil
}

// WorktreeStatus returns the porcelain status entries for the repository.
func (manager *RepositoryManager) WorktreeStatus(executionContext context.Context, repositoryPath string) ([]string, error) {
	trimmedPath, validationError := requireRepositoryPath(repositoryPath)
	if validationError != nil {
		return nil, validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        []string{gitStatusSubcommandConstant, gitStatusPorcelainFlagConstant},
		WorkingDirectory: trimmedPath,
	}

	executionResult, executionError := manager.inspectionExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		return nil, RepositoryOperationError{Operation: worktreeStatusOperationNameConstant, Cause: executionError}
	}

	trimmedOutput := strings.TrimSpace(executionResult.StandardOutput)
	if len(trimmedOutput) == 0 {
		return nil, nil
	}

	lines := strings.Split(trimmedOutput, "\n")
	entries := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			entries = append(entries, trimmed)
		}
	}
	return entries, nil
}

// FetchPrune fetches all refs from the remote, pruning remote-tracking refs removed upstream.
func (manager *RepositoryManager) FetchPrune(executionContext context.Context, repositoryPath string, remoteName string) error {
	return manager.runMutation(executionContext, fetchOperationNameConstant, repositoryPath, remoteName, func(trimmedRemote string) []string {
		return []string{gitFetchSubcommandConstant, gitPruneFlagConstant, trimmedRemote}
	})
}

// PullFastForwardOnly integrates the upstream branch, failing on diverged histories instead of merging.
func (manager *RepositoryManager) PullFastForwardOnly(executionContext context.Context, repositoryPath string, remoteName string) error {
	return manager.runMutation(executionContext, pullOperationNameConstant, repositoryPath, remoteName, func(trimmedRemote string) []string {
		return []string{gitPullSubcommandConstant, gitFastForwardOnlyFlagConstant, trimmedRemote}
	})
}

// Push publishes local commits on the current branch to its upstream.
func (manager *RepositoryManager) Push(executionContext context.Context, repositoryPath string, remoteName string) error {
	return manager.runMutation(executionContext, pushOperationNameConstant, repositoryPath, remoteName, func(trimmedRemote string) []string {
		return []string{gitPushSubcommandConstant, trimmedRemote}
	})
}

func (manager *RepositoryManager) runMutation(executionContext context.Context, operationName RepositoryOperationName, repositoryPath string, remoteName string, buildArguments func(string) []string) error {
	trimmedPath, pathError := requireRepositoryPath(repositoryPath)
	if pathError != nil {
		return pathError
	}
	trimmedRemote, remoteError := requireRemoteName(remoteName)
	if remoteError != nil {
		return remoteError
	}

	commandDetails := execshell.CommandDetails{
		Arguments:        buildArguments(trimmedRemote),
		WorkingDirectory: trimmedPath,
	}

	_, executionError := manager.mutationExecutor.ExecuteGit(executionContext, commandDetails)
	if executionError != nil {
		return RepositoryOperationError{Operation: operationName, Cause: executionError}
	}
	return nil
}

func requireRepositoryPath(repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return "", InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return trimmedPath, nil
}

func requireRemoteName(remoteName string) (string, error) {
	trimmedRemote := strings.TrimSpace(remoteName)
	if len(trimmedRemote) == 0 {
		return "", InvalidRepositoryInputError{FieldName: remoteNameFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return trimmedRemote, nil
}

func isCommandFailure(executionError error) bool {
	var commandFailure execshell.CommandFailedError
	return errors.As(executionError, &commandFailure)
}
