package syncrun

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tyemirov/labsync/internal/filesystem"
)

const (
	repositoryManagerMissingMessageConstant = "repository manager not configured"
	missingRemoteDescriptionTemplate        = "missing remote '%s'"
	notRepositoryDescriptionConstant        = "not a repository"
	detachedHeadDescriptionConstant         = "detached HEAD"
	noUpstreamDescriptionConstant           = "no upstream configured"
	inProgressDescriptionConstant           = "in-progress operation"
	dirtyWorktreeDescriptionConstant        = "uncommitted changes"
)

// ErrRepositoryManagerNotConfigured indicates a verifier or service was constructed without a repository manager.
var ErrRepositoryManagerNotConfigured = errors.New(repositoryManagerMissingMessageConstant)

// inProgressMarkerNames lists git directory entries left behind by unfinished
// rebase, merge, cherry-pick, and revert operations.
var inProgressMarkerNames = []string{
	"rebase-merge",
	"rebase-apply",
	"MERGE_HEAD",
	"CHERRY_PICK_HEAD",
	"REVERT_HEAD",
}

// ReadinessFailureReason enumerates why a target is unsafe to synchronize.
type ReadinessFailureReason string

// Readiness failure reasons, in the order the checks run.
const (
	ReadinessFailureNotARepository      ReadinessFailureReason = "not_a_repository"
	ReadinessFailureMissingRemote       ReadinessFailureReason = "missing_remote"
	ReadinessFailureDetachedHead        ReadinessFailureReason = "detached_head"
	ReadinessFailureNoUpstream          ReadinessFailureReason = "no_upstream"
	ReadinessFailureOperationInProgress ReadinessFailureReason = "operation_in_progress"
	ReadinessFailureDirtyWorktree       ReadinessFailureReason = "dirty_worktree"
)

// ReadinessResult captures the verification outcome for one target.
type ReadinessResult struct {
	TargetName    string
	Ready         bool
	Reason        ReadinessFailureReason
	RemoteName    string
	StatusEntries []string
}

// FailureDescription renders the operator-facing failure reason.
func (result ReadinessResult) FailureDescription() string {
	switch result.Reason {
	case ReadinessFailureNotARepository:
		return notRepositoryDescriptionConstant
	case ReadinessFailureMissingRemote:
		return fmt.Sprintf(missingRemoteDescriptionTemplate, result.RemoteName)
	case ReadinessFailureDetachedHead:
		return detachedHeadDescriptionConstant
	case ReadinessFailureNoUpstream:
		return noUpstreamDescriptionConstant
	case ReadinessFailureOperationInProgress:
		return inProgressDescriptionConstant
	case ReadinessFailureDirtyWorktree:
		return dirtyWorktreeDescriptionConstant
	default:
		return string(result.Reason)
	}
}

// RepositoryInspector exposes the read-only repository operations readiness verification relies on.
type RepositoryInspector interface {
	IsWorkingTree(executionContext context.Context, repositoryPath string) (bool, error)
	HasRemote(executionContext context.Context, repositoryPath string, remoteName string) (bool, error)
	CurrentBranch(executionContext context.Context, repositoryPath string) (string, error)
	UpstreamBranch(executionContext context.Context, repositoryPath string) (string, error)
	GitDirectory(executionContext context.Context, repositoryPath string) (string, error)
	WorktreeStatus(executionContext context.Context, repositoryPath string) ([]string, error)
}

// ReadinessVerifier decides whether a target is safe to synchronize.
//
// Verification is read-only and always runs live: dry-run mode governs
// mutation, not inspection.
type ReadinessVerifier struct {
	repositoryInspector RepositoryInspector
	fileSystem          filesystem.FileSystem
}

// NewReadinessVerifier constructs a verifier for the provided inspector.
func NewReadinessVerifier(repositoryInspector RepositoryInspector, fileSystem filesystem.FileSystem) (*ReadinessVerifier, error) {
	if repositoryInspector == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &ReadinessVerifier{repositoryInspector: repositoryInspector, fileSystem: fileSystem}, nil
}

// Verify runs the readiness checks in order and reports the first failure.
func (verifier *ReadinessVerifier) Verify(executionContext context.Context, target Target, remoteName string) (ReadinessResult, error) {
	failure := func(reason ReadinessFailureReason) ReadinessResult {
		return ReadinessResult{TargetName: target.Name, Reason: reason, RemoteName: remoteName}
	}

	insideWorkTree, workTreeError := verifier.repositoryInspector.IsWorkingTree(executionContext, target.Path)
	if workTreeError != nil {
		return ReadinessResult{}, workTreeError
	}
	if !insideWorkTree {
		return failure(ReadinessFailureNotARepository), nil
	}

	remoteConfigured, remoteError := verifier.repositoryInspector.HasRemote(executionContext, target.Path, remoteName)
	if remoteError != nil {
		return ReadinessResult{}, remoteError
	}
	if !remoteConfigured {
		return failure(ReadinessFailureMissingRemote), nil
	}

	currentBranch, branchError := verifier.repositoryInspector.CurrentBranch(executionContext, target.Path)
	if branchError != nil {
		return ReadinessResult{}, branchError
	}
	if len(currentBranch) == 0 {
		return failure(ReadinessFailureDetachedHead), nil
	}

	upstreamBranch, upstreamError := verifier.repositoryInspector.UpstreamBranch(executionContext, target.Path)
	if upstreamError != nil {
		return ReadinessResult{}, upstreamError
	}
	if len(upstreamBranch) == 0 {
		return failure(ReadinessFailureNoUpstream), nil
	}

	operationInProgress, markerError := verifier.operationInProgress(executionContext, target.Path)
	if markerError != nil {
		return ReadinessResult{}, markerError
	}
	if operationInProgress {
		return failure(ReadinessFailureOperationInProgress), nil
	}

	statusEntries, statusError := verifier.repositoryInspector.WorktreeStatus(executionContext, target.Path)
	if statusError != nil {
		return ReadinessResult{}, statusError
	}
	if len(statusEntries) > 0 {
		dirtyResult := failure(ReadinessFailureDirtyWorktree)
		dirtyResult.StatusEntries = statusEntries
		return dirtyResult, nil
	}

	return ReadinessResult{TargetName: target.Name, Ready: true, RemoteName: remoteName}, nil
}

func (verifier *ReadinessVerifier) operationInProgress(executionContext context.Context, repositoryPath string) (bool, error) {
	gitDirectory, gitDirectoryError := verifier.repositoryInspector.GitDirectory(executionContext, repositoryPath)
	if gitDirectoryError != nil {
		return false, gitDirectoryError
	}

	for _, markerName := range inProgressMarkerNames {
		if _, statError := verifier.fileSystem.Stat(filepath.Join(gitDirectory, markerName)); statError == nil {
			return true, nil
		}
	}
	return false, nil
}
