package syncrun

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	fetchStepNameConstant              = "fetch"
	pullStepNameConstant               = "pull"
	pushStepNameConstant               = "push"
	stepFailureErrorTemplateConstant   = "target %s failed during %s: %s"
	stepFailureNoCauseTemplateConstant = "target %s failed during %s"
)

// RepositoryMutator exposes the mutating repository operations the sync sequence performs.
type RepositoryMutator interface {
	FetchPrune(executionContext context.Context, repositoryPath string, remoteName string) error
	PullFastForwardOnly(executionContext context.Context, repositoryPath string, remoteName string) error
	Push(executionContext context.Context, repositoryPath string, remoteName string) error
}

// StepFailureError identifies the target and step at which a run aborted.
type StepFailureError struct {
	TargetName string
	StepName   string
	Cause      error
}

// Error describes the failed step.
func (stepError StepFailureError) Error() string {
	if stepError.Cause == nil {
		return fmt.Sprintf(stepFailureNoCauseTemplateConstant, stepError.TargetName, stepError.StepName)
	}
	return fmt.Sprintf(stepFailureErrorTemplateConstant, stepError.TargetName, stepError.StepName, stepError.Cause)
}

// Unwrap exposes the underlying error.
func (stepError StepFailureError) Unwrap() error {
	return stepError.Cause
}

// SyncService performs the fetch, integrate, publish sequence for one ready target.
type SyncService struct {
	repositoryMutator RepositoryMutator
	logger            *zap.Logger
}

// NewSyncService constructs a SyncService for the provided mutator.
func NewSyncService(repositoryMutator RepositoryMutator, logger *zap.Logger) (*SyncService, error) {
	if repositoryMutator == nil {
		return nil, ErrRepositoryManagerNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncService{repositoryMutator: repositoryMutator, logger: logger}, nil
}

// Synchronize runs fetch, fast-forward-only pull, and push in fixed order,
// announcing each step as it begins. The first failing step aborts the
// sequence.
func (service *SyncService) Synchronize(executionContext context.Context, target Target, remoteName string) error {
	synchronizationSteps := []struct {
		stepName string
		run      func() error
	}{
		{stepName: fetchStepNameConstant, run: func() error {
			return service.repositoryMutator.FetchPrune(executionContext, target.Path, remoteName)
		}},
		{stepName: pullStepNameConstant, run: func() error {
			return service.repositoryMutator.PullFastForwardOnly(executionContext, target.Path, remoteName)
		}},
		{stepName: pushStepNameConstant, run: func() error {
			return service.repositoryMutator.Push(executionContext, target.Path, remoteName)
		}},
	}

	for _, synchronizationStep := range synchronizationSteps {
		service.logger.Info(synchronizationStep.stepName, zap.String(targetNameFieldNameConstant, target.Name))
		if stepError := synchronizationStep.run(); stepError != nil {
			return StepFailureError{TargetName: target.Name, StepName: synchronizationStep.stepName, Cause: stepError}
		}
	}

	return nil
}
