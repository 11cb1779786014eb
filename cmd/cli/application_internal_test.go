package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/labsync/internal/execshell"
)

const (
	fixtureRemoteNameConstant          = "origin"
	fixtureBranchNameConstant          = "main"
	fixtureUpstreamNameConstant        = "origin/main"
	fixtureHookScriptPathConstant      = "scripts/post_sync.py"
	fixtureDirtyStatusOutputConstant   = " M notes.md\n"
	fixtureVersionOverrideConstant     = "v9.9.9"
	fixtureRecordedCommandKeyTemplate  = "%s %s"
	fixtureInterpreterRelativePath     = ".venv/bin/python3"
	fixtureInterpreterContentConstant  = "#!/bin/sh\n"
	fixtureHookScriptContentConstant   = "print('synced')\n"
	fixtureConfigurationFileName       = "labsync-config.yaml"
	fixtureDryRunFetchFragmentConstant = "git fetch --prune origin"
)

type scriptedCommandRunner struct {
	recordedCommands []execshell.ShellCommand
	dirtyTargetPaths map[string]bool
}

func (runner *scriptedCommandRunner) Run(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)

	if command.Name != execshell.CommandGit {
		return execshell.ExecutionResult{}, nil
	}

	arguments := command.Details.Arguments
	if len(arguments) == 0 {
		return execshell.ExecutionResult{}, nil
	}

	switch arguments[0] {
	case "rev-parse":
		switch arguments[1] {
		case "--is-inside-work-tree":
			return execshell.ExecutionResult{StandardOutput: "true\n"}, nil
		case "--abbrev-ref":
			return execshell.ExecutionResult{StandardOutput: fixtureUpstreamNameConstant + "\n"}, nil
		case "--git-dir":
			return execshell.ExecutionResult{StandardOutput: ".git\n"}, nil
		}
	case "symbolic-ref":
		return execshell.ExecutionResult{StandardOutput: fixtureBranchNameConstant + "\n"}, nil
	case "status":
		if runner.dirtyTargetPaths[command.Details.WorkingDirectory] {
			return execshell.ExecutionResult{StandardOutput: fixtureDirtyStatusOutputConstant}, nil
		}
		return execshell.ExecutionResult{}, nil
	}

	return execshell.ExecutionResult{}, nil
}

func (runner *scriptedCommandRunner) mutationSummaries() []string {
	summaries := make([]string, 0, len(runner.recordedCommands))
	for _, recordedCommand := range runner.recordedCommands {
		if recordedCommand.Name != execshell.CommandGit {
			summaries = append(summaries, fmt.Sprintf(fixtureRecordedCommandKeyTemplate, filepath.Base(recordedCommand.Details.WorkingDirectory), "hook"))
			continue
		}
		if len(recordedCommand.Details.Arguments) == 0 {
			continue
		}
		switch recordedCommand.Details.Arguments[0] {
		case "fetch", "pull", "push":
			summaries = append(summaries, fmt.Sprintf(fixtureRecordedCommandKeyTemplate, filepath.Base(recordedCommand.Details.WorkingDirectory), recordedCommand.Details.Arguments[0]))
		}
	}
	return summaries
}

func createSynchronizationFixture(testInstance *testing.T, targetNames ...string) (string, string) {
	testInstance.Helper()

	rootDirectory := testInstance.TempDir()
	for _, targetName := range targetNames {
		targetPath := filepath.Join(rootDirectory, targetName)

		hookScriptPath := filepath.Join(targetPath, fixtureHookScriptPathConstant)
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(hookScriptPath), 0o755))
		require.NoError(testInstance, os.WriteFile(hookScriptPath, []byte(fixtureHookScriptContentConstant), 0o644))

		interpreterPath := filepath.Join(targetPath, fixtureInterpreterRelativePath)
		require.NoError(testInstance, os.MkdirAll(filepath.Dir(interpreterPath), 0o755))
		require.NoError(testInstance, os.WriteFile(interpreterPath, []byte(fixtureInterpreterContentConstant), 0o755))
	}

	requiredTargets := make([]string, 0, len(targetNames))
	requiredTargets = append(requiredTargets, targetNames...)

	configurationDocument := map[string]any{
		"common": map[string]any{
			"log_level":  "error",
			"log_format": "structured",
		},
		"sync": map[string]any{
			"root":                   rootDirectory,
			"required_targets":       requiredTargets,
			"remote":                 fixtureRemoteNameConstant,
			"hook_script":            fixtureHookScriptPathConstant,
			"interpreter_candidates": []string{".venv"},
			"interpreter_fallback":   "python3",
		},
	}
	configurationContent, marshalError := yaml.Marshal(configurationDocument)
	require.NoError(testInstance, marshalError)

	configurationFilePath := filepath.Join(testInstance.TempDir(), fixtureConfigurationFileName)
	require.NoError(testInstance, os.WriteFile(configurationFilePath, configurationContent, 0o600))

	return rootDirectory, configurationFilePath
}

func newTestApplication(commandRunner execshell.CommandRunner, dryRunOutput *bytes.Buffer) *Application {
	application := NewApplication()
	application.liveCommandRunner = commandRunner
	if dryRunOutput != nil {
		application.dryRunOutputWriter = dryRunOutput
	}
	application.exitFunction = func(int) {}
	return application
}

func TestApplicationRunSynchronizesConfiguredTargets(testInstance *testing.T) {
	rootDirectory, configurationFilePath := createSynchronizationFixture(testInstance, "alpha", "beta")

	commandRunner := &scriptedCommandRunner{}
	application := newTestApplication(commandRunner, nil)
	application.rootCommand.SetArgs([]string{"--config", configurationFilePath})

	require.NoError(testInstance, application.rootCommand.Execute())

	require.Equal(testInstance, []string{
		"alpha fetch", "alpha pull", "alpha push", "alpha hook",
		"beta fetch", "beta pull", "beta push", "beta hook",
	}, commandRunner.mutationSummaries())

	hookInvocations := 0
	for _, recordedCommand := range commandRunner.recordedCommands {
		if recordedCommand.Name == execshell.CommandGit {
			continue
		}
		hookInvocations++
		require.Equal(testInstance, []string{fixtureHookScriptPathConstant}, recordedCommand.Details.Arguments)
		require.True(testInstance, strings.HasPrefix(recordedCommand.Details.WorkingDirectory, rootDirectory))
		require.True(testInstance, strings.HasSuffix(string(recordedCommand.Name), fixtureInterpreterRelativePath))
	}
	require.Equal(testInstance, 2, hookInvocations)
}

func TestApplicationAbortsWithoutMutationWhenTargetDirty(testInstance *testing.T) {
	rootDirectory, configurationFilePath := createSynchronizationFixture(testInstance, "alpha", "beta")

	commandRunner := &scriptedCommandRunner{dirtyTargetPaths: map[string]bool{
		filepath.Join(rootDirectory, "beta"): true,
	}}
	application := newTestApplication(commandRunner, nil)
	application.rootCommand.SetArgs([]string{"--config", configurationFilePath})

	executionError := application.rootCommand.Execute()
	require.Error(testInstance, executionError)
	require.Contains(testInstance, executionError.Error(), "target beta not ready: uncommitted changes")
	require.Empty(testInstance, commandRunner.mutationSummaries())
}

func TestApplicationDryRunRendersMutationsWithoutExecuting(testInstance *testing.T) {
	_, configurationFilePath := createSynchronizationFixture(testInstance, "alpha")

	dryRunOutput := &bytes.Buffer{}
	commandRunner := &scriptedCommandRunner{}
	application := newTestApplication(commandRunner, dryRunOutput)
	application.rootCommand.SetArgs([]string{"--config", configurationFilePath, "--dry-run"})

	require.NoError(testInstance, application.rootCommand.Execute())

	require.Empty(testInstance, commandRunner.mutationSummaries())

	renderedOutput := dryRunOutput.String()
	fetchIndex := strings.Index(renderedOutput, fixtureDryRunFetchFragmentConstant)
	pullIndex := strings.Index(renderedOutput, "git pull --ff-only origin")
	pushIndex := strings.Index(renderedOutput, "git push origin")
	hookIndex := strings.Index(renderedOutput, fixtureHookScriptPathConstant)
	require.GreaterOrEqual(testInstance, fetchIndex, 0)
	require.Greater(testInstance, pullIndex, fetchIndex)
	require.Greater(testInstance, pushIndex, pullIndex)
	require.Greater(testInstance, hookIndex, pushIndex)
	require.Contains(testInstance, renderedOutput, "DRY-RUN: (cd ")
}

func TestApplicationRemoteFlagOverridesConfiguredRemote(testInstance *testing.T) {
	_, configurationFilePath := createSynchronizationFixture(testInstance, "alpha")

	dryRunOutput := &bytes.Buffer{}
	commandRunner := &scriptedCommandRunner{}
	application := newTestApplication(commandRunner, dryRunOutput)
	application.rootCommand.SetArgs([]string{"--config", configurationFilePath, "--dry-run", "--remote", "upstream"})

	require.NoError(testInstance, application.rootCommand.Execute())
	require.Contains(testInstance, dryRunOutput.String(), "git fetch --prune upstream")
	require.NotContains(testInstance, dryRunOutput.String(), fixtureDryRunFetchFragmentConstant)
}

func TestApplicationInitializesLocalConfigurationFile(testInstance *testing.T) {
	workingDirectory := testInstance.TempDir()
	previousWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)
	require.NoError(testInstance, os.Chdir(workingDirectory))
	testInstance.Cleanup(func() { _ = os.Chdir(previousWorkingDirectory) })

	application := newTestApplication(&scriptedCommandRunner{}, nil)
	application.rootCommand.SetArgs([]string{"--init=local"})
	require.NoError(testInstance, application.rootCommand.Execute())

	writtenContent, readError := os.ReadFile(filepath.Join(workingDirectory, configurationFileNameConstant))
	require.NoError(testInstance, readError)
	embeddedContent, _ := EmbeddedDefaultConfiguration()
	require.Equal(testInstance, embeddedContent, writtenContent)

	repeatApplication := newTestApplication(&scriptedCommandRunner{}, nil)
	repeatApplication.rootCommand.SetArgs([]string{"--init=local"})
	repeatError := repeatApplication.rootCommand.Execute()
	require.Error(testInstance, repeatError)
	require.Contains(testInstance, repeatError.Error(), "already exists")

	forcedApplication := newTestApplication(&scriptedCommandRunner{}, nil)
	forcedApplication.rootCommand.SetArgs([]string{"--init=local", "--force"})
	require.NoError(testInstance, forcedApplication.rootCommand.Execute())
}

func TestApplicationInitializationScopeArgumentNormalization(testInstance *testing.T) {
	normalizedArguments := normalizeInitializationScopeArguments([]string{"--init", "--dry-run"})
	require.Equal(testInstance, []string{"--init=local", "--dry-run"}, normalizedArguments)

	normalizedArguments = normalizeInitializationScopeArguments([]string{"--init", "user"})
	require.Equal(testInstance, []string{"--init", "user"}, normalizedArguments)

	require.Nil(testInstance, normalizeInitializationScopeArguments(nil))
}

func TestApplicationVersionCommandPrintsResolvedVersion(testInstance *testing.T) {
	application := newTestApplication(&scriptedCommandRunner{}, nil)
	application.versionResolver = func(context.Context) string { return fixtureVersionOverrideConstant }

	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)
	originalStdout := os.Stdout
	os.Stdout = pipeWriter

	application.rootCommand.SetArgs([]string{"version"})
	executionError := application.rootCommand.Execute()

	os.Stdout = originalStdout
	require.NoError(testInstance, pipeWriter.Close())

	capturedOutput := make([]byte, 128)
	readCount, _ := pipeReader.Read(capturedOutput)
	require.NoError(testInstance, pipeReader.Close())

	require.NoError(testInstance, executionError)
	require.Contains(testInstance, string(capturedOutput[:readCount]), fixtureVersionOverrideConstant)
}
