package interpreter

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tyemirov/labsync/internal/filesystem"
)

const (
	windowsOperatingSystemNameConstant   = "windows"
	unixExecutableDirectoryNameConstant  = "bin"
	windowsExecutableDirectoryConstant   = "Scripts"
	windowsExecutableSuffixConstant      = ".exe"
	repositoryPathRequiredMessage        = "repository path required"
	fallbackCommandRequiredMessage       = "fallback command required"
	missingCommandErrorTemplateConstant  = "missing command: %s"
	unixExecutablePermissionMaskConstant = 0o111
)

var (
	// ErrRepositoryPathRequired indicates the resolver was invoked without a repository path.
	ErrRepositoryPathRequired = errors.New(repositoryPathRequiredMessage)
	// ErrFallbackCommandRequired indicates the resolver was invoked without a fallback command.
	ErrFallbackCommandRequired = errors.New(fallbackCommandRequiredMessage)
)

// MissingCommandError indicates the fallback command is not resolvable on the search path.
type MissingCommandError struct {
	CommandName string
}

// Error describes the missing command.
func (missingError MissingCommandError) Error() string {
	return fmt.Sprintf(missingCommandErrorTemplateConstant, missingError.CommandName)
}

// LookPathFunc resolves a command name against the current search path.
type LookPathFunc func(commandName string) (string, error)

// Resolver selects the interpreter used to run a repository's post-sync hook.
//
// Project-local isolation beats the machine-global default: the first
// candidate sub-path holding an executable interpreter wins, and only when
// none match does the fallback command on the search path apply.
type Resolver struct {
	fileSystem      filesystem.FileSystem
	lookPath        LookPathFunc
	operatingSystem string
}

// NewResolver constructs a Resolver with OS-backed defaults for absent dependencies.
func NewResolver(fileSystem filesystem.FileSystem, lookPath LookPathFunc) *Resolver {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Resolver{fileSystem: fileSystem, lookPath: lookPath, operatingSystem: runtime.GOOS}
}

// Resolve returns the interpreter path for the repository: the first existing
// project-local interpreter under the candidate sub-paths, else the fallback
// command when it is resolvable on the search path.
func (resolver *Resolver) Resolve(repositoryPath string, candidateSubPaths []string, fallbackCommand string) (string, error) {
	trimmedRepositoryPath := strings.TrimSpace(repositoryPath)
	if len(trimmedRepositoryPath) == 0 {
		return "", ErrRepositoryPathRequired
	}

	trimmedFallbackCommand := strings.TrimSpace(fallbackCommand)
	if len(trimmedFallbackCommand) == 0 {
		return "", ErrFallbackCommandRequired
	}

	for _, candidateSubPath := range candidateSubPaths {
		trimmedCandidate := strings.TrimSpace(candidateSubPath)
		if len(trimmedCandidate) == 0 {
			continue
		}

		interpreterPath := resolver.localInterpreterPath(trimmedRepositoryPath, trimmedCandidate, trimmedFallbackCommand)
		if resolver.isExecutableFile(interpreterPath) {
			return interpreterPath, nil
		}
	}

	resolvedFallbackPath, lookPathError := resolver.lookPath(trimmedFallbackCommand)
	if lookPathError != nil {
		return "", MissingCommandError{CommandName: trimmedFallbackCommand}
	}

	return resolvedFallbackPath, nil
}

func (resolver *Resolver) localInterpreterPath(repositoryPath string, candidateSubPath string, fallbackCommand string) string {
	if resolver.operatingSystem == windowsOperatingSystemNameConstant {
		return filepath.Join(repositoryPath, candidateSubPath, windowsExecutableDirectoryConstant, fallbackCommand+windowsExecutableSuffixConstant)
	}
	return filepath.Join(repositoryPath, candidateSubPath, unixExecutableDirectoryNameConstant, fallbackCommand)
}

func (resolver *Resolver) isExecutableFile(candidatePath string) bool {
	fileInformation, statError := resolver.fileSystem.Stat(candidatePath)
	if statError != nil {
		return false
	}
	if fileInformation.IsDir() {
		return false
	}
	if resolver.operatingSystem == windowsOperatingSystemNameConstant {
		return true
	}
	return fileInformation.Mode().Perm()&fs.FileMode(unixExecutablePermissionMaskConstant) != 0
}
