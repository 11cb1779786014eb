package syncrun

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/labsync/internal/filesystem"
)

const (
	emptyTargetSetMessageConstant         = "no synchronization targets resolved"
	requiredTargetMissingTemplateConstant = "required target %s has no directory at %s"
	optionalTargetSkippedMessageConstant  = "optional target absent; skipping"
	targetNameFieldNameConstant           = "target"
	targetPathFieldNameConstant           = "path"
	userHomeShorthandPrefixConstant       = "~" + string(os.PathSeparator)
	rootResolutionErrorTemplateConstant   = "unable to resolve root directory %s: %w"
	targetNotADirectoryTemplateConstant   = "required target %s path %s is not a directory"
)

// Target identifies one repository to synchronize.
type Target struct {
	Name     string
	Path     string
	Required bool
}

// ErrEmptyTargetSet indicates that resolution produced no targets to act upon.
var ErrEmptyTargetSet = errors.New(emptyTargetSetMessageConstant)

// RequiredTargetMissingError indicates a required target's directory does not exist.
type RequiredTargetMissingError struct {
	TargetName string
	TargetPath string
}

// Error describes the missing required target.
func (missingError RequiredTargetMissingError) Error() string {
	return fmt.Sprintf(requiredTargetMissingTemplateConstant, missingError.TargetName, missingError.TargetPath)
}

// RequiredTargetNotDirectoryError indicates a required target path exists but is not a directory.
type RequiredTargetNotDirectoryError struct {
	TargetName string
	TargetPath string
}

// Error describes the conflicting path.
func (conflictError RequiredTargetNotDirectoryError) Error() string {
	return fmt.Sprintf(targetNotADirectoryTemplateConstant, conflictError.TargetName, conflictError.TargetPath)
}

// TargetResolver builds the ordered target set from configuration.
type TargetResolver struct {
	fileSystem filesystem.FileSystem
	logger     *zap.Logger
}

// NewTargetResolver constructs a TargetResolver with OS-backed defaults for absent dependencies.
func NewTargetResolver(fileSystem filesystem.FileSystem, logger *zap.Logger) *TargetResolver {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TargetResolver{fileSystem: fileSystem, logger: logger}
}

// ResolveTargetSet returns all required targets followed by all present
// optional targets, each in configured order. A required target without a
// directory aborts resolution; an absent optional target is logged and
// skipped.
func (resolver *TargetResolver) ResolveTargetSet(configuration Configuration) ([]Target, error) {
	rootDirectory, rootError := resolver.resolveRootDirectory(configuration.Root)
	if rootError != nil {
		return nil, rootError
	}

	targetSet := make([]Target, 0, len(configuration.RequiredTargets)+len(configuration.OptionalTargets))

	for _, targetName := range configuration.RequiredTargets {
		targetPath := filepath.Join(rootDirectory, targetName)
		directoryInformation, statError := resolver.fileSystem.Stat(targetPath)
		if statError != nil {
			return nil, RequiredTargetMissingError{TargetName: targetName, TargetPath: targetPath}
		}
		if !directoryInformation.IsDir() {
			return nil, RequiredTargetNotDirectoryError{TargetName: targetName, TargetPath: targetPath}
		}
		targetSet = append(targetSet, Target{Name: targetName, Path: targetPath, Required: true})
	}

	for _, targetName := range configuration.OptionalTargets {
		targetPath := filepath.Join(rootDirectory, targetName)
		directoryInformation, statError := resolver.fileSystem.Stat(targetPath)
		if statError != nil || !directoryInformation.IsDir() {
			resolver.logger.Info(optionalTargetSkippedMessageConstant,
				zap.String(targetNameFieldNameConstant, targetName),
				zap.String(targetPathFieldNameConstant, targetPath),
			)
			continue
		}
		targetSet = append(targetSet, Target{Name: targetName, Path: targetPath, Required: false})
	}

	if len(targetSet) == 0 {
		return nil, ErrEmptyTargetSet
	}

	return targetSet, nil
}

func (resolver *TargetResolver) resolveRootDirectory(configuredRoot string) (string, error) {
	expandedRoot := configuredRoot
	if strings.HasPrefix(expandedRoot, userHomeShorthandPrefixConstant) {
		userHomeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf(rootResolutionErrorTemplateConstant, configuredRoot, homeError)
		}
		expandedRoot = filepath.Join(userHomeDirectory, expandedRoot[len(userHomeShorthandPrefixConstant):])
	}

	absoluteRoot, absoluteError := resolver.fileSystem.Abs(expandedRoot)
	if absoluteError != nil {
		return "", fmt.Errorf(rootResolutionErrorTemplateConstant, configuredRoot, absoluteError)
	}
	return absoluteRoot, nil
}
