package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/labsync/internal/execshell"
	"github.com/tyemirov/labsync/internal/gitrepo"
	"github.com/tyemirov/labsync/internal/syncrun"
	"github.com/tyemirov/labsync/internal/utils"
	flagutils "github.com/tyemirov/labsync/internal/utils/flags"
	"github.com/tyemirov/labsync/internal/version"
)

const (
	applicationNameConstant             = "labsync"
	applicationShortDescriptionConstant = "Synchronize a fixed set of project repositories"
	applicationLongDescriptionConstant  = "labsync verifies every configured repository is safe to synchronize, then fetches, fast-forwards, pushes, and runs each repository's post-sync hook. No repository is touched unless all of them pass verification."

	configFileFlagNameConstant  = "config"
	configFileFlagUsageConstant = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant    = "log-level"
	logLevelFlagUsageConstant   = "Override the configured log level."
	logFormatFlagNameConstant   = "log-format"
	logFormatFlagUsageConstant  = "Override the configured log format (structured or console)."

	configurationInitializationFlagNameConstant                      = "init"
	configurationInitializationFlagUsageConstant                     = "Write the embedded default configuration to LOCAL (./config.yaml) or user ($XDG_CONFIG_HOME/labsync/config.yaml, falling back to $HOME/.labsync/config.yaml)."
	configurationInitializationDefaultScopeConstant                  = "local"
	configurationInitializationForceFlagNameConstant                 = "force"
	configurationInitializationForceFlagUsageConstant                = "Overwrite an existing configuration file when initializing."
	configurationInitializationScopeLocalConstant                    = "local"
	configurationInitializationScopeUserConstant                     = "user"
	configurationInitializationUnsupportedScopeTemplateConstant      = "unsupported initialization scope %q"
	configurationInitializationWorkingDirectoryErrorTemplateConstant = "unable to determine working directory: %w"
	configurationInitializationHomeDirectoryErrorTemplateConstant    = "unable to determine user home directory: %w"
	configurationInitializationContentUnavailableErrorConstant       = "embedded configuration content is unavailable"
	configurationInitializationDirectoryErrorTemplateConstant        = "unable to ensure configuration directory %s: %w"
	configurationInitializationExistingFileTemplateConstant          = "configuration file already exists at %s (use --force to overwrite)"
	configurationInitializationWriteErrorTemplateConstant            = "unable to write configuration file %s: %w"
	configurationInitializationSuccessMessageConstant                = "configuration file created"

	commonConfigurationKeyConstant   = "common"
	commonLogLevelConfigKeyConstant  = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant = commonConfigurationKeyConstant + ".log_format"
	commonDryRunConfigKeyConstant    = commonConfigurationKeyConstant + ".dry_run"
	syncRemoteConfigKeyConstant      = "sync.remote"

	environmentPrefixConstant                          = "LABSYNC"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationFileNameConstant                      = configurationNameConstant + "." + configurationTypeConstant
	configurationDirectoryPermissionConstant           = 0o755
	configurationFilePermissionConstant                = 0o600
	defaultConfigurationSearchPathConstant             = "."
	userConfigurationDirectoryNameConstant             = ".labsync"
	xdgConfigurationDirectoryNameConstant              = "labsync"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"
	configurationSearchPathEnvironmentVariableConstant = "LABSYNC_CONFIG_SEARCH_PATH"

	configurationLoadErrorTemplateConstant          = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant             = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                 = "unable to flush logger: %w"
	configurationInitializedMessageConstant         = "configuration initialized"
	configurationInitializedConsoleTemplateConstant = "%s | log level=%s | log format=%s | config file=%s"
	configurationLogLevelFieldConstant              = "log_level"
	configurationLogFormatFieldConstant             = "log_format"
	configurationFileFieldConstant                  = "config_file"
	configurationFilePathFieldConstant              = "path"
	defaultRemoteNameConstant                       = "origin"

	versionFlagNameConstant                = "version"
	versionFlagUsageConstant               = "Print the application version and exit"
	versionOutputTemplateConstant          = "labsync version: %s\n"
	versionCommandUseNameConstant          = "version"
	versionCommandShortDescriptionConstant = "Print the labsync version"
	versionCommandLongDescriptionConstant  = "version prints the current labsync release identifier."
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Sync   syncrun.Configuration          `mapstructure:"sync"`
}

// ApplicationCommonConfiguration stores logging and execution defaults.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	DryRun    bool   `mapstructure:"dry_run"`
}

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand                       *cobra.Command
	configurationLoader               *utils.ConfigurationLoader
	loggerFactory                     loggerOutputsFactory
	logger                            *zap.Logger
	consoleLogger                     *zap.Logger
	configuration                     ApplicationConfiguration
	configurationMetadata             utils.LoadedConfiguration
	configurationFilePath             string
	logLevelFlagValue                 string
	logFormatFlagValue                string
	commandContextAccessor            utils.CommandContextAccessor
	configurationInitializationScope  string
	configurationInitializationForced bool
	versionFlag                       bool
	versionResolver                   func(context.Context) string
	exitFunction                      func(int)
	liveCommandRunner                 execshell.CommandRunner
	dryRunOutputWriter                io.Writer
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		liveCommandRunner:      execshell.NewOSCommandRunner(),
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)

	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}

			versionRequested := application.versionFlag
			if command != nil {
				if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
					versionRequested = flagValue
				}
			}

			if versionRequested {
				application.printVersion(command.Context())
				application.exitFunction(0)
			}

			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(
		&application.configurationInitializationScope,
		configurationInitializationFlagNameConstant,
		"",
		configurationInitializationFlagUsageConstant,
	)
	cobraCommand.PersistentFlags().BoolVar(
		&application.configurationInitializationForced,
		configurationInitializationForceFlagNameConstant,
		false,
		configurationInitializationForceFlagUsageConstant,
	)
	cobraCommand.PersistentFlags().Bool(flagutils.DryRunFlagName, false, flagutils.DryRunFlagUsage)
	cobraCommand.PersistentFlags().String(flagutils.RemoteFlagName, "", flagutils.RemoteFlagUsage)
	cobraCommand.PersistentFlags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	versionCommand := &cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command.Context())
			return nil
		},
	}
	cobraCommand.AddCommand(versionCommand)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	normalizedArguments := normalizeInitializationScopeArguments(os.Args[1:])
	application.rootCommand.SetArgs(normalizedArguments)

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func normalizeInitializationScopeArguments(arguments []string) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalizedArguments := make([]string, 0, len(arguments))
	flagPrefix := "--" + configurationInitializationFlagNameConstant

	for index := 0; index < len(arguments); index++ {
		currentArgument := arguments[index]

		if currentArgument == flagPrefix {
			nextIndex := index + 1
			if nextIndex >= len(arguments) || strings.HasPrefix(arguments[nextIndex], "-") {
				normalizedArguments = append(
					normalizedArguments,
					fmt.Sprintf("%s=%s", flagPrefix, configurationInitializationDefaultScopeConstant),
				)
				continue
			}
		}

		normalizedArguments = append(normalizedArguments, currentArgument)
	}

	return normalizedArguments
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	overrideValue := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(overrideValue) == 0 {
		searchPaths := []string{defaultConfigurationSearchPathConstant}
		return append(searchPaths, application.resolveUserConfigurationDirectoryPaths()...)
	}

	overridePaths := strings.FieldsFunc(overrideValue, func(candidate rune) bool {
		return candidate == os.PathListSeparator
	})

	cleanedPaths := make([]string, 0, len(overridePaths))
	for _, pathCandidate := range overridePaths {
		trimmedCandidate := strings.TrimSpace(pathCandidate)
		if len(trimmedCandidate) == 0 {
			continue
		}
		cleanedPaths = append(cleanedPaths, trimmedCandidate)
	}

	if len(cleanedPaths) == 0 {
		return []string{defaultConfigurationSearchPathConstant}
	}

	return cleanedPaths
}

func (application *Application) resolveUserConfigurationDirectoryPaths() []string {
	userConfigurationDirectoryPaths := make([]string, 0, 2)

	xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant))
	if len(xdgConfigHome) > 0 {
		userConfigurationDirectoryPaths = append(userConfigurationDirectoryPaths, filepath.Join(xdgConfigHome, xdgConfigurationDirectoryNameConstant))
	}

	userHomeDirectoryPath, userHomeDirectoryError := os.UserHomeDir()
	if userHomeDirectoryError == nil && len(strings.TrimSpace(userHomeDirectoryPath)) > 0 {
		userConfigurationDirectoryPaths = append(userConfigurationDirectoryPaths, filepath.Join(userHomeDirectoryPath, userConfigurationDirectoryNameConstant))
	}

	return userConfigurationDirectoryPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
		commonDryRunConfigKeyConstant:    false,
		syncRemoteConfigKeyConstant:      defaultRemoteNameConstant,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}

	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithExecutionFlags(updatedContext, application.collectExecutionFlags(command))
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)

		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	if !strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	if application.humanReadableLoggingEnabled() {
		bannerMessage := fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
		)
		application.consoleLogger.Debug(bannerMessage)
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	rootCommand := command.Root()
	if rootCommand == nil {
		return false
	}
	changedFlag := rootCommand.PersistentFlags().Lookup(flagName)
	return changedFlag != nil && changedFlag.Changed
}

func (application *Application) collectExecutionFlags(command *cobra.Command) utils.ExecutionFlags {
	executionFlags := utils.ExecutionFlags{}
	if command == nil {
		return executionFlags
	}

	if dryRunValue, dryRunChanged, dryRunError := flagutils.BoolFlag(command, flagutils.DryRunFlagName); dryRunError == nil {
		executionFlags.DryRun = dryRunValue
		executionFlags.DryRunSet = dryRunChanged
	}

	if remoteValue, remoteChanged, remoteError := flagutils.StringFlag(command, flagutils.RemoteFlagName); remoteError == nil {
		trimmedRemote := strings.TrimSpace(remoteValue)
		executionFlags.Remote = trimmedRemote
		executionFlags.RemoteSet = remoteChanged && len(trimmedRemote) > 0
	}

	return executionFlags
}

func (application *Application) runRootCommand(command *cobra.Command) error {
	if application.persistentFlagChanged(command, configurationInitializationFlagNameConstant) {
		return application.initializeConfigurationFile(application.configurationInitializationScope)
	}

	return application.runSynchronization(command)
}

func (application *Application) runSynchronization(command *cobra.Command) error {
	executionFlags, _ := application.commandContextAccessor.ExecutionFlags(command.Context())

	dryRunEnabled := application.configuration.Common.DryRun
	if executionFlags.DryRunSet {
		dryRunEnabled = executionFlags.DryRun
	}

	runConfiguration := application.configuration.Sync
	if executionFlags.RemoteSet {
		runConfiguration.RemoteName = executionFlags.Remote
	}

	inspectionExecutor, inspectionError := execshell.NewShellExecutor(application.logger, application.liveCommandRunner, application.humanReadableLoggingEnabled())
	if inspectionError != nil {
		return inspectionError
	}

	mutationRunner := application.liveCommandRunner
	if dryRunEnabled {
		mutationRunner = execshell.NewDryRunCommandRunner(application.dryRunWriter())
	}
	mutationExecutor, mutationError := execshell.NewShellExecutor(application.logger, mutationRunner, application.humanReadableLoggingEnabled())
	if mutationError != nil {
		return mutationError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(inspectionExecutor, mutationExecutor)
	if managerError != nil {
		return managerError
	}

	orchestrator, orchestratorError := syncrun.NewOrchestrator(runConfiguration, syncrun.Dependencies{
		Logger:            application.logger,
		RepositoryManager: repositoryManager,
		ProgramExecutor:   mutationExecutor,
	})
	if orchestratorError != nil {
		return orchestratorError
	}

	return orchestrator.Run(command.Context())
}

func (application *Application) dryRunWriter() io.Writer {
	if application.dryRunOutputWriter != nil {
		return application.dryRunOutputWriter
	}
	return os.Stderr
}

func (application *Application) initializeConfigurationFile(requestedScope string) error {
	normalizedScope := strings.ToLower(strings.TrimSpace(requestedScope))
	if len(normalizedScope) == 0 {
		normalizedScope = configurationInitializationDefaultScopeConstant
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if len(configurationContent) == 0 {
		return fmt.Errorf(configurationInitializationContentUnavailableErrorConstant)
	}

	targetDirectoryPath, directoryResolutionError := application.resolveInitializationDirectory(normalizedScope)
	if directoryResolutionError != nil {
		return directoryResolutionError
	}

	if directoryCreationError := os.MkdirAll(targetDirectoryPath, configurationDirectoryPermissionConstant); directoryCreationError != nil {
		return fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, targetDirectoryPath, directoryCreationError)
	}

	targetFilePath := filepath.Join(targetDirectoryPath, configurationFileNameConstant)
	if _, statError := os.Stat(targetFilePath); statError == nil && !application.configurationInitializationForced {
		return fmt.Errorf(configurationInitializationExistingFileTemplateConstant, targetFilePath)
	}

	if writeError := os.WriteFile(targetFilePath, configurationContent, configurationFilePermissionConstant); writeError != nil {
		return fmt.Errorf(configurationInitializationWriteErrorTemplateConstant, targetFilePath, writeError)
	}

	application.logger.Info(configurationInitializationSuccessMessageConstant, zap.String(configurationFilePathFieldConstant, targetFilePath))
	if application.humanReadableLoggingEnabled() {
		application.consoleLogger.Info(fmt.Sprintf("%s: %s", configurationInitializationSuccessMessageConstant, targetFilePath))
	}
	return nil
}

func (application *Application) resolveInitializationDirectory(normalizedScope string) (string, error) {
	switch normalizedScope {
	case configurationInitializationScopeLocalConstant:
		workingDirectoryPath, workingDirectoryError := os.Getwd()
		if workingDirectoryError != nil {
			return "", fmt.Errorf(configurationInitializationWorkingDirectoryErrorTemplateConstant, workingDirectoryError)
		}
		return workingDirectoryPath, nil
	case configurationInitializationScopeUserConstant:
		xdgConfigHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant))
		if len(xdgConfigHome) > 0 {
			return filepath.Join(xdgConfigHome, xdgConfigurationDirectoryNameConstant), nil
		}
		userHomeDirectoryPath, userHomeDirectoryError := os.UserHomeDir()
		if userHomeDirectoryError != nil {
			return "", fmt.Errorf(configurationInitializationHomeDirectoryErrorTemplateConstant, userHomeDirectoryError)
		}
		return filepath.Join(userHomeDirectoryPath, userConfigurationDirectoryNameConstant), nil
	default:
		return "", fmt.Errorf(configurationInitializationUnsupportedScopeTemplateConstant, normalizedScope)
	}
}

func (application *Application) resolveVersion(executionContext context.Context) string {
	detectedVersion := version.Detect(executionContext, version.Dependencies{})
	trimmedVersion := strings.TrimSpace(detectedVersion)
	if len(trimmedVersion) == 0 {
		return detectedVersion
	}
	return trimmedVersion
}

func (application *Application) printVersion(executionContext context.Context) {
	versionString := application.versionResolver(executionContext)
	fmt.Printf(versionOutputTemplateConstant, versionString)
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}

	return application.syncLoggerInstance(application.consoleLogger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.EBADF):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}
