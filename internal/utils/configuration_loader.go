package utils

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	environmentKeySeparatorConstant          = "_"
	configurationKeySeparatorConstant        = "."
	environmentListSeparatorConstant         = ","
	embeddedConfigurationErrorTemplate       = "unable to parse embedded configuration: %w"
	configurationFileReadErrorTemplate       = "unable to read configuration file: %w"
	configurationDecodeErrorTemplateConstant = "unable to decode configuration: %w"
)

// LoadedConfiguration reports metadata about a completed configuration load.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader merges configuration values from embedded defaults,
// discovered or explicit configuration files, and environment variables.
//
// Precedence, lowest to highest: defaults, embedded configuration, file,
// environment.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedContent   []byte
	embeddedType      string
}

// NewConfigurationLoader constructs a loader that searches the provided paths
// for a configuration file with the given name and type.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       searchPaths,
	}
}

// SetEmbeddedConfiguration registers embedded configuration content merged
// beneath any discovered configuration file.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(content []byte, configurationType string) {
	loader.embeddedContent = content
	loader.embeddedType = configurationType
}

// LoadConfiguration merges all configuration sources and decodes the result
// into target. An explicit configuration file path bypasses the search paths.
func (loader *ConfigurationLoader) LoadConfiguration(explicitConfigurationPath string, defaultValues map[string]any, target any) (LoadedConfiguration, error) {
	viperInstance := viper.New()

	for defaultKey, defaultValue := range defaultValues {
		viperInstance.SetDefault(defaultKey, defaultValue)
	}

	if len(loader.embeddedContent) > 0 {
		viperInstance.SetConfigType(loader.embeddedType)
		if embeddedReadError := viperInstance.ReadConfig(bytes.NewReader(loader.embeddedContent)); embeddedReadError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationErrorTemplate, embeddedReadError)
		}
	}

	configurationFileUsed, fileMergeError := loader.mergeConfigurationFile(viperInstance, explicitConfigurationPath)
	if fileMergeError != nil {
		return LoadedConfiguration{}, fileMergeError
	}

	if len(loader.environmentPrefix) > 0 {
		viperInstance.SetEnvPrefix(loader.environmentPrefix)
		viperInstance.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparatorConstant, environmentKeySeparatorConstant))
		viperInstance.AutomaticEnv()
	}

	if target != nil {
		decodeHookOption := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(environmentListSeparatorConstant),
			mapstructure.StringToTimeDurationHookFunc(),
		))
		if decodeError := viperInstance.Unmarshal(target, decodeHookOption); decodeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplateConstant, decodeError)
		}
	}

	return LoadedConfiguration{ConfigFileUsed: configurationFileUsed}, nil
}

func (loader *ConfigurationLoader) mergeConfigurationFile(viperInstance *viper.Viper, explicitConfigurationPath string) (string, error) {
	trimmedExplicitPath := strings.TrimSpace(explicitConfigurationPath)
	if len(trimmedExplicitPath) > 0 {
		viperInstance.SetConfigFile(trimmedExplicitPath)
		if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
			return "", fmt.Errorf(configurationFileReadErrorTemplate, mergeError)
		}
		return viperInstance.ConfigFileUsed(), nil
	}

	if len(loader.searchPaths) == 0 {
		return "", nil
	}

	viperInstance.SetConfigName(loader.configurationName)
	viperInstance.SetConfigType(loader.configurationType)
	for _, searchPath := range loader.searchPaths {
		viperInstance.AddConfigPath(searchPath)
	}

	if mergeError := viperInstance.MergeInConfig(); mergeError != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(mergeError, &configFileNotFoundError) {
			return "", nil
		}
		return "", fmt.Errorf(configurationFileReadErrorTemplate, mergeError)
	}

	return viperInstance.ConfigFileUsed(), nil
}
