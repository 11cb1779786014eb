package flags_test

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	flagutils "github.com/tyemirov/labsync/internal/utils/flags"
)

func TestBoolFlagReportsValueAndChangeState(testInstance *testing.T) {
	command := &cobra.Command{Use: "labsync"}
	command.PersistentFlags().Bool(flagutils.DryRunFlagName, false, flagutils.DryRunFlagUsage)

	value, changed, flagError := flagutils.BoolFlag(command, flagutils.DryRunFlagName)
	require.NoError(testInstance, flagError)
	require.False(testInstance, value)
	require.False(testInstance, changed)

	require.NoError(testInstance, command.PersistentFlags().Set(flagutils.DryRunFlagName, "true"))

	value, changed, flagError = flagutils.BoolFlag(command, flagutils.DryRunFlagName)
	require.NoError(testInstance, flagError)
	require.True(testInstance, value)
	require.True(testInstance, changed)
}

func TestStringFlagFindsInheritedFlags(testInstance *testing.T) {
	rootCommand := &cobra.Command{Use: "labsync"}
	rootCommand.PersistentFlags().String(flagutils.RemoteFlagName, "", flagutils.RemoteFlagUsage)

	childCommand := &cobra.Command{Use: "version"}
	rootCommand.AddCommand(childCommand)
	require.NoError(testInstance, rootCommand.PersistentFlags().Set(flagutils.RemoteFlagName, "upstream"))

	value, changed, flagError := flagutils.StringFlag(childCommand, flagutils.RemoteFlagName)
	require.NoError(testInstance, flagError)
	require.Equal(testInstance, "upstream", value)
	require.True(testInstance, changed)
}

func TestFlagLookupsRejectUndefinedFlags(testInstance *testing.T) {
	command := &cobra.Command{Use: "labsync"}

	_, _, boolError := flagutils.BoolFlag(command, "absent")
	require.ErrorIs(testInstance, boolError, flagutils.ErrFlagNotDefined)

	_, _, stringError := flagutils.StringFlag(nil, flagutils.RemoteFlagName)
	require.ErrorIs(testInstance, stringError, flagutils.ErrFlagNotDefined)
}
