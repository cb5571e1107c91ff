package cmd

import (
	"os"

	"github.com/balebuild/bale/cmd/build"
	"github.com/balebuild/bale/cmd/check"
	"github.com/balebuild/bale/cmd/publish"
	"github.com/balebuild/bale/cmd/repoinit"
	"github.com/balebuild/bale/cmd/resources"
	"github.com/balebuild/bale/cmd/targets"
	"github.com/balebuild/bale/cmd/upload"
	"github.com/balebuild/bale/logger"

	"github.com/spf13/cobra"
)

var verbose = false
var jsonLog = false

// RootCmd represents the root command
var RootCmd = &cobra.Command{
	Use:           "bale",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(verbose, jsonLog)
	},
}

func init() {
	pflags := RootCmd.PersistentFlags()
	pflags.BoolVarP(&verbose, "verbose", "v", verbose, "Enable debug logging")
	pflags.BoolVar(&jsonLog, "json-log", jsonLog, "Log as JSON")

	RootCmd.AddCommand(build.Cmd)
	RootCmd.AddCommand(check.Cmd)
	RootCmd.AddCommand(resources.Cmd)
	RootCmd.AddCommand(repoinit.Cmd)
	RootCmd.AddCommand(publish.Cmd)
	RootCmd.AddCommand(targets.Cmd)
	RootCmd.AddCommand(upload.Cmd)
}

var genBashCompletionCmd = &cobra.Command{
	Use:   "bash",
	Short: "Generate bash completions file",
	Run: func(cmd *cobra.Command, args []string) {
		RootCmd.GenBashCompletion(os.Stdout)
	},
}
