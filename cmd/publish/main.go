package publish

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/config"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/repo"
)

var configDir = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "publish <version> <artifactsDir> <keysDir> <repoDir>",
	Short: "Add built bundles to the update repository and sign metadata",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := args[0]
		artifactsDir := args[1]
		keysDir := args[2]
		repoDir := args[3]

		dir := configDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			dir = wd
		}
		conf, err := config.LoadRepoConfig(dir)
		if err != nil {
			return err
		}

		logger.Info("Publishing", "app", conf.AppName, "version", version, "repo", repoDir)

		r := repo.NewRepository(conf, repoDir, keysDir)
		if err := r.Initialize(); err != nil {
			return err
		}
		added, err := r.AddBundle(artifactsDir, version)
		if err != nil {
			return err
		}
		if added == 0 {
			return fmt.Errorf("no %s-%s*.zip bundles found in %s", conf.AppName, version, artifactsDir)
		}
		if err := r.PublishChanges(); err != nil {
			return err
		}
		logger.Info("Metadata published", "bundles", added)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&configDir, "config-dir", "C", configDir, "Directory holding "+config.RepoConfigName)
}
