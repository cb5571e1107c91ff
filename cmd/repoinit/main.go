package repoinit

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/config"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/repo"
)

var configDir = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "repo-init <repoDir> <keysDir>",
	Short: "Initialize an update repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		r := repo.NewRepository(conf, args[0], args[1])
		if err := r.Initialize(); err != nil {
			return err
		}
		logger.Info("Repository initialized", "app", conf.AppName, "repo", args[0])
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&configDir, "config-dir", "C", configDir, "Directory holding "+config.RepoConfigName)
}
