package targets

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/config"
	"github.com/balebuild/bale/repo"
)

var configDir = ""
var keysDir = ""

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "targets <repoDir>",
	Short: "List released bundles in an update repository",
	Args:  cobra.ExactArgs(1),
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

		r := repo.NewRepository(conf, args[0], keysDir)
		if keysDir != "" {
			if err := r.Verify(); err != nil {
				return err
			}
			fmt.Println("signatures OK")
		}

		t, err := r.Targets()
		if err != nil {
			return err
		}
		names := []string{}
		for n := range t.Targets {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			rec := t.Targets[n]
			fmt.Printf("%s\t%s\t%d\t%s\n", n, rec.Version, rec.Length, rec.SHA256)
		}
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.StringVarP(&configDir, "config-dir", "C", configDir, "Directory holding "+config.RepoConfigName)
	flags.StringVarP(&keysDir, "keys", "k", keysDir, "Verify signatures against keys in this directory")
}
