package resources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/manifest"
	"github.com/balebuild/bale/specfile"
	"github.com/balebuild/bale/util"
)

var asJSON = false
var outPath = ""
var withHashes = false

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:     "resources <specfile>",
	Aliases: []string{"manifest"},
	Short:   "Print the resolved resource manifest without building",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		spec, err := specfile.Load(specPath)
		if err != nil {
			return err
		}

		resolved, err := bundle.ResolveResources(spec.BaseDir, spec)
		if err != nil {
			return err
		}

		var hash manifest.Hasher
		if withHashes {
			hash = util.SHA256File
		}
		m, err := manifest.New(spec, resolved, hash)
		if err != nil {
			return err
		}

		var data []byte
		if asJSON {
			data, err = json.MarshalIndent(m, "", "  ")
		} else {
			data, err = m.Marshal()
		}
		if err != nil {
			return err
		}

		if outPath != "" {
			return os.WriteFile(outPath, data, 0666)
		}
		fmt.Printf("%s", data)
		return nil
	},
}

func init() {
	flags := Cmd.Flags()
	flags.BoolVar(&asJSON, "json", asJSON, "Emit JSON instead of YAML")
	flags.BoolVar(&withHashes, "hash", withHashes, "Include content hashes")
	flags.StringVarP(&outPath, "out", "o", outPath, "Write manifest to a file")
}
