package check

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/specfile"
	"github.com/balebuild/bale/util"
)

// Cmd is the declaration of the command line
var Cmd = &cobra.Command{
	Use:   "check <specfile>",
	Short: "Validate a spec file and report missing resources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		specPath, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		spec, err := specfile.Load(specPath)
		if err != nil {
			return err
		}
		if err := spec.Validate(); err != nil {
			return err
		}

		baseDir, err := bundle.ResolveBaseDir(spec.BaseDir)
		if err != nil {
			return err
		}

		entry := spec.EntryPoint
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(baseDir, entry)
		}
		missing := 0
		if util.Exists(entry) {
			fmt.Printf("OK: %s\n", entry)
		} else {
			fmt.Printf("MISSING: %s\n", entry)
			missing++
		}

		for _, d := range spec.Datas {
			src := d.Src
			if !filepath.IsAbs(src) {
				src = filepath.Join(baseDir, src)
			}
			switch {
			case util.Exists(src):
				fmt.Printf("OK: %s\n", src)
			case d.Optional:
				fmt.Printf("SKIP (optional): %s\n", src)
			default:
				fmt.Printf("MISSING: %s\n", src)
				missing++
			}
		}

		if missing > 0 {
			return fmt.Errorf("%d required files missing", missing)
		}
		fmt.Printf("OK: %s (%s)\n", spec.Name, specPath)
		return nil
	},
}
