package specfile

import (
	"path/filepath"

	"github.com/balebuild/bale/bundle"
	"github.com/balebuild/bale/config"
)

// Load reads a bundle spec of either flavor: YAML configs by
// extension, everything else treated as a scripted spec file.
func Load(path string) (*bundle.BuildSpec, error) {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		spec := &bundle.BuildSpec{}
		if err := config.ParseBundleFile(path, spec); err != nil {
			return nil, err
		}
		return spec, nil
	}
	return RunFile(path)
}
