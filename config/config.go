package config

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/balebuild/bale/bundle"
)

// parse parses a YAML doc into the given BuildSpec instance.
func parse(raw []byte, conf *bundle.BuildSpec) error {
	return yaml.UnmarshalStrict(raw, conf)
}

// ParseBundleFile parses a YAML bundle spec, the declarative
// alternative to a scripted spec file. Unknown fields are rejected.
func ParseBundleFile(relpath string, conf *bundle.BuildSpec) error {
	if relpath == "" {
		return nil
	}

	// Try to get absolute path. If it fails, fall back to relative path.
	path, abserr := filepath.Abs(relpath)
	if abserr != nil {
		path = relpath
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config at path %s: \n%v", path, err)
	}

	err = parse(source, conf)
	if err != nil {
		return fmt.Errorf("failed to parse config at path %s: \n%v", path, err)
	}

	conf.BaseDir = filepath.Dir(path)

	return conf.Validate()
}
