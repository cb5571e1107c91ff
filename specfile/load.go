package specfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"

	"github.com/balebuild/bale/bundle"
)

// RunFile evaluates a bundle spec script and returns the build spec it
// declared. The script must call bale.Spec exactly once.
func RunFile(path string) (*bundle.BuildSpec, error) {

	// Try to get absolute path. If it fails, fall back to relative path.
	path, abserr := filepath.Abs(path)
	if abserr != nil {
		return nil, abserr
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec at path %s: \n%v", path, err)
	}

	sf := &SpecFile{Path: path}

	wd, _ := os.Getwd()
	vm := goja.New()
	baleObj := map[string]any{
		"Params": map[string]string{
			"mode": "build",
		},
		"Spec":    sf.Spec,
		"Data":    sf.Data,
		"Hook":    sf.Hook,
		"Env":     sf.Env,
		"SpecDir": filepath.Dir(path),
		"Cwd":     wd,
	}

	vm.Set("print", sf.Print)
	vm.Set("println", sf.Println)
	vm.Set("glob", sf.Glob)
	vm.Set("bale", baleObj)

	_, err = vm.RunScript("main", string(source))
	if err != nil {
		return nil, fmt.Errorf("error parsing: %s = %s", path, err)
	}

	if sf.spec == nil {
		return nil, fmt.Errorf("spec file %s never called bale.Spec", path)
	}
	if err := sf.spec.Validate(); err != nil {
		return nil, err
	}
	return sf.spec, nil
}
