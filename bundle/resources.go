package bundle

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/aymerick/raymond"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/util"
)

// Resource is a resolved bundle entry: an absolute source path and the
// relative destination it lands on inside the bundle.
type Resource struct {
	Src      string
	Dest     string
	Size     uint64
	Optional bool
}

// ResolveResources turns the spec's data list into the bundle resource
// set. An optional entry appears in the result iff its source exists
// at the computed absolute path; a missing required entry is an error.
// The result is sorted by dest then src, so an unchanged file tree
// always yields the same list.
func ResolveResources(baseDir string, spec *BuildSpec) ([]Resource, error) {
	baseDir, err := ResolveBaseDir(baseDir)
	if err != nil {
		return nil, err
	}

	params := spec.TemplateParams()

	out := []Resource{}
	for _, d := range spec.Datas {
		dest := d.Dest
		if dest == "" {
			dest = filepath.Base(d.Src)
		}
		dest, err := raymond.Render(dest, params)
		if err != nil {
			return nil, fmt.Errorf("data dest template %s: %v", d.Dest, err)
		}
		src := d.Src
		if !filepath.IsAbs(src) {
			src = filepath.Join(baseDir, src)
		}
		src, err = filepath.Abs(src)
		if err != nil {
			return nil, err
		}
		if !util.Exists(src) {
			if d.Optional {
				logger.Debug("Skipping missing optional resource", "src", src)
				continue
			}
			return nil, fmt.Errorf("missing resource: %s", src)
		}
		out = append(out, Resource{
			Src:      src,
			Dest:     filepath.Clean(dest),
			Size:     util.FileSize(src),
			Optional: d.Optional,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Dest != out[j].Dest {
			return out[i].Dest < out[j].Dest
		}
		return out[i].Src < out[j].Src
	})
	return out, nil
}

// TemplateParams is the context handed to dest and hook templates.
func (bs *BuildSpec) TemplateParams() map[string]any {
	return map[string]any{
		"name":    bs.Name,
		"version": bs.Version,
		"arch":    string(bs.TargetArch),
	}
}
