package manifest

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"

	"github.com/balebuild/bale/bundle"
)

type FileRecord struct {
	Src    string `json:"src"`
	Dest   string `json:"dest"`
	Size   uint64 `json:"size"`
	SHA256 string `json:"sha256,omitempty"`
}

type SummaryRecord struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Arch      string `json:"arch,omitempty"`
	FileCount int    `json:"fileCount"`
	TotalSize uint64 `json:"totalSize"`
	BuildID   string `json:"buildID,omitempty"`
	Created   string `json:"created,omitempty"`
}

type Manifest struct {
	Summary SummaryRecord `json:"summary"`
	Files   []FileRecord  `json:"files"`
}

// Hasher produces a content hash for a path. The cache package
// provides one that skips unchanged files; util.SHA256File is the
// plain fallback.
type Hasher func(path string) (string, error)

// New builds a manifest from resolved resources. The result is
// deterministic: no build ID or timestamp is stamped here, so the same
// spec against an unchanged tree marshals byte-identical. Stamp adds
// the per-build fields.
func New(spec *bundle.BuildSpec, resources []bundle.Resource, hash Hasher) (*Manifest, error) {
	m := &Manifest{
		Summary: SummaryRecord{
			Name:    spec.Name,
			Version: spec.Version,
			Arch:    string(spec.TargetArch),
		},
		Files: []FileRecord{},
	}
	for _, r := range resources {
		rec := FileRecord{Src: r.Src, Dest: r.Dest, Size: r.Size}
		if hash != nil {
			h, err := hash(r.Src)
			if err != nil {
				return nil, fmt.Errorf("hashing %s: %v", r.Src, err)
			}
			rec.SHA256 = h
		}
		m.Summary.TotalSize += r.Size
		m.Files = append(m.Files, rec)
	}
	m.Summary.FileCount = len(m.Files)
	return m, nil
}

// Stamp marks the manifest with a fresh build ID and creation time.
func (m *Manifest) Stamp() {
	m.Summary.BuildID = uuid.NewString()
	m.Summary.Created = time.Now().UTC().Format(time.RFC3339)
}

func (m *Manifest) Marshal() ([]byte, error) {
	return yaml.Marshal(m)
}

func (m *Manifest) Write(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

// Load reads a manifest written by Write. YAML is a superset of JSON
// here, so either encoding loads.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.UnmarshalStrict(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest at path %s: \n%v", path, err)
	}
	return m, nil
}
