// Package repo maintains the signed update repository bale publishes
// released bundles into: target archives under targets/, role-signed
// metadata under metadata/.
package repo

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/balebuild/bale/config"
	"github.com/balebuild/bale/logger"
	"github.com/balebuild/bale/util"
)

type Repository struct {
	Dir     string
	KeysDir string
	Config  *config.RepoConfig

	targets *Targets

	// Now is overridable for deterministic metadata in tests.
	Now func() time.Time
}

func NewRepository(conf *config.RepoConfig, repoDir string, keysDir string) *Repository {
	return &Repository{
		Dir:     repoDir,
		KeysDir: keysDir,
		Config:  conf,
		Now:     time.Now,
	}
}

func (r *Repository) metadataDir() string {
	return filepath.Join(r.Dir, "metadata")
}

func (r *Repository) targetsDir() string {
	return filepath.Join(r.Dir, "targets")
}

func (r *Repository) metadataPath(role string) string {
	return filepath.Join(r.metadataDir(), role+".json")
}

// Initialize creates the repo layout, generates any missing role keys
// named in the key map, and loads existing target metadata.
func (r *Repository) Initialize() error {
	for _, d := range []string{r.metadataDir(), r.targetsDir()} {
		if err := os.MkdirAll(d, 0777); err != nil {
			return err
		}
	}

	for role, keyNames := range r.Config.KeyMap {
		for _, name := range keyNames {
			if util.Exists(privateKeyPath(r.KeysDir, name)) {
				continue
			}
			logger.Info("Generating key", "role", role, "key", name)
			if err := GenerateKey(r.KeysDir, name); err != nil {
				return err
			}
		}
	}

	r.targets = &Targets{Type: RoleTargets, Targets: map[string]TargetRecord{}}
	if util.Exists(r.metadataPath(RoleTargets)) {
		env, err := readEnvelope(r.metadataPath(RoleTargets))
		if err != nil {
			return err
		}
		if err := json.Unmarshal(env.Signed, r.targets); err != nil {
			return fmt.Errorf("failed to parse targets metadata: %v", err)
		}
	}
	return nil
}

// AddBundle copies every archive in artifactsDir named
// <appName>-<version>*.zip into targets/ and records it.
func (r *Repository) AddBundle(artifactsDir string, version string) (int, error) {
	if r.targets == nil {
		return 0, fmt.Errorf("repository not initialized")
	}
	prefix := fmt.Sprintf("%s-%s", r.Config.AppName, version)

	entries, err := os.ReadDir(artifactsDir)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".zip") {
			continue
		}
		src := filepath.Join(artifactsDir, name)
		dst := filepath.Join(r.targetsDir(), name)
		logger.Info("Adding bundle", "bundle", src)
		if err := util.CopyFile(src, dst); err != nil {
			return added, err
		}
		sha, err := util.SHA256File(dst)
		if err != nil {
			return added, err
		}
		r.targets.Targets[name] = TargetRecord{
			Length:  int64(util.FileSize(dst)),
			SHA256:  sha,
			Version: version,
		}
		added++
	}
	return added, nil
}

// PublishChanges bumps and re-signs the metadata chain: targets, then
// snapshot over targets.json, then timestamp over snapshot.json.
func (r *Repository) PublishChanges() error {
	if r.targets == nil {
		return fmt.Errorf("repository not initialized")
	}
	now := r.Now()
	days := r.Config.ExpirationDays

	r.targets.Version++
	r.targets.Expires = expiresAt(now, days)
	if err := r.signAndWrite(RoleTargets, r.targets); err != nil {
		return err
	}

	targetsMeta, err := r.metaRecord(RoleTargets, r.targets.Version)
	if err != nil {
		return err
	}
	snapshot := &Snapshot{
		Type:    RoleSnapshot,
		Expires: expiresAt(now, days),
		Version: r.targets.Version,
		Meta:    map[string]MetaRecord{"targets.json": targetsMeta},
	}
	if err := r.signAndWrite(RoleSnapshot, snapshot); err != nil {
		return err
	}

	snapshotMeta, err := r.metaRecord(RoleSnapshot, snapshot.Version)
	if err != nil {
		return err
	}
	timestamp := &Timestamp{
		Type:    RoleTimestamp,
		Expires: expiresAt(now, days),
		Version: snapshot.Version,
		Meta:    map[string]MetaRecord{"snapshot.json": snapshotMeta},
	}
	if err := r.signAndWrite(RoleTimestamp, timestamp); err != nil {
		return err
	}
	logger.Info("Published metadata", "repo", r.Dir, "version", r.targets.Version)
	return nil
}

// Verify checks each role's metadata against its public keys and
// threshold, and every target archive against its recorded hash.
func (r *Repository) Verify() error {
	for _, role := range []string{RoleTargets, RoleSnapshot, RoleTimestamp} {
		env, err := readEnvelope(r.metadataPath(role))
		if err != nil {
			return err
		}
		pubs, err := r.rolePublicKeys(role)
		if err != nil {
			return err
		}
		if err := VerifyEnvelope(env, pubs, r.Config.Thresholds[role]); err != nil {
			return fmt.Errorf("role %s: %v", role, err)
		}
	}

	targets, err := r.Targets()
	if err != nil {
		return err
	}
	for name, rec := range targets.Targets {
		path := filepath.Join(r.targetsDir(), name)
		sha, err := util.SHA256File(path)
		if err != nil {
			return fmt.Errorf("target %s: %v", name, err)
		}
		if sha != rec.SHA256 {
			return fmt.Errorf("target %s: hash mismatch", name)
		}
	}
	return nil
}

// Targets returns the current target records from disk.
func (r *Repository) Targets() (*Targets, error) {
	env, err := readEnvelope(r.metadataPath(RoleTargets))
	if err != nil {
		return nil, err
	}
	t := &Targets{}
	if err := json.Unmarshal(env.Signed, t); err != nil {
		return nil, fmt.Errorf("failed to parse targets metadata: %v", err)
	}
	return t, nil
}

func (r *Repository) signAndWrite(role string, payload any) error {
	keys, err := r.rolePrivateKeys(role)
	if err != nil {
		return err
	}
	env, err := signPayload(payload, keys)
	if err != nil {
		return err
	}
	return writeEnvelope(r.metadataPath(role), env)
}

func (r *Repository) metaRecord(role string, version int) (MetaRecord, error) {
	path := r.metadataPath(role)
	sha, err := util.SHA256File(path)
	if err != nil {
		return MetaRecord{}, err
	}
	return MetaRecord{
		Length:  int64(util.FileSize(path)),
		SHA256:  sha,
		Version: version,
	}, nil
}

func (r *Repository) rolePrivateKeys(role string) ([]ed25519.PrivateKey, error) {
	names, ok := r.Config.KeyMap[role]
	if !ok || len(names) == 0 {
		return nil, fmt.Errorf("no keys mapped for role %s", role)
	}
	keys := []ed25519.PrivateKey{}
	for _, n := range names {
		k, err := LoadPrivateKey(r.KeysDir, n)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (r *Repository) rolePublicKeys(role string) ([]ed25519.PublicKey, error) {
	names, ok := r.Config.KeyMap[role]
	if !ok || len(names) == 0 {
		return nil, fmt.Errorf("no keys mapped for role %s", role)
	}
	keys := []ed25519.PublicKey{}
	for _, n := range names {
		k, err := LoadPublicKey(r.KeysDir, n)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}
