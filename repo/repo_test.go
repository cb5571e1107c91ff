package repo

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/balebuild/bale/config"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	base := t.TempDir()
	conf := &config.RepoConfig{
		AppName:        "midigen",
		ExpirationDays: 30,
		KeyMap: map[string][]string{
			RoleTargets:   {"targets"},
			RoleSnapshot:  {"snapshot"},
			RoleTimestamp: {"timestamp"},
		},
		Thresholds: map[string]int{},
	}
	r := NewRepository(conf, filepath.Join(base, "repo"), filepath.Join(base, "keys"))
	r.Now = func() time.Time {
		return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	if err := r.Initialize(); err != nil {
		t.Fatal(err)
	}
	return r
}

func writeBundles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("archive: "+n), 0666); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestKeyRoundtrip(t *testing.T) {
	dir := t.TempDir()
	if err := GenerateKey(dir, "release"); err != nil {
		t.Fatal(err)
	}
	priv, err := LoadPrivateKey(dir, "release")
	if err != nil {
		t.Fatal(err)
	}
	pub, err := LoadPublicKey(dir, "release")
	if err != nil {
		t.Fatal(err)
	}
	if KeyID(pub) != KeyID(priv.Public().(ed25519.PublicKey)) {
		t.Error("loaded public key does not match the private key")
	}

	info, err := os.Stat(filepath.Join(dir, "release.pem"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("private key mode = %o", info.Mode().Perm())
	}

	if _, err := LoadPrivateKey(dir, "missing"); err == nil {
		t.Error("loading a missing key did not error")
	}
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	payload := &Timestamp{Type: RoleTimestamp, Version: 1}

	env, err := signPayload(payload, []ed25519.PrivateKey{priv})
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyEnvelope(env, []ed25519.PublicKey{pub}, 1); err != nil {
		t.Error(err)
	}

	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyEnvelope(env, []ed25519.PublicKey{otherPub}, 1); err == nil {
		t.Error("wrong key verified the envelope")
	}

	env.Signed = append(env.Signed, ' ')
	if err := VerifyEnvelope(env, []ed25519.PublicKey{pub}, 1); err == nil {
		t.Error("altered payload still verified")
	}
}

func TestVerifyThreshold(t *testing.T) {
	pub1, priv1, _ := ed25519.GenerateKey(rand.Reader)
	pub2, _, _ := ed25519.GenerateKey(rand.Reader)

	env, err := signPayload(&Snapshot{Type: RoleSnapshot, Version: 1}, []ed25519.PrivateKey{priv1})
	if err != nil {
		t.Fatal(err)
	}
	pubs := []ed25519.PublicKey{pub1, pub2}
	if err := VerifyEnvelope(env, pubs, 1); err != nil {
		t.Error(err)
	}
	if err := VerifyEnvelope(env, pubs, 2); err == nil {
		t.Error("one signature satisfied a threshold of two")
	}
}

func TestAddBundleFilter(t *testing.T) {
	r := testRepo(t)
	artifacts := writeBundles(t,
		"midigen-1.1.2.zip",
		"midigen-1.1.2-macos-universal2.zip",
		"midigen-1.0.0.zip",      // other version
		"othertool-1.1.2.zip",    // other app
		"midigen-1.1.2.manifest", // not an archive
	)

	added, err := r.AddBundle(artifacts, "1.1.2")
	if err != nil {
		t.Fatal(err)
	}
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	for _, name := range []string{"midigen-1.1.2.zip", "midigen-1.1.2-macos-universal2.zip"} {
		if _, ok := r.targets.Targets[name]; !ok {
			t.Errorf("target %s not recorded", name)
		}
		if _, err := os.Stat(filepath.Join(r.Dir, "targets", name)); err != nil {
			t.Errorf("target %s not copied: %s", name, err)
		}
	}
	if _, ok := r.targets.Targets["othertool-1.1.2.zip"]; ok {
		t.Error("foreign bundle recorded")
	}
}

func TestPublishAndVerify(t *testing.T) {
	r := testRepo(t)
	artifacts := writeBundles(t, "midigen-1.1.2.zip")

	if _, err := r.AddBundle(artifacts, "1.1.2"); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishChanges(); err != nil {
		t.Fatal(err)
	}
	if err := r.Verify(); err != nil {
		t.Error(err)
	}

	targets, err := r.Targets()
	if err != nil {
		t.Fatal(err)
	}
	if targets.Version != 1 {
		t.Errorf("targets version = %d, want 1", targets.Version)
	}
	rec, ok := targets.Targets["midigen-1.1.2.zip"]
	if !ok {
		t.Fatal("published target missing")
	}
	if rec.Version != "1.1.2" || rec.Length == 0 || rec.SHA256 == "" {
		t.Errorf("bad target record: %+v", rec)
	}
	if targets.Expires != "2024-03-31T12:00:00Z" {
		t.Errorf("expires = %s", targets.Expires)
	}
}

func TestPublishBumpsVersion(t *testing.T) {
	r := testRepo(t)
	artifacts := writeBundles(t, "midigen-1.1.2.zip")

	if _, err := r.AddBundle(artifacts, "1.1.2"); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishChanges(); err != nil {
		t.Fatal(err)
	}

	// a second publisher session picks up the existing metadata
	r2 := NewRepository(r.Config, r.Dir, r.KeysDir)
	r2.Now = r.Now
	if err := r2.Initialize(); err != nil {
		t.Fatal(err)
	}
	more := writeBundles(t, "midigen-1.2.0.zip")
	if _, err := r2.AddBundle(more, "1.2.0"); err != nil {
		t.Fatal(err)
	}
	if err := r2.PublishChanges(); err != nil {
		t.Fatal(err)
	}

	targets, err := r2.Targets()
	if err != nil {
		t.Fatal(err)
	}
	if targets.Version != 2 {
		t.Errorf("targets version = %d, want 2", targets.Version)
	}
	if len(targets.Targets) != 2 {
		t.Errorf("targets = %v", targets.Targets)
	}
}

func TestVerifyDetectsTamper(t *testing.T) {
	r := testRepo(t)
	artifacts := writeBundles(t, "midigen-1.1.2.zip")

	if _, err := r.AddBundle(artifacts, "1.1.2"); err != nil {
		t.Fatal(err)
	}
	if err := r.PublishChanges(); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(r.Dir, "targets", "midigen-1.1.2.zip")
	if err := os.WriteFile(target, []byte("swapped"), 0666); err != nil {
		t.Fatal(err)
	}
	if err := r.Verify(); err == nil {
		t.Error("tampered target passed verification")
	}
}

func TestAddBundleRequiresInit(t *testing.T) {
	r := NewRepository(&config.RepoConfig{AppName: "midigen"}, t.TempDir(), t.TempDir())
	if _, err := r.AddBundle(t.TempDir(), "1.0.0"); err == nil {
		t.Error("uninitialized repository accepted a bundle")
	}
}
