package repo

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	RoleTargets   = "targets"
	RoleSnapshot  = "snapshot"
	RoleTimestamp = "timestamp"
)

// TargetRecord describes one released bundle archive.
type TargetRecord struct {
	Length  int64          `json:"length"`
	SHA256  string         `json:"sha256"`
	Version string         `json:"version"`
	Custom  map[string]any `json:"custom,omitempty"`
}

// MetaRecord points at a metadata file from snapshot or timestamp.
type MetaRecord struct {
	Length  int64  `json:"length"`
	SHA256  string `json:"sha256"`
	Version int    `json:"version"`
}

type Targets struct {
	Type    string                  `json:"_type"`
	Expires string                  `json:"expires"`
	Version int                     `json:"version"`
	Targets map[string]TargetRecord `json:"targets"`
}

type Snapshot struct {
	Type    string                `json:"_type"`
	Expires string                `json:"expires"`
	Version int                   `json:"version"`
	Meta    map[string]MetaRecord `json:"meta"`
}

type Timestamp struct {
	Type    string                `json:"_type"`
	Expires string                `json:"expires"`
	Version int                   `json:"version"`
	Meta    map[string]MetaRecord `json:"meta"`
}

type Signature struct {
	KeyID string `json:"keyid"`
	Sig   string `json:"sig"`
}

// Envelope wraps a metadata payload with its signatures. The signed
// bytes are kept raw so verification sees exactly what was signed.
type Envelope struct {
	Signed     json.RawMessage `json:"signed"`
	Signatures []Signature     `json:"signatures"`
}

func expiresAt(now time.Time, days int) string {
	return now.UTC().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339)
}

// signPayload marshals the payload and signs it with each key.
// encoding/json emits map keys sorted, so the signed bytes are stable
// for a given payload.
func signPayload(payload any, keys []ed25519.PrivateKey) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env := &Envelope{Signed: raw}
	for _, key := range keys {
		sig := ed25519.Sign(key, raw)
		env.Signatures = append(env.Signatures, Signature{
			KeyID: KeyID(key.Public().(ed25519.PublicKey)),
			Sig:   hex.EncodeToString(sig),
		})
	}
	return env, nil
}

// VerifyEnvelope checks that at least threshold signatures validate
// against the given public keys.
func VerifyEnvelope(env *Envelope, pubs []ed25519.PublicKey, threshold int) error {
	if threshold < 1 {
		threshold = 1
	}
	byID := map[string]ed25519.PublicKey{}
	for _, pub := range pubs {
		byID[KeyID(pub)] = pub
	}
	good := 0
	for _, s := range env.Signatures {
		pub, ok := byID[s.KeyID]
		if !ok {
			continue
		}
		sig, err := hex.DecodeString(s.Sig)
		if err != nil {
			continue
		}
		if ed25519.Verify(pub, env.Signed, sig) {
			good++
		}
	}
	if good < threshold {
		return fmt.Errorf("%d of %d required signatures verified", good, threshold)
	}
	return nil
}

func writeEnvelope(path string, env *Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

func readEnvelope(path string) (*Envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("failed to parse metadata at path %s: \n%v", path, err)
	}
	return env, nil
}
