package repo

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

// Role keys are ed25519, stored PEM-encoded in the keys directory as
// <name>.pem (private) and <name>.pub.pem (public).

func GenerateKey(keysDir string, name string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(keysDir, 0700); err != nil {
		return err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return err
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(privateKeyPath(keysDir, name), privPEM, 0600); err != nil {
		return err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return err
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return os.WriteFile(publicKeyPath(keysDir, name), pubPEM, 0644)
}

func LoadPrivateKey(keysDir string, name string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(privateKeyPath(keysDir, name))
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("no private key found for %s", name)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key %s is not ed25519", name)
	}
	return priv, nil
}

func LoadPublicKey(keysDir string, name string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(publicKeyPath(keysDir, name))
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("no public key found for %s", name)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key %s is not ed25519", name)
	}
	return pub, nil
}

// KeyID identifies a public key by its sha256 digest.
func KeyID(pub ed25519.PublicKey) string {
	return fmt.Sprintf("%x", sha256.Sum256(pub))
}

func privateKeyPath(keysDir string, name string) string {
	return filepath.Join(keysDir, name+".pem")
}

func publicKeyPath(keysDir string, name string) string {
	return filepath.Join(keysDir, name+".pub.pem")
}
