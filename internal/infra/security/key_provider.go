package security

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrKeyNotFound = errors.New("key not found")

// KeyProvider supplies the RSA signing key and the public keys accepted for verification.
type KeyProvider interface {
	SigningKey() (kid string, key *rsa.PrivateKey, err error)
	VerificationKey(kid string) (*rsa.PublicKey, error)
}

// DirKeyProvider reads PEM keys from a directory. The kid of each key is its file
// name without extension; the first private key in name order signs new tokens.
type DirKeyProvider struct {
	keys       map[string]*rsa.PublicKey
	signingKID string
	signingKey *rsa.PrivateKey
}

// NewDirKeyProvider loads every PEM file in keyDir.
func NewDirKeyProvider(keyDir string) (*DirKeyProvider, error) {
	files, err := os.ReadDir(keyDir)
	if err != nil {
		return nil, fmt.Errorf("read key directory: %w", err)
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if !file.IsDir() {
			names = append(names, file.Name())
		}
	}
	sort.Strings(names)

	provider := &DirKeyProvider{keys: make(map[string]*rsa.PublicKey)}

	for _, name := range names {
		path := filepath.Join(keyDir, name)
		keyData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read key file %s: %w", path, err)
		}

		block, _ := pem.Decode(keyData)
		if block == nil {
			return nil, fmt.Errorf("decode PEM block from %s", path)
		}

		kid := strings.TrimSuffix(name, filepath.Ext(name))

		if private := parsePrivateKey(block.Bytes); private != nil {
			if provider.signingKey == nil {
				provider.signingKey = private
				provider.signingKID = kid
			}
			provider.keys[kid] = &private.PublicKey
			continue
		}

		if public := parsePublicKey(block.Bytes); public != nil {
			provider.keys[kid] = public
			continue
		}

		return nil, fmt.Errorf("parse key from file %s", path)
	}

	if provider.signingKey == nil {
		return nil, errors.New("no private key found for signing")
	}

	return provider, nil
}

func parsePrivateKey(der []byte) *rsa.PrivateKey {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return rsaKey
		}
	}
	return nil
}

func parsePublicKey(der []byte) *rsa.PublicKey {
	if key, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return key
	}
	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaKey, ok := key.(*rsa.PublicKey); ok {
			return rsaKey
		}
	}
	return nil
}

// SigningKey returns the active signing key and its kid.
func (p *DirKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	return p.signingKID, p.signingKey, nil
}

// VerificationKey returns the public key registered under kid.
func (p *DirKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	key, ok := p.keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return key, nil
}

// StaticKeyProvider serves a single in-memory key.
type StaticKeyProvider struct {
	kid string
	key *rsa.PrivateKey
}

// NewStaticKeyProvider wraps key under kid.
func NewStaticKeyProvider(kid string, key *rsa.PrivateKey) *StaticKeyProvider {
	return &StaticKeyProvider{kid: kid, key: key}
}

func (p *StaticKeyProvider) SigningKey() (string, *rsa.PrivateKey, error) {
	if p.key == nil {
		return "", nil, errors.New("static key provider: no key")
	}
	return p.kid, p.key, nil
}

func (p *StaticKeyProvider) VerificationKey(kid string) (*rsa.PublicKey, error) {
	if kid != p.kid || p.key == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
	}
	return &p.key.PublicKey, nil
}
