package manifest

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AuthCost is the bcrypt work factor for basic-auth secrets.
const AuthCost = 14

// Hasher hashes basic-auth secrets for the reverse proxy.
type Hasher interface {
	Hash(secret string, cost int) (string, error)
	// Matches reports whether hash was produced from secret.
	Matches(hash, secret string) bool
}

// BcryptHasher is the Hasher used outside tests.
type BcryptHasher struct{}

func (BcryptHasher) Hash(secret string, cost int) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (BcryptHasher) Matches(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// ReusingHasher returns a previously issued hash when one matches the
// secret, so redeploying an unchanged endpoint keeps its labels stable.
type ReusingHasher struct {
	Hasher
	Known []string
}

func (h ReusingHasher) Hash(secret string, cost int) (string, error) {
	for _, known := range h.Known {
		if h.Hasher.Matches(known, secret) {
			return known, nil
		}
	}
	return h.Hasher.Hash(secret, cost)
}

// AuthHashes returns every basic-auth hash carried in m's service labels.
func AuthHashes(m *Manifest) []string {
	var hashes []string
	for _, name := range m.ServiceNames() {
		svc, _ := m.Service(name)
		labels, err := CollectionOf(svc["labels"], MapEncoding)
		if err != nil {
			continue
		}
		for _, e := range labels.entries() {
			if !strings.Contains(e.Key, ".basic_auth.") {
				continue
			}
			if v, ok := e.Value.(string); ok && v != "" {
				hashes = append(hashes, unescapeDollar(v))
			}
		}
	}
	return hashes
}
