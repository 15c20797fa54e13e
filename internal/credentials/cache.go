package credentials

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

// Bundle is the credential material worth caching between process starts:
// the scraped auth token and the cookies that produced it. It is not
// session identity — a fresh chart_session id and a full
// CONNECTED->STUDIES_ACTIVE handshake always run on every connect, cache
// or no cache.
type Bundle struct {
	AuthToken string          `json:"auth_token"`
	Cookies   []domain.Cookie `json:"cookies"`
}

// Cache persists a Bundle to a single file, AES-GCM encrypted so an auth
// token sitting on disk isn't plaintext.
type Cache struct {
	path string
	enc  *encryptor
}

// NewCache returns a Cache writing to path, encrypting with hexKey (a
// 32-byte key, hex-encoded — see internal/config for where this comes
// from).
func NewCache(path, hexKey string) (*Cache, error) {
	enc, err := newEncryptor(hexKey)
	if err != nil {
		return nil, err
	}
	return &Cache{path: path, enc: enc}, nil
}

// Save encrypts and writes bundle, replacing any previous contents.
func (c *Cache) Save(bundle Bundle) error {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	ciphertext, err := c.enc.Encrypt(string(plaintext))
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, []byte(ciphertext), 0o600)
}

// Load reads and decrypts the cached bundle. found is false (with a nil
// error) when no cache file exists yet.
func (c *Cache) Load() (bundle Bundle, found bool, err error) {
	ciphertext, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Bundle{}, false, nil
		}
		return Bundle{}, false, err
	}
	plaintext, err := c.enc.Decrypt(string(ciphertext))
	if err != nil {
		return Bundle{}, false, err
	}
	if err := json.Unmarshal([]byte(plaintext), &bundle); err != nil {
		return Bundle{}, false, err
	}
	return bundle, true, nil
}
