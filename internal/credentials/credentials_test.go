package credentials

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nvkrylov/tvchart-session/internal/domain"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := newEncryptor(testHexKey)
	if err != nil {
		t.Fatalf("newEncryptor: %v", err)
	}

	ciphertext, err := enc.Encrypt("super-secret-auth-token")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == "super-secret-auth-token" {
		t.Fatal("ciphertext must not equal plaintext")
	}

	plaintext, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "super-secret-auth-token" {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestEncryptorRejectsShortKey(t *testing.T) {
	if _, err := newEncryptor("deadbeef"); err == nil {
		t.Fatal("expected error for undersized key")
	}
}

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.enc")

	cache, err := NewCache(path, testHexKey)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	bundle := Bundle{
		AuthToken: "tok_abc123",
		Cookies: []domain.Cookie{
			{Name: "sessionid", Value: "xyz", Domain: ".tradingview.com", Path: "/"},
		},
	}
	if err := cache.Save(bundle); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, found, err := cache.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !found {
		t.Fatal("expected cache hit")
	}
	if loaded.AuthToken != bundle.AuthToken {
		t.Fatalf("auth token mismatch: got %q", loaded.AuthToken)
	}
	if len(loaded.Cookies) != 1 || loaded.Cookies[0].Name != "sessionid" {
		t.Fatalf("cookies not round-tripped: %+v", loaded.Cookies)
	}
}

func TestCacheLoadMissingFileIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(filepath.Join(dir, "absent.enc"), testHexKey)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	_, found, err := cache.Load()
	if err != nil {
		t.Fatalf("expected nil error for missing cache file, got %v", err)
	}
	if found {
		t.Fatal("expected found=false for missing cache file")
	}
}

func TestFromMapAppliesDefaultDomainAndPath(t *testing.T) {
	source := FromMap(map[string]string{"sessionid": "abc"})
	cookies, err := source.Cookies(context.Background())
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Domain != defaultDomain || cookies[0].Path != defaultPath {
		t.Fatalf("expected default domain/path, got %+v", cookies[0])
	}
}

func TestFromRecordsPreservesExplicitDomain(t *testing.T) {
	source := FromRecords([]domain.Cookie{
		{Name: "a", Value: "1", Domain: ".example.com", Path: "/x"},
		{Name: "b", Value: "2"},
	})
	cookies, _ := source.Cookies(context.Background())
	if cookies[0].Domain != ".example.com" || cookies[0].Path != "/x" {
		t.Fatalf("explicit domain/path overwritten: %+v", cookies[0])
	}
	if cookies[1].Domain != defaultDomain || cookies[1].Path != defaultPath {
		t.Fatalf("missing domain/path not defaulted: %+v", cookies[1])
	}
}

func TestEnvCookieSourceSkipsAbsentNames(t *testing.T) {
	env := map[string]string{"SESSIONID": "present"}
	lookup := func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	source := NewEnvCookieSource([]string{"SESSIONID", "SESSIONID_SIGN"}, lookup)

	cookies, err := source.Cookies(context.Background())
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "SESSIONID" {
		t.Fatalf("expected only SESSIONID, got %+v", cookies)
	}
}

func TestBuildHTTPClientSeedsJarFromCookieSource(t *testing.T) {
	source := FromRecords([]domain.Cookie{
		{Name: "sessionid", Value: "abc", Domain: ".tradingview.com", Path: "/"},
	})
	client, err := BuildHTTPClient(context.Background(), source)
	if err != nil {
		t.Fatalf("BuildHTTPClient: %v", err)
	}
	if client.Jar == nil {
		t.Fatal("expected a non-nil cookie jar")
	}
}

