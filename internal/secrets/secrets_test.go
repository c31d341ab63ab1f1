package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	blob, err := Encrypt("super-secret-token", identity.Recipient())
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !IsEncrypted(blob) {
		t.Errorf("expected ENC[age:...] blob, got %q", blob)
	}
	if strings.Contains(blob, "super-secret-token") {
		t.Error("blob contains plaintext")
	}

	plain, err := Decrypt(blob, identity)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "super-secret-token" {
		t.Errorf("expected plaintext back, got %q", plain)
	}
}

func TestDecryptRejectsPlainValue(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	if _, err := Decrypt("not-encrypted", identity); err == nil {
		t.Error("expected error for non-encrypted blob")
	}
}

func TestGenerateIdentityIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".age-key")
	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("generate: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	if err := GenerateIdentity(path); err != nil {
		t.Fatalf("second generate: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read key: %v", err)
	}
	if string(first) != string(second) {
		t.Error("key file was rewritten")
	}

	if _, err := LoadIdentity(path); err != nil {
		t.Errorf("load identity: %v", err)
	}
}

func TestDotenvSetAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	if err := SetEntry(path, "API_KEY", "abc123"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetEntry(path, "OTHER", "has spaces"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetEntry(path, "API_KEY", "updated"); err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, err := Entries(path)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if entries["API_KEY"] != "updated" {
		t.Errorf("expected updated value, got %q", entries["API_KEY"])
	}
	if entries["OTHER"] != "has spaces" {
		t.Errorf("expected quoted value round trip, got %q", entries["OTHER"])
	}
}

func TestDotenvPreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("# header\nFOO=bar\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := SetEntry(path, "FOO", "baz"); err != nil {
		t.Fatalf("set: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "# header") {
		t.Error("comment line lost")
	}
	if !strings.Contains(string(content), "FOO=baz") {
		t.Errorf("value not updated: %s", content)
	}
}

func TestResolverPrefersEnvThenDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}

	blob, err := Encrypt("from-dotenv", identity.Recipient())
	if err != nil {
		t.Fatal(err)
	}
	if err := SetEntry(path, "MY_SECRET", blob); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(path, identity)

	got, err := r.Get("MY_SECRET")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "from-dotenv" {
		t.Errorf("expected decrypted dotenv value, got %q", got)
	}

	t.Setenv("MY_SECRET", "from-env")
	got, err = r.Get("MY_SECRET")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "from-env" {
		t.Errorf("process env should win, got %q", got)
	}

	if _, err := r.Get("NO_SUCH_SECRET"); err == nil {
		t.Error("expected error for unknown secret")
	}
}
