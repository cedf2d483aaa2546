package auth

import (
	"path/filepath"
	"testing"
)

func TestFileTokenStoreRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "token.txt")
	st, err := NewFileTokenStore(p)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	tok, err := st.Token()
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}

	if err := st.Store("abc123"); err != nil {
		t.Fatalf("store: %v", err)
	}
	tok, err = st.Token()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tok != "abc123" {
		t.Fatalf("token mismatch: %q", tok)
	}
}

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("xyz").Token()
	if err != nil || tok != "xyz" {
		t.Fatalf("unexpected: %q %v", tok, err)
	}
}
