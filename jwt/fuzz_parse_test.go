package jwt

import (
	"testing"
	"time"
)

// FuzzParseAccess feeds arbitrary strings to the parser. Invalid input must
// be rejected with an error, never a panic.
func FuzzParseAccess(f *testing.F) {
	mgr, err := NewManager(Config{
		AccessTTL:     5 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("fuzz-key-fuzz-key-fuzz-key-fuzz-key"),
		Issuer:        "fuzz-test",
		KeyID:         "k1",
	})
	if err != nil {
		f.Fatal(err)
	}
	valid, _, err := mgr.CreateAccess("uid1", "rec1")
	if err != nil {
		f.Fatal(err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		claims, err := mgr.ParseAccess(input)
		if err == nil && claims == nil {
			t.Fatal("ParseAccess returned nil claims without error")
		}
	})
}
