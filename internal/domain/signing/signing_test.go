package signing

import (
	"testing"
	"time"
)

type testRuleSet struct {
	Version string   `json:"version"`
	Name    string   `json:"name"`
	Rules   []string `json:"rules"`
}

func TestCanonicalize_SortsKeysAtEveryLevel(t *testing.T) {
	t.Parallel()
	obj := map[string]any{
		"b": 1,
		"a": map[string]any{"z": 1, "y": 2},
	}
	got, err := Canonicalize(obj)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"a":{"y":2,"z":1},"b":1}`
	if string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestDeriveKeyID_MatchesGeneratedKeyID(t *testing.T) {
	t.Parallel()
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	derived, err := DeriveKeyID(kp.PublicKeyDER)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if derived != kp.KeyID {
		t.Fatalf("expected derived key id %q to equal generated %q", derived, kp.KeyID)
	}
	if len(kp.KeyID) != 16 {
		t.Fatalf("expected 16-char key id, got %d chars", len(kp.KeyID))
	}
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()
	kp, err := GenerateSigningKeyPair()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	priv, err := ParsePrivateKey(kp.PrivateKeyDER)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pub, err := ParsePublicKey(kp.PublicKeyDER)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rs := testRuleSet{Version: "1.0", Name: "test", Rules: []string{"r1"}}
	bundle, err := Sign(rs, priv, kp.KeyID, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trusted := TrustedKeys{kp.KeyID: pub}
	if err := Verify(bundle, trusted, false); err != nil {
		t.Fatalf("expected verification to succeed, got %v", err)
	}
}

func TestVerify_TamperedPayloadHashFails(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateSigningKeyPair()
	priv, _ := ParsePrivateKey(kp.PrivateKeyDER)
	pub, _ := ParsePublicKey(kp.PublicKeyDER)
	bundle, _ := Sign(testRuleSet{Version: "1.0"}, priv, kp.KeyID, time.Now())
	bundle.PayloadHash = "0000000000000000000000000000000000000000000000000000000000000000"

	err := Verify(bundle, TrustedKeys{kp.KeyID: pub}, false)
	if err == nil {
		t.Fatalf("expected payload hash mismatch error")
	}
}

func TestVerify_StrictModeRejectsUnknownKeyID(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateSigningKeyPair()
	priv, _ := ParsePrivateKey(kp.PrivateKeyDER)
	bundle, _ := Sign(testRuleSet{Version: "1.0"}, priv, "deadbeefdeadbeef", time.Now())

	otherKP, _ := GenerateSigningKeyPair()
	otherPub, _ := ParsePublicKey(otherKP.PublicKeyDER)

	err := Verify(bundle, TrustedKeys{otherKP.KeyID: otherPub}, false)
	if err == nil {
		t.Fatalf("expected strict-mode verification to fail for unregistered key id")
	}
}

func TestVerify_RotationModeAcceptsAnyTrustedKey(t *testing.T) {
	t.Parallel()
	kp, _ := GenerateSigningKeyPair()
	priv, _ := ParsePrivateKey(kp.PrivateKeyDER)
	pub, _ := ParsePublicKey(kp.PublicKeyDER)
	bundle, _ := Sign(testRuleSet{Version: "1.0"}, priv, "unregistered-id", time.Now())

	err := Verify(bundle, TrustedKeys{kp.KeyID: pub}, true)
	if err != nil {
		t.Fatalf("expected rotation mode to accept bundle signed by any trusted key, got %v", err)
	}
}

func TestCheckPins_MismatchReturnsBundlePinError(t *testing.T) {
	t.Parallel()
	bundle := SignedBundle{Version: "1.0", PayloadHash: "abc"}
	err := CheckPins(SigningConfig{PinnedVersion: "2.0"}, bundle)
	if _, ok := err.(*BundlePinError); !ok {
		t.Fatalf("expected *BundlePinError, got %T (%v)", err, err)
	}

	err = CheckPins(SigningConfig{PinnedHash: "def"}, bundle)
	if _, ok := err.(*BundlePinError); !ok {
		t.Fatalf("expected *BundlePinError, got %T (%v)", err, err)
	}

	if err := CheckPins(SigningConfig{PinnedVersion: "1.0", PinnedHash: "abc"}, bundle); err != nil {
		t.Fatalf("expected matching pins to pass, got %v", err)
	}
}
