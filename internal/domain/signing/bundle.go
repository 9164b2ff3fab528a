package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"
)

// SignedBundle is the on-disk representation of a signed RuleSet.
type SignedBundle struct {
	Version      string `json:"version"`
	Payload      string `json:"payload"`      // canonical JSON of the RuleSet
	PayloadHash  string `json:"payloadHash"`   // hex sha256 of Payload bytes
	Signature    string `json:"signature"`     // base64 Ed25519 over Payload bytes
	PublicKeyID  string `json:"publicKeyId"`
	SignedAt     string `json:"signedAt"` // RFC3339
}

// BundleVersion is the only SignedBundle.Version this implementation emits.
const BundleVersion = "1.0"

// Sign canonicalizes ruleSet, hashes and signs the canonical bytes with
// privateKey, and assembles a SignedBundle attributed to publicKeyID.
func Sign(ruleSet any, privateKey ed25519.PrivateKey, publicKeyID string, now time.Time) (SignedBundle, error) {
	payload, err := Canonicalize(ruleSet)
	if err != nil {
		return SignedBundle{}, err
	}
	payloadHash := SHA256Hex(payload)
	signature := ed25519.Sign(privateKey, payload)

	return SignedBundle{
		Version:     BundleVersion,
		Payload:     string(payload),
		PayloadHash: payloadHash,
		Signature:   base64.StdEncoding.EncodeToString(signature),
		PublicKeyID: publicKeyID,
		SignedAt:    now.UTC().Format(time.RFC3339),
	}, nil
}

// TrustedKeys maps a key id to its Ed25519 public key.
type TrustedKeys map[string]ed25519.PublicKey

// Verify checks bundle integrity and authenticity. In strict mode
// (allowRotation=false, the default) only the key registered under
// bundle.PublicKeyID may verify the signature; a mismatch there is an
// error even if some other trusted key would verify. In rotation mode
// every trusted key is tried when the declared id has no entry.
func Verify(bundle SignedBundle, trusted TrustedKeys, allowRotation bool) error {
	if bundle.Payload == "" || bundle.PayloadHash == "" || bundle.Signature == "" || bundle.PublicKeyID == "" {
		return &BundleFormatError{Reason: "missing required field"}
	}

	if got := SHA256Hex([]byte(bundle.Payload)); got != bundle.PayloadHash {
		return &SignatureVerificationError{Reason: "payload hash mismatch"}
	}

	sig, err := base64.StdEncoding.DecodeString(bundle.Signature)
	if err != nil {
		return &BundleFormatError{Reason: fmt.Sprintf("invalid signature encoding: %v", err)}
	}

	key, ok := trusted[bundle.PublicKeyID]
	if ok {
		if ed25519.Verify(key, []byte(bundle.Payload), sig) {
			return nil
		}
		return &SignatureVerificationError{Reason: "not in trusted public keys"}
	}
	if !allowRotation {
		return &SignatureVerificationError{Reason: "not in trusted public keys"}
	}

	for _, candidate := range trusted {
		if ed25519.Verify(candidate, []byte(bundle.Payload), sig) {
			return nil
		}
	}

	return &SignatureVerificationError{Reason: "not in trusted public keys"}
}

// SigningConfig governs per-loader verification policy: whether signing
// is required at all, whether key rotation is permitted, and optional
// pins on the bundle's declared version and payload hash.
//
// Required is a *bool, mirroring rule.wireRule's Enabled *bool, so a
// caller that never sets it is distinguishable from one that explicitly
// sets it false: absent Required means required, since an operator who
// turns signing on almost certainly wants verification failures to abort
// startup rather than be silently skipped.
type SigningConfig struct {
	Enabled       bool
	Required      *bool
	AllowRotation bool
	PinnedVersion string
	PinnedHash    string
}

// RequiredOrDefault reports whether a failed bundle verification should
// fail closed: true unless Required was explicitly set to false.
func (c SigningConfig) RequiredOrDefault() bool {
	if c.Required == nil {
		return true
	}
	return *c.Required
}

// CheckPins enforces SigningConfig's pinnedVersion/pinnedHash against an
// already-verified bundle. Must run only after Verify succeeds.
func CheckPins(cfg SigningConfig, bundle SignedBundle) error {
	if cfg.PinnedVersion != "" && cfg.PinnedVersion != bundle.Version {
		return &BundlePinError{Reason: fmt.Sprintf("expected version %q, got %q", cfg.PinnedVersion, bundle.Version)}
	}
	if cfg.PinnedHash != "" && cfg.PinnedHash != bundle.PayloadHash {
		return &BundlePinError{Reason: fmt.Sprintf("expected payload hash %q, got %q", cfg.PinnedHash, bundle.PayloadHash)}
	}
	return nil
}
