package signing

import "fmt"

// SignatureVerificationError reports a bundle whose signature does not
// verify against the trusted key set, or whose recorded payload hash
// does not match its payload.
type SignatureVerificationError struct {
	Reason string
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Reason)
}

// BundleFormatError reports a malformed bundle: missing required fields
// or a signature that is not valid base64.
type BundleFormatError struct {
	Reason string
}

func (e *BundleFormatError) Error() string {
	return fmt.Sprintf("invalid bundle format: %s", e.Reason)
}

// BundlePinError reports a verified bundle whose version or payload hash
// does not match the pin recorded in SigningConfig.
type BundlePinError struct {
	Reason string
}

func (e *BundlePinError) Error() string {
	return fmt.Sprintf("bundle pin mismatch: %s", e.Reason)
}
