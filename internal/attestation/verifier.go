package attestation

import (
	"regexp"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// Verification failure reasons
const (
	ReasonNotSuccessful    = "not successful"
	ReasonExpired          = "expired"
	ReasonInvalidProof     = "invalid proof"
	ReasonInvalidSignature = "invalid signature"
)

// DefaultTTL is how long an attestation stays valid after creation
const DefaultTTL = 24 * time.Hour

var (
	proofHashPattern = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	signaturePattern = regexp.MustCompile(`^[0-9a-f]{64,}$`)
)

// VerifierConfig controls how thorough verification is
type VerifierConfig struct {
	TTL time.Duration
	// Strict recomputes the proof hash and checks the Ed25519 signature
	// against the trusted attestor key. Required in production.
	Strict bool
}

// Verifier checks attestation integrity and freshness. It never mutates its input.
type Verifier struct {
	cfg     VerifierConfig
	builder *Builder
}

func NewVerifier(cfg VerifierConfig, builder *Builder) *Verifier {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Verifier{cfg: cfg, builder: builder}
}

// Verify runs the checks in order and reports the first failure
func (v *Verifier) Verify(att *model.Attestation, now time.Time) model.VerificationResult {
	result := model.VerificationResult{VerifiedAt: now.UTC()}
	if att == nil || !att.Success {
		result.Reason = ReasonNotSuccessful
		if att != nil {
			result.AttestationID = att.ID
		}
		return result
	}
	result.AttestationID = att.ID

	if now.Sub(att.Timestamp) > v.cfg.TTL {
		result.Reason = ReasonExpired
		return result
	}

	if !proofHashPattern.MatchString(att.Proof.Hash) {
		result.Reason = ReasonInvalidProof
		return result
	}

	if !v.cfg.Strict {
		if !signaturePattern.MatchString(att.Proof.Signature) {
			result.Reason = ReasonInvalidSignature
			return result
		}
		result.Verified = true
		return result
	}

	hash, err := v.builder.Recompute(*att)
	if err != nil || hash != att.Proof.Hash {
		result.Reason = ReasonInvalidProof
		return result
	}

	if att.Proof.AttestorPublicKey != v.builder.PublicKey() {
		result.Reason = ReasonInvalidSignature
		return result
	}
	ok, err := VerifySignature(att.Proof.AttestorPublicKey, att.Proof.Signature,
		SigningMessage(att.Proof.Hash, att.Timestamp.UnixMilli(), att.AppID))
	if err != nil || !ok {
		result.Reason = ReasonInvalidSignature
		return result
	}

	result.Verified = true
	return result
}
