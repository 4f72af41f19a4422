package attestation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/eunej/CleanField/internal/model"
)

// Subject identifies what an attestation is about and who asked for it
type Subject struct {
	FarmID    string
	GistdaID  string
	Location  model.Location
	Requester string
}

// BuilderConfig holds the application constants bound into every proof
type BuilderConfig struct {
	AppID      string
	TemplateID string
	Salt       string
}

// Builder packages detection results into signed attestations
type Builder struct {
	cfg      BuilderConfig
	attestor *Attestor
}

func NewBuilder(cfg BuilderConfig, attestor *Attestor) *Builder {
	return &Builder{cfg: cfg, attestor: attestor}
}

// PublicKey returns the attestor key attestations are signed with
func (b *Builder) PublicKey() string {
	return b.attestor.PublicKey()
}

// Build creates an attestation for det at now. An unavailable detection still
// yields an attestation, marked unsuccessful and carrying no proof.
func (b *Builder) Build(det model.DetectionResult, subj Subject, now time.Time) (model.Attestation, error) {
	now = now.UTC().Truncate(time.Millisecond)
	id, err := newAttestationID(subj.FarmID, now)
	if err != nil {
		return model.Attestation{}, err
	}

	att := model.Attestation{
		ID:        id,
		Timestamp: now,
		Requester: subj.Requester,
		AppID:     b.cfg.AppID,
		Data: model.AttestationData{
			FarmID:            subj.FarmID,
			GistdaID:          subj.GistdaID,
			NoBurningDetected: det.Available() && det.Clean,
			HotspotCount:      det.HotspotCount,
			CheckDate:         det.CheckedAt.UTC().Format(CheckDateLayout),
			Location:          subj.Location,
			TemplateID:        b.cfg.TemplateID,
		},
	}

	if !det.Available() {
		att.Data.HotspotCount = model.HotspotCountUnavailable
		att.Error = "detection data unavailable"
		if det.Reason != "" {
			att.Error += ": " + det.Reason
		}
		return att, nil
	}

	hash, err := b.Recompute(att)
	if err != nil {
		return model.Attestation{}, err
	}

	att.Success = true
	att.Proof = model.Proof{
		Hash:              hash,
		Signature:         b.attestor.Sign(SigningMessage(hash, now.UnixMilli(), b.cfg.AppID)),
		AttestorPublicKey: b.attestor.PublicKey(),
	}
	return att, nil
}

// Recompute derives the proof hash of att from its embedded fields
func (b *Builder) Recompute(att model.Attestation) (string, error) {
	payload, err := CanonicalPayload(att.Data, att.Requester, att.AppID, att.Timestamp.UnixMilli(), b.cfg.Salt)
	if err != nil {
		return "", err
	}
	return ProofHash(payload), nil
}

// OnChainPayload returns the compact form submitted alongside a settlement
func OnChainPayload(att model.Attestation) model.OnChainProof {
	return model.OnChainProof{
		FarmID:    att.Data.FarmID,
		ProofHash: att.Proof.Hash,
		NoBurning: att.Data.NoBurningDetected,
		Timestamp: att.Timestamp.UnixMilli(),
		Signature: att.Proof.Signature,
	}
}

func newAttestationID(farmID string, now time.Time) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate attestation id: %w", err)
	}
	return fmt.Sprintf("att_%s_%d_%s", farmID, now.UnixMilli(), hex.EncodeToString(b[:])), nil
}
