package attestation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/eunej/CleanField/internal/model"
	"github.com/gowebpki/jcs"
)

// CheckDateLayout formats check dates as ISO-8601 UTC with milliseconds
const CheckDateLayout = "2006-01-02T15:04:05.000Z07:00"

type hashInput struct {
	Data        model.AttestationData `json:"data"`
	Requester   string                `json:"requester"`
	AppID       string                `json:"app_id"`
	TimestampMs int64                 `json:"timestamp"`
	Salt        string                `json:"salt"`
}

// CanonicalPayload serializes the attested data plus binding fields as
// RFC 8785 canonical JSON, so any party can reproduce the exact bytes.
func CanonicalPayload(data model.AttestationData, requester, appID string, timestampMs int64, salt string) ([]byte, error) {
	raw, err := json.Marshal(hashInput{
		Data:        data,
		Requester:   requester,
		AppID:       appID,
		TimestampMs: timestampMs,
		Salt:        salt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal attestation payload: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize attestation payload: %w", err)
	}
	return canonical, nil
}

// ProofHash returns 0x followed by the lowercase hex SHA-256 of payload
func ProofHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "0x" + hex.EncodeToString(sum[:])
}

// SigningMessage is the byte string the attestor signs
func SigningMessage(proofHash string, timestampMs int64, appID string) []byte {
	return []byte(fmt.Sprintf("%s:%d:%s", proofHash, timestampMs, appID))
}
