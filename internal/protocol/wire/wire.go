// Package wire encodes the envelope header: the 32-byte associated data of the
// session followed by the JSON ratchet header.
package wire

import (
	"encoding/json"
	"fmt"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// ADSize is the length of the associated-data prefix.
const ADSize = len(domain.SharedData{})

// EncodeHeader returns ad ‖ JSON(h).
func EncodeHeader(ad domain.SharedData, h domain.RatchetHeader) ([]byte, error) {
	body, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	out := make([]byte, 0, ADSize+len(body))
	out = append(out, ad[:]...)
	return append(out, body...), nil
}

// DecodeHeader splits and validates an envelope header.
func DecodeHeader(b []byte) (domain.SharedData, domain.RatchetHeader, error) {
	var ad domain.SharedData
	if len(b) < ADSize {
		return ad, domain.RatchetHeader{}, fmt.Errorf("header of %d bytes: %w", len(b), errs.ErrInvalidEnvelope)
	}
	copy(ad[:], b[:ADSize])

	var h domain.RatchetHeader
	if err := json.Unmarshal(b[ADSize:], &h); err != nil {
		return ad, domain.RatchetHeader{}, fmt.Errorf("header json: %v: %w", err, errs.ErrInvalidEnvelope)
	}
	if h.DiffieHellmanPublicKey.IsZero() {
		return ad, domain.RatchetHeader{}, fmt.Errorf("header without ratchet key: %w", errs.ErrInvalidEnvelope)
	}
	if hs := h.Handshake; hs != nil {
		if hs.SenderIdentity.IsZero() || hs.SignedPreKeyID == "" {
			return ad, domain.RatchetHeader{}, fmt.Errorf("incomplete handshake: %w", errs.ErrInvalidEnvelope)
		}
	}
	return ad, h, nil
}
