package store

import (
	"encoding/json"
	"fmt"

	"cipherchat/internal/domain"
	"cipherchat/internal/errs"
)

// SessionCodecVersion is the newest session blob format we write and read.
const SessionCodecVersion = 1

type sessionBlob struct {
	V      int             `json:"v"`
	Record json.RawMessage `json:"record"`
}

// EncodeSession serialises rec into the versioned blob stored by every
// session backend.
func EncodeSession(rec domain.SessionRecord) ([]byte, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", rec.Key(), err)
	}
	return json.Marshal(sessionBlob{V: SessionCodecVersion, Record: raw})
}

// DecodeSession parses a blob stored under key. Any failure, including an
// unknown version or a record filed under another key, is ErrCorruptState.
func DecodeSession(key domain.SessionKey, b []byte) (domain.SessionRecord, error) {
	var bl sessionBlob
	if err := json.Unmarshal(b, &bl); err != nil {
		return domain.SessionRecord{}, corrupt(key, err.Error())
	}
	if bl.V < 1 || bl.V > SessionCodecVersion {
		return domain.SessionRecord{}, corrupt(key, fmt.Sprintf("unsupported version %d", bl.V))
	}
	var rec domain.SessionRecord
	if err := json.Unmarshal(bl.Record, &rec); err != nil {
		return domain.SessionRecord{}, corrupt(key, err.Error())
	}
	if rec.Key() != key {
		return domain.SessionRecord{}, corrupt(key, "record belongs to "+rec.Key().String())
	}
	return rec, nil
}

func corrupt(key domain.SessionKey, reason string) error {
	return fmt.Errorf("session %s: %s: %w", key, reason, errs.ErrCorruptState)
}
