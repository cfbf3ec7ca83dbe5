package tracking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ErrConflict is returned by Store.Set when the stored revision moved since
// the record was read.
var ErrConflict = errors.New("tracking: revision conflict")

type ConflictError struct {
	Key              string
	ExpectedRevision int64
	CurrentRevision  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("tracking: revision conflict on %s: expected %d, current %d", e.Key, e.ExpectedRevision, e.CurrentRevision)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Store persists one Record per conversation key.
//
// Get returns an empty record at revision 0 when the key is unknown. Set
// writes rec only if the stored revision still equals rec.Revision and
// returns the new revision; otherwise it returns a *ConflictError.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	Set(ctx context.Context, key string, rec Record) (int64, error)
}

func encodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode tracking record: %w", err)
	}
	rec.normalize()
	return rec, nil
}

// Digest is the hex SHA-256 of v's canonical JSON form.
func Digest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
