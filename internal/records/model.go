package records

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the two record categories stored per user.
type Kind string

const (
	// KindBottle is a cellar bottle record.
	KindBottle Kind = "bottle"
	// KindTasting is a tasting-note record.
	KindTasting Kind = "tasting"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidKind indicates an unknown record kind.
	ErrInvalidKind = errors.New("records: invalid record kind")
	// ErrInvalidRecordID indicates a record identifier exceeding storage bounds.
	ErrInvalidRecordID = errors.New("records: invalid record id")
	// ErrInvalidPayload indicates the payload is not a JSON object.
	ErrInvalidPayload = errors.New("records: payload must be a json object")
)

// ParseKind validates raw input and returns a Kind.
func ParseKind(rawInput string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(rawInput)) {
	case string(KindBottle):
		return KindBottle, nil
	case string(KindTasting):
		return KindTasting, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, rawInput)
	}
}

// String returns the underlying kind name.
func (k Kind) String() string {
	return string(k)
}

// Record models one persisted JSON-blob record. The payload is opaque to
// the server beyond the well-known fields consulted for share redaction.
// (kind, user id, record id) is unique: re-submission overwrites.
type Record struct {
	Kind             Kind   `gorm:"column:kind;primaryKey;size:16;not null"`
	UserID           string `gorm:"column:user_id;primaryKey;size:190;not null;index:idx_records_user_kind,priority:1"`
	RecordID         string `gorm:"column:record_id;primaryKey;size:190;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null;index:idx_records_user_kind,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "records"
}

func validateRecordID(id string) error {
	if len(id) > maxIdentifierLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidRecordID, maxIdentifierLength)
	}
	return nil
}
