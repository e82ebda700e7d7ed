package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingUserID     = errors.New("user identifier is required")
	noOpLogger           = zap.NewNop()
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the machine-readable error code.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "records.service.new"
	opList       = "records.list"
	opUpsert     = "records.upsert"
	opDelete     = "records.delete"
	opSyncMerge  = "records.sync_merge"
	opDownload   = "records.download"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies required by the record store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for records submitted without one.
type IDProvider interface {
	NewID() (string, error)
}

// Service persists per-user bottle and tasting records. Both kinds share
// the same last-write-wins upsert semantics.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the record store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// List returns all records of one kind owned by the user.
func (s *Service) List(ctx context.Context, userID string, kind Kind) ([]Record, error) {
	if s.db == nil {
		return nil, newServiceError(opList, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		return nil, newServiceError(opList, "missing_user_id", errMissingUserID)
	}

	var result []Record
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND kind = ?", userID, kind).
		Order("updated_at_s DESC").
		Find(&result).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID), zap.String("kind", kind.String()))
		return nil, newServiceError(opList, "query_failed", err)
	}
	return result, nil
}

// Upsert inserts or overwrites the record identified by (kind, user, id).
// A blank id falls back to the payload's own "id" field, then to a freshly
// generated one. Concurrent writers to the same id race last-write-wins.
func (s *Service) Upsert(ctx context.Context, userID string, kind Kind, recordID string, payload json.RawMessage) (Record, error) {
	if s.db == nil {
		return Record{}, newServiceError(opUpsert, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		return Record{}, newServiceError(opUpsert, "missing_user_id", errMissingUserID)
	}

	record, err := s.applyUpsert(ctx, s.db.WithContext(ctx), userID, kind, recordID, payload)
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// Delete removes the record if owned by the user. Absent or foreign-owned
// records make it a silent no-op.
func (s *Service) Delete(ctx context.Context, userID string, kind Kind, recordID string) error {
	if s.db == nil {
		return newServiceError(opDelete, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		return newServiceError(opDelete, "missing_user_id", errMissingUserID)
	}
	err := s.db.WithContext(ctx).
		Where("kind = ? AND user_id = ? AND record_id = ?", kind, userID, recordID).
		Delete(&Record{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("user_id", userID), zap.String("record_id", recordID))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

// SyncCounts reports how many records of each kind a merge applied.
type SyncCounts struct {
	Bottles  int
	Tastings int
}

// SyncMerge applies both batches inside a single transaction. Any failing
// upsert rolls back every record in both batches, so a retried client can
// resubmit the whole batch without duplicating or losing data.
func (s *Service) SyncMerge(ctx context.Context, userID string, bottles, tastings []json.RawMessage) (SyncCounts, error) {
	if s.db == nil {
		return SyncCounts{}, newServiceError(opSyncMerge, "missing_database", errMissingDatabase)
	}
	if userID == "" {
		return SyncCounts{}, newServiceError(opSyncMerge, "missing_user_id", errMissingUserID)
	}

	counts := SyncCounts{}
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, payload := range bottles {
			if _, err := s.applyUpsert(ctx, tx, userID, KindBottle, "", payload); err != nil {
				return err
			}
			counts.Bottles++
		}
		for _, payload := range tastings {
			if _, err := s.applyUpsert(ctx, tx, userID, KindTasting, "", payload); err != nil {
				return err
			}
			counts.Tastings++
		}
		return nil
	})
	if txErr != nil {
		s.logError(opSyncMerge, "merge_rolled_back", txErr, zap.String("user_id", userID))
		return SyncCounts{}, txErr
	}
	return counts, nil
}

// Download returns every record payload owned by the user, grouped by kind.
func (s *Service) Download(ctx context.Context, userID string) (bottles, tastings []json.RawMessage, err error) {
	bottleRecords, err := s.List(ctx, userID, KindBottle)
	if err != nil {
		return nil, nil, newServiceError(opDownload, "list_bottles_failed", err)
	}
	tastingRecords, err := s.List(ctx, userID, KindTasting)
	if err != nil {
		return nil, nil, newServiceError(opDownload, "list_tastings_failed", err)
	}

	bottles = make([]json.RawMessage, 0, len(bottleRecords))
	for _, record := range bottleRecords {
		bottles = append(bottles, json.RawMessage(record.PayloadJSON))
	}
	tastings = make([]json.RawMessage, 0, len(tastingRecords))
	for _, record := range tastingRecords {
		tastings = append(tastings, json.RawMessage(record.PayloadJSON))
	}
	return bottles, tastings, nil
}

// applyUpsert resolves the record identity, stamps timestamps, and performs
// the insert-or-overwrite against the supplied handle (plain or transactional).
func (s *Service) applyUpsert(ctx context.Context, tx *gorm.DB, userID string, kind Kind, explicitID string, payload json.RawMessage) (Record, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		if err == nil {
			err = ErrInvalidPayload
		}
		return Record{}, newServiceError(opUpsert, "payload_decode_failed", fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}

	recordID := explicitID
	if recordID == "" {
		if embedded, ok := fields["id"].(string); ok {
			recordID = embedded
		}
	}
	if recordID == "" {
		generated, err := s.idProvider.NewID()
		if err != nil {
			return Record{}, newServiceError(opUpsert, "id_generation_failed", err)
		}
		recordID = generated
	}
	if err := validateRecordID(recordID); err != nil {
		return Record{}, newServiceError(opUpsert, "invalid_record_id", err)
	}

	// The stored payload always carries its resolved id so a later download
	// round-trips it to the client.
	fields["id"] = recordID
	payloadJSON, err := json.Marshal(fields)
	if err != nil {
		return Record{}, newServiceError(opUpsert, "payload_encode_failed", err)
	}

	now := s.clock().UTC().Unix()
	record := Record{
		Kind:             kind,
		UserID:           userID,
		RecordID:         recordID,
		PayloadJSON:      string(payloadJSON),
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}

	err = tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "user_id"}, {Name: "record_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload_json", "updated_at_s"}),
	}).Create(&record).Error
	if err != nil {
		s.logError(opUpsert, "record_save_failed", err,
			zap.String("user_id", userID),
			zap.String("kind", kind.String()),
			zap.String("record_id", recordID))
		return Record{}, newServiceError(opUpsert, "record_save_failed", err)
	}

	return record, nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("records service error", attrs...)
}
