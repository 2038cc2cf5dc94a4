package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Eraser removes everything stored about a child.
type Eraser interface {
	DeleteChild(ctx context.Context, childID string) (int64, error)
	PurgeExpired(ctx context.Context, retentionDays int) (int64, error)
}

// Invalidator drops derived per-child state kept outside the store, such
// as rate limit counters.
type Invalidator interface {
	InvalidateChild(ctx context.Context, childID string) (int, error)
}

// Erasure is the outcome of a deletion request.
type Erasure struct {
	ChildRef    string    `json:"childRef"`
	RowsDeleted int64     `json:"rowsDeleted"`
	KeysCleared int       `json:"keysCleared"`
	ErasedAt    time.Time `json:"erasedAt"`
}

// PrivacyService handles data erasure and retention
type PrivacyService struct {
	eraser        Eraser
	invalidators  []Invalidator
	retentionDays int
	cacheTTL      time.Duration
	now           func() time.Time
}

// NewService creates a new privacy service. A retention of zero days
// disables the scheduled purge.
func NewService(eraser Eraser, retentionDays int, cacheTTL time.Duration, invalidators ...Invalidator) *PrivacyService {
	return &PrivacyService{
		eraser:        eraser,
		invalidators:  invalidators,
		retentionDays: retentionDays,
		cacheTTL:      cacheTTL,
		now:           time.Now,
	}
}

// Redact returns a stable, non-reversible reference to an identifier
// for logs and receipts.
func Redact(id string) string {
	hash := sha256.Sum256([]byte(id))
	return hex.EncodeToString(hash[:])[:12]
}

// EraseChild removes all data associated with a child. Failing to clear
// derived state is logged but does not fail the erasure.
func (ps *PrivacyService) EraseChild(ctx context.Context, childID string) (*Erasure, error) {
	ref := Redact(childID)
	slog.Info("Initiating child data deletion", "child_ref", ref)

	rows, err := ps.eraser.DeleteChild(ctx, childID)
	if err != nil {
		return nil, err
	}

	keys := 0
	for _, inv := range ps.invalidators {
		n, err := inv.InvalidateChild(ctx, childID)
		if err != nil {
			slog.Warn("Failed to clear derived child state", "child_ref", ref, "error", err)
		}
		keys += n
	}

	slog.Info("Data deletion completed", "child_ref", ref, "rows_deleted", rows, "keys_cleared", keys)
	return &Erasure{ChildRef: ref, RowsDeleted: rows, KeysCleared: keys, ErasedAt: ps.now().UTC()}, nil
}

// GetDataRetentionInfo provides information about data retention policies
func (ps *PrivacyService) GetDataRetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"assessment_retention_days": ps.retentionDays,
		"snapshot_retention_days":   ps.retentionDays,
		"cache_retention_seconds":   int(ps.cacheTTL.Seconds()),
		"scheduled_purge_enabled":   ps.retentionDays > 0,
		"log_identifier_method":     "SHA-256 prefix",
		"erasure_endpoint":          "DELETE /v1/children/{childID}",
	}
}

// PurgeNow deletes data older than the retention window.
func (ps *PrivacyService) PurgeNow(ctx context.Context) (int64, error) {
	if ps.retentionDays <= 0 {
		return 0, nil
	}
	removed, err := ps.eraser.PurgeExpired(ctx, ps.retentionDays)
	if err != nil {
		return 0, err
	}
	slog.Info("Data cleanup completed", "retention_days", ps.retentionDays, "rows_deleted", removed)
	return removed, nil
}

// RunRetention purges once, then every interval until ctx is done.
func (ps *PrivacyService) RunRetention(ctx context.Context, interval time.Duration) {
	if ps.retentionDays <= 0 || interval <= 0 {
		slog.Info("Scheduled data cleanup disabled")
		return
	}
	slog.Info("Scheduling data cleanup", "retention_days", ps.retentionDays, "interval", interval)

	purge := func() {
		if _, err := ps.PurgeNow(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Failed to run data cleanup", "error", err)
		}
	}

	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
