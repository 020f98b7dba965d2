package ledger

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/tenantonboard/internal/domain"
)

// KeyPrefix namespaces ledger entries in the shared store.
const KeyPrefix = "acl.tp.iv-"

// Store is the key/value contract the ledger needs. Get reports a missing or
// expired key through found=false, never through err.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
}

// Ledger holds the single currently valid activation token per prospectus.
type Ledger struct {
	store  Store
	logger *slog.Logger
}

// New creates a ledger over store.
func New(store Store, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{store: store, logger: logger}
}

// Key returns the store key for a prospectus.
func Key(prospectusID string) string {
	return KeyPrefix + prospectusID
}

// Put records tok as the only valid token for prospectusID, replacing any
// earlier one.
func (l *Ledger) Put(ctx context.Context, prospectusID, tok string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ledger ttl must be positive, got %s", ttl)
	}
	if err := l.store.Set(ctx, Key(prospectusID), tok, ttl); err != nil {
		l.logger.Error("ledger write failed",
			slog.String("prospectus_id", prospectusID),
			slog.String("error", err.Error()),
		)
		return domain.WrapError(domain.CodeLedgerUnavailable, "verification ledger unavailable", err)
	}
	return nil
}

// Get returns the current token, if any.
func (l *Ledger) Get(ctx context.Context, prospectusID string) (string, bool, error) {
	tok, found, err := l.store.Get(ctx, Key(prospectusID))
	if err != nil {
		l.logger.Error("ledger read failed",
			slog.String("prospectus_id", prospectusID),
			slog.String("error", err.Error()),
		)
		return "", false, domain.WrapError(domain.CodeLedgerUnavailable, "verification ledger unavailable", err)
	}
	return tok, found, nil
}

// Matches reports whether presented equals the current entry. A missing entry
// never matches.
func (l *Ledger) Matches(ctx context.Context, prospectusID, presented string) (bool, error) {
	current, found, err := l.Get(ctx, prospectusID)
	if err != nil || !found {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(presented)) == 1, nil
}

// Invalidate removes the entry so the token cannot be presented again.
func (l *Ledger) Invalidate(ctx context.Context, prospectusID string) error {
	if err := l.store.Delete(ctx, Key(prospectusID)); err != nil {
		return domain.WrapError(domain.CodeLedgerUnavailable, "verification ledger unavailable", err)
	}
	return nil
}
