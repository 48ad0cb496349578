package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"newsintel/internal/domain"
	"newsintel/internal/ports"
)

// Resolver obtains per-user credentials: local cache first, then the remote
// record store by identity, then by email, finally the operator-configured
// fallback secret for the secondary key. Successful remote lookups are
// written back to the cache.
type Resolver struct {
	cache          ports.CredentialCache
	store          ports.CredentialStore
	fallbackSecret string
	logger         *slog.Logger
}

// NewResolver wires cache and store; either may be nil and is then skipped.
func NewResolver(cache ports.CredentialCache, store ports.CredentialStore, fallbackSecret string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		cache:          cache,
		store:          store,
		fallbackSecret: fallbackSecret,
		logger:         logger,
	}
}

// Resolve produces complete credentials for the user or fails with
// domain.ErrCredentialsMissing. No provider or source call is issued before
// this succeeds.
func (r *Resolver) Resolve(ctx context.Context, user domain.User) (domain.Credentials, error) {
	if r.cache != nil && user.ID != "" {
		creds, ok, err := r.cache.Get(ctx, user.ID)
		if err != nil {
			r.logger.Warn("credential cache read failed", "user", user.ID, "error", err)
		} else if ok && creds.Complete() {
			return r.withFallbackSecret(creds), nil
		}
	}

	creds, err := r.fromStore(ctx, user)
	if err != nil {
		return domain.Credentials{}, err
	}

	creds = r.withFallbackSecret(creds)
	if !creds.Complete() {
		return domain.Credentials{}, fmt.Errorf("user %s record lacks required keys: %w", user.ID, domain.ErrCredentialsMissing)
	}

	if r.cache != nil && user.ID != "" {
		if err := r.cache.Put(ctx, user.ID, creds); err != nil {
			r.logger.Warn("credential cache write failed", "user", user.ID, "error", err)
		}
	}

	return creds, nil
}

// RotatePrimaryKey updates the remote record and drops the cached copy so the
// next run resolves fresh keys.
func (r *Resolver) RotatePrimaryKey(ctx context.Context, user domain.User, newKey string) error {
	if r.store == nil {
		return fmt.Errorf("no credential store configured")
	}
	if newKey == "" {
		return fmt.Errorf("new key is empty")
	}

	patch := domain.CredentialPatch{PrimaryKey: &newKey}
	if err := r.store.UpdateKeys(ctx, user.ID, patch); err != nil {
		return fmt.Errorf("update keys for %s: %w", user.ID, err)
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx, user.ID); err != nil {
			r.logger.Warn("credential cache invalidation failed", "user", user.ID, "error", err)
		}
	}

	return nil
}

func (r *Resolver) fromStore(ctx context.Context, user domain.User) (domain.Credentials, error) {
	if r.store == nil {
		return domain.Credentials{}, fmt.Errorf("no credential store configured: %w", domain.ErrCredentialsMissing)
	}

	record, err := r.store.GetByID(ctx, user.ID)
	if err == nil {
		return record.Credentials(), nil
	}
	if !errors.Is(err, domain.ErrRecordAbsent) {
		return domain.Credentials{}, fmt.Errorf("lookup user %s: %w", user.ID, err)
	}

	if user.Email == "" {
		return domain.Credentials{}, fmt.Errorf("user %s not found: %w", user.ID, domain.ErrCredentialsMissing)
	}

	r.logger.Debug("identity lookup empty, retrying by email", "user", user.ID)
	record, err = r.store.GetByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, domain.ErrRecordAbsent) {
			return domain.Credentials{}, fmt.Errorf("no record for %s: %w", user.Email, domain.ErrCredentialsMissing)
		}
		return domain.Credentials{}, fmt.Errorf("lookup by email %s: %w", user.Email, err)
	}

	return record.Credentials(), nil
}

func (r *Resolver) withFallbackSecret(creds domain.Credentials) domain.Credentials {
	if creds.SecondaryKey == "" {
		creds.SecondaryKey = r.fallbackSecret
	}
	return creds
}
