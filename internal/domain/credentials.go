package domain

// User identifies the session owner for credential resolution.
type User struct {
	ID    string
	Email string
}

// Credentials are the per-user secrets required to execute a run.
// SourceKey and PrimaryKey must be non-empty before the pipeline starts;
// SecondaryKey is optional and enables the fallback provider.
type Credentials struct {
	SourceKey    string `json:"sourceKey"`
	PrimaryKey   string `json:"primaryKey"`
	SecondaryKey string `json:"secondaryKey,omitempty"`
}

// Complete reports whether the mandatory keys are present.
func (c Credentials) Complete() bool {
	return c.SourceKey != "" && c.PrimaryKey != ""
}

// CredentialRecord is the raw user record held by the remote store.
// APIKey is a legacy field some records carry instead of the split keys.
type CredentialRecord struct {
	ID           string
	Email        string
	SourceKey    string
	PrimaryKey   string
	SecondaryKey string
	APIKey       string
}

// Credentials maps a store record into session credentials, falling back to
// the legacy combined key where a dedicated one is absent.
func (r CredentialRecord) Credentials() Credentials {
	creds := Credentials{
		SourceKey:    r.SourceKey,
		PrimaryKey:   r.PrimaryKey,
		SecondaryKey: r.SecondaryKey,
	}
	if creds.SourceKey == "" {
		creds.SourceKey = r.APIKey
	}
	if creds.PrimaryKey == "" {
		creds.PrimaryKey = r.APIKey
	}
	return creds
}

// CredentialPatch is a partial update applied during key rotation.
// Nil fields are left untouched.
type CredentialPatch struct {
	SourceKey    *string
	PrimaryKey   *string
	SecondaryKey *string
}
