package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads credentials from the environment. It is read-only
// and holds at most one account.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. An empty store matches any
// store; otherwise the environment store domain, when set, must match.
func (e *EnvironmentStore) Retrieve(store string) (*Account, error) {
	token := firstEnv("SHOPFILES_ACCESS_TOKEN", "ACCESS_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	envStore := NormalizeStore(firstEnv("SHOPFILES_STORE", "SHOPIFY_STORE"))
	switch {
	case store == "":
		store = envStore
	case envStore != "" && envStore != store:
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Store:        store,
		AccessToken:  token,
		APIVersion:   firstEnv("SHOPFILES_API_VERSION", "API_VERSION"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil || account.Store == "" {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(store string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(store string) bool {
	_, err := e.Retrieve(store)
	return err == nil
}
