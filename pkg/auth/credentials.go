package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Account holds the Admin API credentials for one store
type Account struct {
	Store        string    `json:"store"`
	AccessToken  string    `json:"access_token"`
	APIVersion   string    `json:"api_version,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials.
// Accounts are keyed by their normalised store domain.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(store string) (*Account, error)
	List() ([]*Account, error)
	Delete(store string) error
	Exists(store string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the system keyring when available, an
// encrypted file in the config directory, and the environment
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// NormalizeStore turns "https://Demo.myshopify.com/" or "demo" into
// "demo.myshopify.com"
func NormalizeStore(store string) string {
	s := strings.ToLower(strings.TrimSpace(store))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if s != "" && !strings.Contains(s, ".") {
		s += ".myshopify.com"
	}
	return s
}

// Store saves credentials in the first store that accepts them
func (m *Manager) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	account.Store = NormalizeStore(account.Store)
	if account.Store == "" {
		return errors.New("store domain is required")
	}
	if account.AccessToken == "" {
		return errors.New("access token is required")
	}
	account.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(store string) (*Account, error) {
	store = NormalizeStore(store)
	for _, s := range m.stores {
		if account, err := s.Retrieve(store); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for store %s", ErrCredentialsNotFound, store)
}

// RetrieveDefault returns environment credentials when set, otherwise the
// first stored account by store name
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, s := range m.stores {
		if env, ok := s.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, ErrCredentialsNotFound
}

// List returns accounts from every store, newest copy per store domain,
// sorted by domain
func (m *Manager) List() ([]*Account, error) {
	byStore := make(map[string]*Account)
	for _, s := range m.stores {
		accounts, err := s.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byStore[account.Store]; !ok || account.LastModified.After(existing.LastModified) {
				byStore[account.Store] = account
			}
		}
	}

	result := make([]*Account, 0, len(byStore))
	for _, account := range byStore {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Store < result[j].Store })
	return result, nil
}

// Delete removes credentials from every store that holds them
func (m *Manager) Delete(store string) error {
	store = NormalizeStore(store)
	var (
		deleted bool
		lastErr error
	)
	for _, s := range m.stores {
		err := s.Delete(store)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w for store %s", ErrCredentialsNotFound, store)
	}
	return nil
}

// DeleteAll removes all stored credentials
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		_ = m.Delete(account.Store)
	}
	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "shopfiles")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "shopfiles")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "shopfiles")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "shopfiles")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy of account with the token masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.AccessToken = maskString(account.AccessToken)
	return &masked
}

// maskString masks all but the first 6 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 12 {
		return "********"
	}
	return s[:6] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
