package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "shopfiles"
	keyringPrefix  = "store_"
	// keyringIndex lists the stores saved in the keyring, which cannot
	// enumerate its own entries
	keyringIndex = "_stores"
)

// KeyringStore implements CredentialStore using the system keychain
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore returns a KeyringStore if the system keyring is usable
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "test_availability"
	if err := keyring.Set(keyringService, probe, "test"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Store == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(keyringService, keyringPrefix+account.Store, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	stores := k.index()
	if !contains(stores, account.Store) {
		stores = append(stores, account.Store)
	}
	return k.saveIndex(stores)
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(store string) (*Account, error) {
	if store == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+store)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns the accounts recorded in the keyring index
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	stores := k.index()
	k.mu.Unlock()

	accounts := make([]*Account, 0, len(stores))
	for _, store := range stores {
		if account, err := k.Retrieve(store); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(store string) error {
	if store == "" {
		return ErrInvalidCredentials
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Delete(keyringService, keyringPrefix+store); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	stores := k.index()
	kept := stores[:0]
	for _, s := range stores {
		if s != store {
			kept = append(kept, s)
		}
	}
	return k.saveIndex(kept)
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(store string) bool {
	if store == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+store)
	return err == nil
}

func (k *KeyringStore) index() []string {
	raw, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil
	}
	var stores []string
	if err := json.Unmarshal([]byte(raw), &stores); err != nil {
		return nil
	}
	return stores
}

func (k *KeyringStore) saveIndex(stores []string) error {
	if len(stores) == 0 {
		if err := keyring.Delete(keyringService, keyringIndex); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to update keyring index: %w", err)
		}
		return nil
	}
	sort.Strings(stores)
	data, err := json.Marshal(stores)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
