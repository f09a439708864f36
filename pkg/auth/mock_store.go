package auth

import "sync"

// MockStore is an in-memory CredentialStore with error injection for tests
type MockStore struct {
	accounts map[string]*Account
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{accounts: make(map[string]*Account)}
}

// NewMockManager creates a Manager over a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	mock := NewMockStore()
	return NewManagerWithStores(mock), mock
}

func (m *MockStore) Store(account *Account) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if account == nil || account.Store == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *account
	m.accounts[account.Store] = &stored
	return nil
}

func (m *MockStore) Retrieve(store string) (*Account, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if store == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[store]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	out := *account
	return &out, nil
}

func (m *MockStore) List() ([]*Account, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		out := *account
		accounts = append(accounts, &out)
	}
	return accounts, nil
}

func (m *MockStore) Delete(store string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[store]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, store)
	return nil
}

func (m *MockStore) Exists(store string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[store]
	return ok
}

// Count returns the number of stored accounts
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
