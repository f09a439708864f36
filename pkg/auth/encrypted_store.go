package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "SHOPFILES_PASSPHRASE"
)

// EncryptedFileStore keeps all accounts in one AES-GCM encrypted file. The
// key is derived with PBKDF2 from a passphrase stored beside the file, or
// from PassphraseEnv.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// fileFormat is the on-disk envelope
type fileFormat struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store at path, generating a passphrase on
// first use
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	store := &EncryptedFileStore{path: path}
	passphrase, err := store.loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	store.passphrase = passphrase
	return store, nil
}

// Store saves credentials to the encrypted file
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Store == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load existing data: %w", err)
	}
	if accounts == nil {
		accounts = make(map[string]Account)
	}
	accounts[account.Store] = *account
	return e.save(accounts, salt)
}

// Retrieve gets credentials from the encrypted file
func (e *EncryptedFileStore) Retrieve(store string) (*Account, error) {
	if store == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	account, ok := accounts[store]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns all stored accounts
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	accounts, _, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*Account{}, nil
		}
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	out := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		acc := account
		out = append(out, &acc)
	}
	return out, nil
}

// Delete removes credentials; the file goes away with the last account
func (e *EncryptedFileStore) Delete(store string) error {
	if store == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to load data: %w", err)
	}
	if _, ok := accounts[store]; !ok {
		return ErrCredentialsNotFound
	}

	delete(accounts, store)
	if len(accounts) == 0 {
		return os.Remove(e.path)
	}
	return e.save(accounts, salt)
}

// Exists checks if credentials exist
func (e *EncryptedFileStore) Exists(store string) bool {
	account, err := e.Retrieve(store)
	return err == nil && account != nil
}

// load decrypts the file and returns its accounts and salt
func (e *EncryptedFileStore) load() (map[string]Account, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var envelope fileFormat
	if err := json.Unmarshal(content, &envelope); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(envelope.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(envelope.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var accounts map[string]Account
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, salt, nil
}

// save encrypts accounts and replaces the file. A nil salt is generated.
func (e *EncryptedFileStore) save(accounts map[string]Account, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %w", err)
	}
	sealed, err := encrypt(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(fileFormat{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase reads PassphraseEnv, then .passphrase beside the store
// file, generating the latter when missing
func (e *EncryptedFileStore) loadPassphrase() (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	passphraseFile := filepath.Join(filepath.Dir(e.path), ".passphrase")
	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

// encrypt seals plaintext with AES-GCM, prefixing the nonce
func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt opens a nonce-prefixed AES-GCM ciphertext
func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
