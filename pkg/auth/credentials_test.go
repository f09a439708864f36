package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearAuthEnv(t *testing.T) {
	for _, name := range []string{
		"SHOPFILES_ACCESS_TOKEN", "ACCESS_TOKEN",
		"SHOPFILES_STORE", "SHOPIFY_STORE",
		"SHOPFILES_API_VERSION", "API_VERSION",
	} {
		t.Setenv(name, "")
	}
}

func TestNormalizeStore(t *testing.T) {
	tests := map[string]string{
		"demo":                             "demo.myshopify.com",
		"Demo.myshopify.com":               "demo.myshopify.com",
		"https://demo.myshopify.com/admin": "demo.myshopify.com",
		"  shop.example.com ":              "shop.example.com",
		"":                                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeStore(in), in)
	}
}

func TestManagerLifecycle(t *testing.T) {
	manager, mock := NewMockManager()

	err := manager.Store(&Account{Store: "demo", AccessToken: "shpat_0123456789abcdef", APIVersion: "2024-10"})
	require.NoError(t, err)

	got, err := manager.Retrieve("https://demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "demo.myshopify.com", got.Store)
	assert.Equal(t, "shpat_0123456789abcdef", got.AccessToken)
	assert.False(t, got.LastModified.IsZero())

	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, manager.Delete("demo.myshopify.com"))
	assert.Equal(t, 0, mock.Count())

	_, err = manager.Retrieve("demo")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, manager.Delete("demo"), ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	assert.Error(t, manager.Store(nil))
	assert.Error(t, manager.Store(&Account{AccessToken: "shpat_x"}))
	assert.Error(t, manager.Store(&Account{Store: "demo"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keyring locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(&Account{Store: "demo", AccessToken: "shpat_abc"}))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	working.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Store: "other", AccessToken: "shpat_abc"})
	assert.ErrorContains(t, err, "disk full")
}

func TestManagerListSortedAndNewestWins(t *testing.T) {
	a, b := NewMockStore(), NewMockStore()
	manager := NewManagerWithStores(a, b)

	require.NoError(t, manager.Store(&Account{Store: "zeta", AccessToken: "old"}))
	require.NoError(t, manager.Store(&Account{Store: "alpha", AccessToken: "shpat_alpha"}))
	newer := &Account{Store: "zeta.myshopify.com", AccessToken: "new"}
	require.NoError(t, b.Store(newer))
	stored, _ := a.Retrieve("zeta.myshopify.com")
	newer.LastModified = stored.LastModified.Add(1)
	require.NoError(t, b.Store(newer))

	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alpha.myshopify.com", accounts[0].Store)
	assert.Equal(t, "new", accounts[1].AccessToken)
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	clearAuthEnv(t)
	mock := NewMockStore()
	manager := NewManagerWithStores(mock, NewEnvironmentStore())
	require.NoError(t, manager.Store(&Account{Store: "stored", AccessToken: "shpat_stored"}))

	got, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "stored.myshopify.com", got.Store)

	t.Setenv("SHOPFILES_ACCESS_TOKEN", "shpat_env")
	t.Setenv("SHOPIFY_STORE", "envshop")
	got, err = manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "shpat_env", got.AccessToken)
	assert.Equal(t, "envshop.myshopify.com", got.Store)
}

func TestRetrieveDefaultNone(t *testing.T) {
	clearAuthEnv(t)
	manager := NewManagerWithStores(NewMockStore(), NewEnvironmentStore())
	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	clearAuthEnv(t)
	env := NewEnvironmentStore()

	_, err := env.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, env.Store(&Account{Store: "x"}), ErrStoreUnavailable)
	assert.ErrorIs(t, env.Delete("x"), ErrStoreUnavailable)

	t.Setenv("ACCESS_TOKEN", "shpat_legacy")
	t.Setenv("API_VERSION", "2024-07")
	t.Setenv("SHOPIFY_STORE", "demo")

	got, err := env.Retrieve("")
	require.NoError(t, err)
	assert.Equal(t, "shpat_legacy", got.AccessToken)
	assert.Equal(t, "2024-07", got.APIVersion)
	assert.True(t, env.Exists("demo.myshopify.com"))
	assert.False(t, env.Exists("other.myshopify.com"))

	t.Setenv("SHOPFILES_ACCESS_TOKEN", "shpat_new")
	got, err = env.Retrieve("demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_new", got.AccessToken)

	accounts, err := env.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	path := filepath.Join(t.TempDir(), "creds", "credentials.enc")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	account := &Account{Store: "demo.myshopify.com", AccessToken: "shpat_secret_token_value", APIVersion: "2024-10"}
	require.NoError(t, store.Store(account))
	require.NoError(t, store.Store(&Account{Store: "other.myshopify.com", AccessToken: "shpat_other"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "shpat_secret_token_value")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.FileExists(t, filepath.Join(filepath.Dir(path), ".passphrase"))

	// a second instance reads the same passphrase and file
	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	got, err := reopened.Retrieve("demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat_secret_token_value", got.AccessToken)

	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	require.NoError(t, reopened.Delete("demo.myshopify.com"))
	assert.False(t, reopened.Exists("demo.myshopify.com"))
	require.NoError(t, reopened.Delete("other.myshopify.com"))
	assert.NoFileExists(t, path)
	assert.ErrorIs(t, reopened.Delete("other.myshopify.com"), ErrCredentialsNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Store: "demo.myshopify.com", AccessToken: "shpat_x"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	_, err = other.Retrieve("demo.myshopify.com")
	assert.ErrorContains(t, err, "decrypt")
}

func TestSanitizeAccount(t *testing.T) {
	account := &Account{Store: "demo.myshopify.com", AccessToken: "shpat_0123456789abcdef"}
	masked := SanitizeAccount(account)

	assert.Equal(t, "shpat_...cdef", masked.AccessToken)
	assert.Equal(t, account.Store, masked.Store)
	assert.Equal(t, "shpat_0123456789abcdef", account.AccessToken)
	assert.Equal(t, "********", SanitizeAccount(&Account{AccessToken: "short"}).AccessToken)
	assert.Nil(t, SanitizeAccount(nil))
}
