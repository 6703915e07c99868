package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestStore_SaveGet(t *testing.T) {
	keyring.MockInit()
	s := NewStore(t.TempDir())

	require.NoError(t, s.Save(" secret \n"))

	token, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)

	_, err = os.Stat(filepath.Join(s.Dir, TokenFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_SaveEmpty(t *testing.T) {
	keyring.MockInit()
	s := NewStore(t.TempDir())
	assert.Error(t, s.Save("  "))
}

func TestStore_GetNone(t *testing.T) {
	keyring.MockInit()
	s := NewStore(t.TempDir())

	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestStore_FileFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keychain"))
	s := NewStore(filepath.Join(t.TempDir(), "conf"))

	require.NoError(t, s.Save("secret"))

	info, err := os.Stat(filepath.Join(s.Dir, TokenFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestStore_MigratesFileToKeychain(t *testing.T) {
	keyring.MockInit()
	s := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir, TokenFileName), []byte("legacy"), 0o600))

	token, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "legacy", token)

	_, err = os.Stat(filepath.Join(s.Dir, TokenFileName))
	assert.True(t, os.IsNotExist(err))

	stored, err := keyring.Get(DefaultService, DefaultUser)
	require.NoError(t, err)
	assert.Equal(t, "legacy", stored)
}

func TestStore_Delete(t *testing.T) {
	keyring.MockInit()
	s := NewStore(t.TempDir())
	require.NoError(t, s.Save("secret"))

	require.NoError(t, s.Delete())
	_, err := s.Get()
	assert.ErrorIs(t, err, ErrNoToken)

	// deleting again is a no-op
	require.NoError(t, s.Delete())
}
