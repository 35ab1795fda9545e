package session

import (
	"os"
	"path/filepath"
	"testing"

	"sentinel-guard/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SetAndInvalidate(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("tok", &model.UserInfo{Username: "admin"}))

	assert.True(t, s.Authenticated())
	assert.Equal(t, "tok", s.Token())
	assert.Equal(t, "admin", s.User().Username)

	fired := 0
	s.OnInvalidate(func() { fired++ })
	require.NoError(t, s.Invalidate())

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	assert.Equal(t, 1, fired)
}

func TestSession_UserIsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("tok", &model.UserInfo{Username: "admin"}))

	u := s.User()
	u.Username = "changed"
	assert.Equal(t, "admin", s.User().Username)
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	store := NewFileStore(path)

	s, err := NewWithStore(store)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())

	require.NoError(t, s.Set("abc", &model.UserInfo{Username: "ops"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored, err := NewWithStore(NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, "abc", restored.Token())
	assert.Equal(t, "ops", restored.User().Username)

	require.NoError(t, restored.Invalidate())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err := NewWithStore(NewFileStore(path))
	assert.Error(t, err)
}

func TestOpen_RestoresSavedSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)

	first, err := Open(path)
	require.NoError(t, err)
	assert.False(t, first.Authenticated())
	require.NoError(t, first.Set("tok", &model.UserInfo{Username: "analyst"}))

	second, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, "tok", second.Token())
	assert.Equal(t, "analyst", second.User().Username)
}
