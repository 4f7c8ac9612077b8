package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStorage_StoreRetrieve(t *testing.T) {
	s := newTestSQLite(t)

	require.NoError(t, s.Store("reports/a.json", []byte(`{"id":"a"}`)))
	data, err := s.Retrieve("reports/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(data))

	// overwrite
	require.NoError(t, s.Store("reports/a.json", []byte(`{"id":"b"}`)))
	data, err = s.Retrieve("reports/a.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"b"}`, string(data))
}

func TestSQLiteStorage_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.Retrieve("missing.json")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing.json", nf.Name)

	err = s.Delete("missing.json")
	assert.True(t, errors.As(err, &nf))
}

func TestSQLiteStorage_ListDelete(t *testing.T) {
	s := newTestSQLite(t)

	for _, name := range []string{"reports/2.json", "reports/1.json", "other/x.json"} {
		require.NoError(t, s.Store(name, []byte("{}")))
	}

	names, err := s.List("reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/1.json", "reports/2.json"}, names)

	require.NoError(t, s.Delete("reports/1.json"))
	names, err = s.List("reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/2.json"}, names)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}

func TestNopStorage(t *testing.T) {
	var s StorageInterface = NopStorage{}
	assert.NoError(t, s.Store("x", []byte("y")))
	_, err := s.Retrieve("x")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}
