package attstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	s := New()

	s.Put(11, []byte{1, 2, 3})
	v, err := s.Get(11)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)

	s.Put(11, []byte{9})
	v, err = s.Get(11)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, v)
}

func TestEmptyValueDoesNotOverwrite(t *testing.T) {
	s := New()

	s.Put(11, []byte{1, 2, 3})
	s.Put(11, nil)
	s.Put(11, []byte{})

	v, err := s.Get(11)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v, "last non-empty value must survive empty writes")
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(42)
	assert.ErrorIs(t, err, ErrNoStoredValue)
}

func TestStoredValueIsACopy(t *testing.T) {
	s := New()

	buf := []byte{1, 2, 3}
	s.Put(11, buf)
	buf[0] = 0xFF

	v, err := s.Get(11)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, v)
}
