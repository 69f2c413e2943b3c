package imaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingOpener struct {
	data  []byte
	calls int
}

func (o *countingOpener) open(context.Context) ([]byte, error) {
	o.calls++
	return o.data, nil
}

func TestRegisterImageIsIdempotent(t *testing.T) {
	r, err := NewMemoryRegistry(8)
	require.NoError(t, err)

	a := r.RegisterImage([]byte("first buffer"), nil)
	b := r.RegisterImage([]byte("first buffer"), nil)
	c := r.RegisterImage([]byte("second buffer"), nil)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, Scheme))
	assert.Equal(t, 2, r.Len())

	buf, err := r.Get(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, []byte("first buffer"), buf)
}

func TestRegistryRereadsThroughOpener(t *testing.T) {
	r, err := NewMemoryRegistry(8)
	require.NoError(t, err)

	src := &countingOpener{data: []byte("on disk")}
	buf := []byte("on disk")
	id := r.RegisterImage(buf, src.open)
	assert.Equal(t, 0, src.calls)

	// the parse buffer is not referenced after registration
	for i := range buf {
		buf[i] = 0
	}

	got, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("on disk"), got)
	_, err = r.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRegistryDetectsChangedFiles(t *testing.T) {
	r, err := NewMemoryRegistry(8)
	require.NoError(t, err)

	src := &countingOpener{data: []byte("version one")}
	id := r.RegisterImage([]byte("version one"), src.open)
	src.data = []byte("version two")

	_, err = r.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrImageChanged)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryWrapsOpenerErrors(t *testing.T) {
	r, err := NewMemoryRegistry(8)
	require.NoError(t, err)

	gone := errors.New("gone")
	id := r.RegisterImage([]byte("x"), func(context.Context) ([]byte, error) {
		return nil, gone
	})

	_, err = r.Get(context.Background(), id)
	assert.ErrorIs(t, err, gone)
}

func TestRegistryEvictsOldest(t *testing.T) {
	r, err := NewMemoryRegistry(2)
	require.NoError(t, err)

	first := r.RegisterImage([]byte{1}, nil)
	r.RegisterImage([]byte{2}, nil)
	r.RegisterImage([]byte{3}, nil)

	_, err = r.Get(context.Background(), first)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Equal(t, 2, r.Len())
}

func TestGetRejectsForeignIDs(t *testing.T) {
	r, err := NewMemoryRegistry(2)
	require.NoError(t, err)

	_, err = r.Get(context.Background(), "wadouri:http://example/1")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestNewMemoryRegistryRejectsZeroSize(t *testing.T) {
	_, err := NewMemoryRegistry(0)
	assert.Error(t, err)
}
