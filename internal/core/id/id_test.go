package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TimeOrdered(t *testing.T) {
	a, b := New(), New()
	assert.Equal(t, 7, int(a.Version()))
	assert.Less(t, a.String(), b.String())
}

func TestMustParseOptional(t *testing.T) {
	assert.Nil(t, MustParseOptional(""))

	v := New()
	got := MustParseOptional(v.String())
	require.NotNil(t, got)
	assert.Equal(t, v, *got)

	assert.Panics(t, func() { MustParseOptional("not-a-uuid") })
}

func TestPtr(t *testing.T) {
	assert.Nil(t, Ptr(Nil()))
	v := New()
	assert.Equal(t, v, *Ptr(v))
}
