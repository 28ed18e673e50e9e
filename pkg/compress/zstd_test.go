package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SmallPayloadStaysPlain(t *testing.T) {
	c, err := NewCodec(64)
	require.NoError(t, err)
	defer c.Close()

	data := []byte(`{"code":"PENDING_RECEIPTS"}`)
	out, compressed, err := c.Encode(data)
	require.NoError(t, err)
	assert.False(t, compressed)
	assert.Equal(t, data, out)

	back, err := c.Decode(out, compressed)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestCodec_LargePayloadCompresses(t *testing.T) {
	c, err := NewCodec(64)
	require.NoError(t, err)
	defer c.Close()

	data := bytes.Repeat([]byte(`{"ref":"GR-000123"},`), 200)
	out, compressed, err := c.Encode(data)
	require.NoError(t, err)
	assert.True(t, compressed)
	assert.Less(t, len(out), len(data))

	back, err := c.Decode(out, compressed)
	require.NoError(t, err)
	assert.Equal(t, data, back)
}

func TestCodec_DecodeGarbage(t *testing.T) {
	c, err := NewCodec(0)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Decode([]byte("not zstd"), true)
	assert.Error(t, err)
}
