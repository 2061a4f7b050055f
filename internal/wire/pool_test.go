package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := NewBufferPool(2, 64)
	assert.Equal(t, 2, p.Available())

	buf, err := p.Acquire()
	require.NoError(t, err)
	assert.Len(t, buf, 64)
	assert.Equal(t, 1, p.Available())

	p.Release(buf)
	assert.Equal(t, 2, p.Available())
}

func TestAcquireFailsWhenExhausted(t *testing.T) {
	p := NewBufferPool(1, 16)
	_, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	assert.Error(t, err)
}
