package clients

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known throwaway key from the go-ethereum test suite
const (
	testKey  = "289c2857d4598e37fb9647507e47a309d6133539bf21a8b9cb6df88fd5232032"
	testAddr = "0x970e8128ab834e8eac17ab8e3812f010678cf791"
)

func TestHyperliquidKey(t *testing.T) {
	addr, key, err := hyperliquidKey("0x" + testKey)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.True(t, strings.EqualFold(testAddr, addr), addr)

	plain, _, err := hyperliquidKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, addr, plain)
}

func TestHyperliquidKey_Invalid(t *testing.T) {
	_, _, err := hyperliquidKey("not-a-key")
	assert.Error(t, err)
}
