package netutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAvailablePort(t *testing.T) {
	port, err := GetAvailablePort("localhost")
	require.NoError(t, err)
	assert.Greater(t, port, 0)

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
	require.NoError(t, err)
	require.NoError(t, listener.Close())
}

func TestGetAvailablePort_InvalidHost(t *testing.T) {
	_, err := GetAvailablePort("256.256.256.256")
	assert.Error(t, err)
}
