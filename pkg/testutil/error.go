package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AssertStatusErrorWithCode requires err to be a gRPC status error and
// asserts its code
func AssertStatusErrorWithCode(t *testing.T, err error, code codes.Code) {
	require.Error(t, err)

	st, ok := status.FromError(err)
	require.True(t, ok, "not a grpc status error: %v", err)
	assert.Equal(t, code, st.Code(), st.Message())
}
