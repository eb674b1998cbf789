package pointer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointerHelpers(t *testing.T) {
	assert.Equal(t, "ocfs2", *To("ocfs2"))
	assert.Equal(t, uint64(7), *To(uint64(7)))

	assert.Equal(t, "default", *OrDefault(nil, "default"))
	assert.Equal(t, "ocfs2", *OrDefault(To("ocfs2"), "default"))

	assert.Nil(t, IfValid(false, "ocfs2"))
	assert.Equal(t, "ocfs2", *IfValid(true, "ocfs2"))

	assert.Nil(t, Copy[string](nil))

	original := To("ocfs2")
	copied := Copy(original)
	assert.Equal(t, *original, *copied)
	assert.False(t, original == copied)
}
