package memory

import (
	"testing"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool/tests"
)

func TestPoolMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}

	tests.RunTests(t, testStore, teardown)
}
