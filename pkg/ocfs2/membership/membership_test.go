package membership

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

func TestEncode_Empty(t *testing.T) {
	assert.Empty(t, Encode(nil))
	assert.NotNil(t, Encode(nil))
	assert.Empty(t, Encode([]*host.Record{}))
}

func TestEncode_PreservesOrder(t *testing.T) {
	hosts := []*host.Record{
		{Id: 9, PrivateIpAddress: "10.0.0.9"},
		{Id: 1, PrivateIpAddress: "10.0.0.1"},
		{Id: 5, PrivateIpAddress: "192.168.1.5"},
	}

	nodes := Encode(hosts)
	require.Len(t, nodes, len(hosts))
	for i, node := range nodes {
		assert.Equal(t, i, node.Ordinal)
		assert.Equal(t, hosts[i].PrivateIpAddress, node.Address)
		assert.Equal(t, SymbolicName(hosts[i].PrivateIpAddress), node.Name)
	}

	assert.Equal(t, "ovm_192_168_1_5", nodes[2].Name)
	assert.Equal(t, nodes, Encode(hosts))
}

func TestNew(t *testing.T) {
	hosts := []*host.Record{
		{Id: 1, PrivateIpAddress: "10.1.1.1"},
		{Id: 2, PrivateIpAddress: "10.1.1.2"},
	}

	membership := New("cluster42", hosts)
	assert.Equal(t, "cluster42", membership.ClusterName)
	assert.Equal(t, []string{"10.1.1.1", "10.1.1.2"}, membership.Addresses())
}

func TestSymbolicName(t *testing.T) {
	for address, expected := range map[string]string{
		"10.0.0.1":        "ovm_10_0_0_1",
		"255.255.255.255": "ovm_255_255_255_255",
		"0.0.0.0":         "ovm_0_0_0_0",
	} {
		assert.Equal(t, expected, SymbolicName(address))
	}
}

func FuzzSymbolicName(f *testing.F) {
	f.Add(uint8(10), uint8(0), uint8(0), uint8(1), uint8(10), uint8(0), uint8(0), uint8(2))
	f.Add(uint8(192), uint8(168), uint8(1), uint8(1), uint8(192), uint8(168), uint8(11), uint8(1))
	f.Add(uint8(1), uint8(11), uint8(1), uint8(1), uint8(11), uint8(1), uint8(1), uint8(1))

	f.Fuzz(func(t *testing.T, a1, a2, a3, a4, b1, b2, b3, b4 uint8) {
		a := fmt.Sprintf("%d.%d.%d.%d", a1, a2, a3, a4)
		b := fmt.Sprintf("%d.%d.%d.%d", b1, b2, b3, b4)

		nameA := SymbolicName(a)
		nameB := SymbolicName(b)

		assert.Equal(t, "ovm_"+strings.ReplaceAll(a, ".", "_"), nameA)
		assert.NotContains(t, nameA, "node")
		assert.NotContains(t, nameB, "node")

		if a != b {
			assert.NotEqual(t, nameA, nameB)
		} else {
			assert.Equal(t, nameA, nameB)
		}
	})
}
