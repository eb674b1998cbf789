// Package membership computes the node list shared by every host that mounts
// an OCFS2 volume.
package membership

import (
	"strings"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

const symbolicNamePrefix = "ovm_"

// NodeDescriptor identifies a single node within a cluster membership list.
// Ordinals are positional and only meaningful within one encoding.
type NodeDescriptor struct {
	Ordinal int    `json:"ordinal"`
	Address string `json:"address"`
	Name    string `json:"name"`
}

type ClusterMembership struct {
	ClusterName string           `json:"clusterName"`
	Nodes       []NodeDescriptor `json:"nodes"`
}

// New builds the membership for the provided cluster name and hosts
func New(clusterName string, hosts []*host.Record) *ClusterMembership {
	return &ClusterMembership{
		ClusterName: clusterName,
		Nodes:       Encode(hosts),
	}
}

// Encode returns one descriptor per host, with ordinals assigned in input
// order. An empty input yields an empty, non-nil output.
func Encode(hosts []*host.Record) []NodeDescriptor {
	nodes := make([]NodeDescriptor, 0, len(hosts))
	for i, h := range hosts {
		nodes = append(nodes, NodeDescriptor{
			Ordinal: i,
			Address: h.PrivateIpAddress,
			Name:    SymbolicName(h.PrivateIpAddress),
		})
	}
	return nodes
}

// SymbolicName derives the node name the remote ocfs2 tooling expects for an
// address.
//
// Note: The name must never contain "node", which o2cb treats specially.
func SymbolicName(address string) string {
	return symbolicNamePrefix + strings.ReplaceAll(address, ".", "_")
}

// Addresses returns node addresses in ordinal order
func (m *ClusterMembership) Addresses() []string {
	res := make([]string, len(m.Nodes))
	for i, node := range m.Nodes {
		res[i] = node.Address
	}
	return res
}
