package agent

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/membership"
)

var (
	// ErrUnreachable indicates the host's agent is not currently addressable.
	// Callers treat it as "no answer" rather than a rejected command.
	ErrUnreachable = errors.New("host agent is unreachable")
)

// PrepareNodesCommand instructs a host's agent to (re)write its ocfs2 cluster
// configuration. Every host receives the full membership.
type PrepareNodesCommand struct {
	ClusterName string                      `json:"clusterName"`
	Nodes       []membership.NodeDescriptor `json:"nodes"`
}

func NewPrepareNodesCommand(m *membership.ClusterMembership) *PrepareNodesCommand {
	nodes := make([]membership.NodeDescriptor, len(m.Nodes))
	copy(nodes, m.Nodes)

	return &PrepareNodesCommand{
		ClusterName: m.ClusterName,
		Nodes:       nodes,
	}
}

// Answer is an agent's response to a command
type Answer struct {
	Result  bool   `json:"result"`
	Details string `json:"details,omitempty"`
}

type Dispatcher interface {
	// Send delivers the command to the agent on the given host and waits for
	// its answer.
	//
	// Returns ErrUnreachable if the host cannot currently be addressed.
	Send(ctx context.Context, hostId uint64, cmd *PrepareNodesCommand) (*Answer, error)
}
