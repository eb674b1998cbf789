package memory

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent"
)

// SentCommand is a command observed by the in memory Dispatcher
type SentCommand struct {
	HostId  uint64
	Command *agent.PrepareNodesCommand
}

// Dispatcher is a scripted in memory agent.Dispatcher used for testing. Hosts
// answer successfully unless told otherwise.
type Dispatcher struct {
	mu          sync.Mutex
	answers     map[uint64]*agent.Answer
	errors      map[uint64]error
	unreachable map[uint64]struct{}
	sent        []*SentCommand
	onSend      func(hostId uint64)
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.Reset()
	return d
}

// Send implements agent.Dispatcher.Send. A done ctx makes every host
// unreachable, as it does for the HTTP transport.
func (d *Dispatcher) Send(ctx context.Context, hostId uint64, cmd *agent.PrepareNodesCommand) (*agent.Answer, error) {
	answer, err := d.send(ctx, hostId, cmd)

	d.mu.Lock()
	onSend := d.onSend
	d.mu.Unlock()
	if onSend != nil {
		onSend(hostId)
	}

	return answer, err
}

func (d *Dispatcher) send(ctx context.Context, hostId uint64, cmd *agent.PrepareNodesCommand) (*agent.Answer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(agent.ErrUnreachable, err.Error())
	}

	if _, ok := d.unreachable[hostId]; ok {
		return nil, agent.ErrUnreachable
	}

	d.sent = append(d.sent, &SentCommand{
		HostId:  hostId,
		Command: cmd,
	})

	if err, ok := d.errors[hostId]; ok {
		return nil, err
	}

	if answer, ok := d.answers[hostId]; ok {
		cloned := *answer
		return &cloned, nil
	}
	return &agent.Answer{Result: true}, nil
}

func (d *Dispatcher) SetAnswer(hostId uint64, answer *agent.Answer) {
	d.mu.Lock()
	d.answers[hostId] = answer
	d.mu.Unlock()
}

func (d *Dispatcher) SetError(hostId uint64, err error) {
	d.mu.Lock()
	d.errors[hostId] = err
	d.mu.Unlock()
}

func (d *Dispatcher) SetUnreachable(hostId uint64) {
	d.mu.Lock()
	d.unreachable[hostId] = struct{}{}
	d.mu.Unlock()
}

// OnSend installs a callback run after every Send attempt
func (d *Dispatcher) OnSend(fn func(hostId uint64)) {
	d.mu.Lock()
	d.onSend = fn
	d.mu.Unlock()
}

// GetSent returns the commands delivered so far, in dispatch order. Commands
// to unreachable hosts are not recorded.
func (d *Dispatcher) GetSent() []*SentCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	copied := make([]*SentCommand, len(d.sent))
	copy(copied, d.sent)
	return copied
}

func (d *Dispatcher) GetSentHostIds() []uint64 {
	sent := d.GetSent()
	res := make([]uint64, len(sent))
	for i, cmd := range sent {
		res[i] = cmd.HostId
	}
	return res
}

func (d *Dispatcher) Reset() {
	d.mu.Lock()
	d.answers = make(map[uint64]*agent.Answer)
	d.errors = make(map[uint64]error)
	d.unreachable = make(map[uint64]struct{})
	d.sent = nil
	d.onSend = nil
	d.mu.Unlock()
}
