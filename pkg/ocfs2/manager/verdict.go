package manager

import "fmt"

// Verdict is the outcome of a single preparation run
type Verdict struct {
	ClusterName string
	Success     bool

	// Set for the first host that rejected the command
	FailedHostId uint64
	Details      string

	// Host ids in dispatch order
	Prepared []uint64
	Skipped  []uint64
}

func newSuccessVerdict(clusterName string) *Verdict {
	return &Verdict{
		ClusterName: clusterName,
		Success:     true,
	}
}

func (v *Verdict) fail(hostId uint64, details string) {
	v.Success = false
	v.FailedHostId = hostId
	v.Details = details
}

func (v *Verdict) String() string {
	if v.Success {
		return fmt.Sprintf("success (prepared=%d, skipped=%d)", len(v.Prepared), len(v.Skipped))
	}
	return fmt.Sprintf("failure on host %d: %s", v.FailedHostId, v.Details)
}
