package session

import (
	"fmt"
	"strings"
)

// SyncPolicy governs whether a send blocks for its reply.
type SyncPolicy int32

const (
	// PolicyStandard waits only for commands that reserve global memory.
	PolicyStandard SyncPolicy = iota
	// PolicySynchronous always requests and waits for a reply.
	PolicySynchronous
	// PolicyAsynchronous never waits; callers collect replies by counter.
	PolicyAsynchronous
)

func (p SyncPolicy) String() string {
	switch p {
	case PolicyStandard:
		return "STD"
	case PolicySynchronous:
		return "SYNC"
	case PolicyAsynchronous:
		return "ASYNC"
	default:
		return fmt.Sprintf("SyncPolicy(%d)", int32(p))
	}
}

func ParseSyncPolicy(raw string) (SyncPolicy, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "STD", "STANDARD":
		return PolicyStandard, nil
	case "SYNC", "SYNCHRONOUS":
		return PolicySynchronous, nil
	case "ASYNC", "ASYNCHRONOUS":
		return PolicyAsynchronous, nil
	default:
		return PolicyStandard, fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}
