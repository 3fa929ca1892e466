package scheduler

import "time"

// LoopState is what a poll loop is doing right now.
type LoopState string

const (
	StateIdle     LoopState = "idle"
	StateFetching LoopState = "fetching"
	StateSleeping LoopState = "sleeping"
	StateStopped  LoopState = "stopped"
)

type loopStatus struct {
	state             LoopState
	sleepUntil        time.Time
	lastSuccess       time.Time
	consecutiveErrors int
	lastError         string
}

// LoopStatus is a snapshot of one loop.
type LoopStatus struct {
	State             LoopState  `json:"state"`
	SleepRemaining    string     `json:"sleep_remaining,omitempty"`
	LastSuccess       *time.Time `json:"last_success,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	LastError         string     `json:"last_error,omitempty"`
}

// Status is a snapshot of the whole scheduler.
type Status struct {
	Target  string     `json:"target,omitempty"`
	Listing LoopStatus `json:"listing"`
	Detail  LoopStatus `json:"detail"`
}

// GetStatus returns current scheduler status
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	return Status{
		Target:  o.target,
		Listing: o.loops[LoopListing].snapshot(),
		Detail:  o.loops[LoopDetail].snapshot(),
	}
}

func (st *loopStatus) snapshot() LoopStatus {
	out := LoopStatus{
		State:             st.state,
		ConsecutiveErrors: st.consecutiveErrors,
		LastError:         st.lastError,
	}
	if st.state == StateSleeping {
		remaining := time.Until(st.sleepUntil)
		if remaining < 0 {
			remaining = 0
		}
		out.SleepRemaining = remaining.Round(time.Second).String()
	}
	if !st.lastSuccess.IsZero() {
		t := st.lastSuccess
		out.LastSuccess = &t
	}
	return out
}

func (o *Orchestrator) setState(loop string, state LoopState, sleep time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := o.loops[loop]
	st.state = state
	if state == StateSleeping {
		st.sleepUntil = time.Now().Add(sleep)
	} else {
		st.sleepUntil = time.Time{}
	}
}
