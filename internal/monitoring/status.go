package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/mockdaq/internal/httputil"
)

// RunSnapshot is a point-in-time copy of a replay run's progress.
type RunSnapshot struct {
	RunID     string    `json:"run_id"`
	State     string    `json:"state"`
	Transport string    `json:"transport"`
	Attempt   int       `json:"attempt"`
	Sent      int       `json:"sent"`
	Total     int       `json:"total"`
	Started   time.Time `json:"started"`
	Updated   time.Time `json:"updated"`
	LastError string    `json:"last_error,omitempty"`
}

// RunStatus is shared between the replay loop and the debug server. A nil
// *RunStatus ignores updates.
type RunStatus struct {
	mu   sync.RWMutex
	snap RunSnapshot
	now  func() time.Time
}

// NewRunStatus creates a status holder for runID.
func NewRunStatus(runID string) *RunStatus {
	s := &RunStatus{now: time.Now}
	s.snap = RunSnapshot{RunID: runID, State: "idle", Started: s.now()}
	s.snap.Updated = s.snap.Started
	return s
}

// Update applies fn to the snapshot under the write lock.
func (s *RunStatus) Update(fn func(*RunSnapshot)) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	s.snap.Updated = s.now()
}

func (s *RunStatus) Snapshot() RunSnapshot {
	if s == nil {
		return RunSnapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// ServeHTTP reports the snapshot as JSON.
func (s *RunStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.Snapshot())
}
