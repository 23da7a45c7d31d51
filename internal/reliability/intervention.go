package reliability

import (
	"strconv"

	"github.com/sunwell-ai/sunwell/internal/events"
)

// InterventionSignal is a pattern watched for in an event stream that
// indicates a run needs a human to step in — a stuck or crashed worker, or
// one task failing validation repeatedly.
type InterventionSignal struct {
	Reason  string
	EventID string
}

// Watcher surfaces intervention signals from events handed to Observe one at
// a time (it does not subscribe to a bus itself), grounded on the original's
// intervention-detection pass over run event history (see SPEC_FULL.md §10).
// It does not watch budget events or artifact changes.
type Watcher struct {
	repeatedFailureThreshold int
	failureCounts            map[string]int
}

// NewWatcher builds a Watcher that flags a task after repeatThreshold
// consecutive validation failures.
func NewWatcher(repeatThreshold int) *Watcher {
	if repeatThreshold <= 0 {
		repeatThreshold = 3
	}
	return &Watcher{repeatedFailureThreshold: repeatThreshold, failureCounts: make(map[string]int)}
}

// Observe inspects one event and returns a signal if it warrants
// intervention, nil otherwise.
func (w *Watcher) Observe(ev events.Event) *InterventionSignal {
	switch ev.Type {
	case events.GateFail:
		taskID, _ := ev.Data["task_id"].(string)
		w.failureCounts[taskID]++
		if w.failureCounts[taskID] >= w.repeatedFailureThreshold {
			return &InterventionSignal{
				Reason:  "task " + taskID + " failed validation " + strconv.Itoa(w.failureCounts[taskID]) + " times in a row",
				EventID: taskID,
			}
		}
	case events.WorkerStuck, events.WorkerCrashed:
		workerID, _ := ev.Data["worker_id"].(string)
		return &InterventionSignal{Reason: "worker " + workerID + " requires attention", EventID: workerID}
	case events.TaskComplete:
		taskID, _ := ev.Data["task_id"].(string)
		delete(w.failureCounts, taskID)
	}
	return nil
}

