package receipt

import "sync"

// Publisher receives state snapshots from the Processor. Snapshots are copies owned by
// the receiver and are delivered synchronously, so implementations should return quickly.
type Publisher interface {
	// StateChanged is called after every state mutation with the full item list
	StateChanged(batchID string, snapshot []State)

	// BatchDone is called once after the last item reached a terminal state
	BatchDone(batchID string, snapshot []State)
}

// Publishers fans snapshots out to several publishers in order
type Publishers []Publisher

func (ps Publishers) StateChanged(batchID string, snapshot []State) {
	for _, p := range ps {
		p.StateChanged(batchID, snapshot)
	}
}

func (ps Publishers) BatchDone(batchID string, snapshot []State) {
	for _, p := range ps {
		p.BatchDone(batchID, snapshot)
	}
}

// BatchView is the rendered status of the current batch
type BatchView struct {
	BatchID    string  `json:"batch_id"`
	Processing bool    `json:"processing"`
	Items      []State `json:"items"`
}

// View keeps the latest snapshot of the current batch for concurrent readers
type View struct {
	mu         sync.RWMutex
	batchID    string
	processing bool
	items      []State
}

// NewView creates an empty View
func NewView() *View {
	return &View{items: []State{}}
}

// Begin resets the view for a new batch and marks it as processing
func (v *View) Begin(batchID string, items []State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.batchID = batchID
	v.processing = true
	v.items = append([]State{}, items...)
}

// merge replaces items by id and appends ids it has not seen yet
func (v *View) merge(snapshot []State) {
	index := make(map[string]int, len(v.items))
	for i, item := range v.items {
		index[item.ID] = i
	}
	for _, item := range snapshot {
		if i, ok := index[item.ID]; ok {
			v.items[i] = item
			continue
		}
		index[item.ID] = len(v.items)
		v.items = append(v.items, item)
	}
}

func (v *View) StateChanged(batchID string, snapshot []State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if batchID != v.batchID {
		return
	}
	v.merge(snapshot)
}

func (v *View) BatchDone(batchID string, snapshot []State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if batchID != v.batchID {
		return
	}
	v.merge(snapshot)
	v.processing = false
}

// Processing reports whether the current batch is still running
func (v *View) Processing() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.processing
}

// Current returns a copy of the current batch status
func (v *View) Current() BatchView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return BatchView{
		BatchID:    v.batchID,
		Processing: v.processing,
		Items:      append([]State{}, v.items...),
	}
}
