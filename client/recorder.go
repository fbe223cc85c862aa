package client

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// CallKind names a remote operation
type CallKind string

const (
	CallStartLaunch  CallKind = "startLaunch"
	CallFinishLaunch CallKind = "finishLaunch"
	CallStartItem    CallKind = "startItem"
	CallFinishItem   CallKind = "finishItem"
	CallSendLog      CallKind = "sendLog"
)

var (
	ErrUnknownItem     = errors.New("unknown item")
	ErrAlreadyFinished = errors.New("item already finished")
	ErrParentFinished  = errors.New("parent item already finished")
)

// Call is one recorded remote operation
type Call struct {
	Kind     CallKind
	ID       string // Assigned id for starts, target id otherwise
	ParentID string
	LaunchID string

	StartLaunch  *types.StartLaunchRQ
	FinishLaunch *types.FinishLaunchRQ
	StartItem    *types.StartItemRQ
	FinishItem   *types.FinishItemRQ
	Log          *types.LogEntry
	File         *types.File
}

// RecordedItem is the state of one item as seen by the recorder
type RecordedItem struct {
	ID          string
	ParentID    string
	Name        string
	Type        types.ItemType
	CodeRef     string
	Attributes  []types.Attribute
	Description string
	Retry       bool
	Status      types.ItemStatus
	Issue       *types.Issue
	Finished    bool
	FinishCount int
	Logs        []types.LogEntry
	Order       int // Position in start order
}

// Recorder is an in-memory Client. It keeps an ordered call log plus the resulting
// item tree and reports protocol violations (finishing twice, finishing unknown
// items, starting under a finished parent) as failed completions.
type Recorder struct {
	// FailWith, when set, decides whether a call fails. It runs after the call is
	// recorded, so a failing start still yields an id.
	FailWith func(call Call) error

	log        log.Logger
	mu         sync.Mutex
	seq        int
	calls      []Call
	items      map[string]*RecordedItem
	launch     *types.StartLaunchRQ
	launchID   string
	launchEnd  *types.FinishLaunchRQ
	launchLogs []types.LogEntry
	violations []string
}

// NewRecorder creates an empty recorder
func NewRecorder(logger log.Logger) *Recorder {
	if logger == nil {
		logger = log.New()
	}
	return &Recorder{
		log:   logger,
		items: make(map[string]*RecordedItem),
	}
}

var _ Client = (*Recorder)(nil)

func (r *Recorder) nextID(prefix string) string {
	r.seq++
	return fmt.Sprintf("%s-%d", prefix, r.seq)
}

func (r *Recorder) complete(call Call, violation error) *Completion {
	if violation != nil {
		r.violations = append(r.violations, fmt.Sprintf("%s %s: %v", call.Kind, call.ID, violation))
		return Resolved(violation)
	}
	if r.FailWith != nil {
		if err := r.FailWith(call); err != nil {
			return Resolved(err)
		}
	}
	return Resolved(nil)
}

// StartLaunch implements Client
func (r *Recorder) StartLaunch(rq types.StartLaunchRQ) (string, *Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := rq.ID
	if id == "" {
		id = r.nextID("launch")
	}
	r.launch = &rq
	r.launchID = id
	call := Call{Kind: CallStartLaunch, ID: id, StartLaunch: &rq}
	r.calls = append(r.calls, call)
	r.log.Debug("Start launch", "id", id, "name", rq.Name)
	return id, r.complete(call, nil)
}

// FinishLaunch implements Client
func (r *Recorder) FinishLaunch(launchID string, rq types.FinishLaunchRQ) *Completion {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Kind: CallFinishLaunch, ID: launchID, FinishLaunch: &rq}
	r.calls = append(r.calls, call)
	r.log.Debug("Finish launch", "id", launchID, "status", rq.Status)

	var violation error
	switch {
	case launchID == "" || launchID != r.launchID:
		violation = ErrUnknownItem
	case r.launchEnd != nil:
		violation = ErrAlreadyFinished
	default:
		r.launchEnd = &rq
	}
	return r.complete(call, violation)
}

// StartItem implements Client
func (r *Recorder) StartItem(rq types.StartItemRQ, launchID string, parentID string) (string, *Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID("item")
	call := Call{Kind: CallStartItem, ID: id, ParentID: parentID, LaunchID: launchID, StartItem: &rq}
	r.calls = append(r.calls, call)
	r.log.Debug("Start item", "id", id, "parent", parentID, "name", rq.Name, "type", rq.Type)

	var violation error
	if parentID != "" {
		parent, ok := r.items[parentID]
		switch {
		case !ok:
			violation = ErrUnknownItem
		case parent.Finished:
			violation = ErrParentFinished
		}
	}
	r.items[id] = &RecordedItem{
		ID:          id,
		ParentID:    parentID,
		Name:        rq.Name,
		Type:        rq.Type,
		CodeRef:     rq.CodeRef,
		Attributes:  append([]types.Attribute(nil), rq.Attributes...),
		Description: rq.Description,
		Retry:       rq.Retry,
		Order:       len(r.items),
	}
	return id, r.complete(call, violation)
}

// FinishItem implements Client
func (r *Recorder) FinishItem(itemID string, rq types.FinishItemRQ) *Completion {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Kind: CallFinishItem, ID: itemID, FinishItem: &rq}
	r.calls = append(r.calls, call)
	r.log.Debug("Finish item", "id", itemID, "status", rq.Status)

	item, ok := r.items[itemID]
	if !ok {
		return r.complete(call, ErrUnknownItem)
	}
	item.FinishCount++
	if item.Finished {
		return r.complete(call, ErrAlreadyFinished)
	}
	item.Finished = true
	item.Status = rq.Status
	item.Issue = rq.Issue
	if rq.Description != "" {
		item.Description = rq.Description
	}
	if len(rq.Attributes) > 0 {
		item.Attributes = append([]types.Attribute(nil), rq.Attributes...)
	}
	return r.complete(call, nil)
}

// SendLog implements Client. Logs addressed to the launch id are kept as launch logs.
func (r *Recorder) SendLog(itemID string, entry types.LogEntry, file *types.File) *Completion {
	r.mu.Lock()
	defer r.mu.Unlock()

	call := Call{Kind: CallSendLog, ID: itemID, Log: &entry, File: file}
	r.calls = append(r.calls, call)

	if itemID != "" && itemID == r.launchID {
		r.launchLogs = append(r.launchLogs, entry)
		return r.complete(call, nil)
	}
	item, ok := r.items[itemID]
	if !ok {
		return r.complete(call, ErrUnknownItem)
	}
	item.Logs = append(item.Logs, entry)
	return r.complete(call, nil)
}

// Calls returns a copy of the call log
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsOf returns the recorded calls of one kind, in order
func (r *Recorder) CallsOf(kind CallKind) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Item returns a copy of the recorded item with the given id
func (r *Recorder) Item(id string) (RecordedItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return RecordedItem{}, false
	}
	return *item, true
}

// ItemByName returns the first started item with the given name
func (r *Recorder) ItemByName(name string) (RecordedItem, bool) {
	for _, item := range r.Items() {
		if item.Name == name {
			return item, true
		}
	}
	return RecordedItem{}, false
}

// Items returns copies of all items in start order
func (r *Recorder) Items() []RecordedItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Children returns the direct children of an item in start order. An empty parent id
// returns the top level items.
func (r *Recorder) Children(parentID string) []RecordedItem {
	var out []RecordedItem
	for _, item := range r.Items() {
		if item.ParentID == parentID {
			out = append(out, item)
		}
	}
	return out
}

// Unfinished returns the ids of started items that were never finished
func (r *Recorder) Unfinished() []string {
	var out []string
	for _, item := range r.Items() {
		if !item.Finished {
			out = append(out, item.ID)
		}
	}
	return out
}

// Launch returns the launch start and finish requests, if any
func (r *Recorder) Launch() (string, *types.StartLaunchRQ, *types.FinishLaunchRQ) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.launchID, r.launch, r.launchEnd
}

// LaunchLogs returns the logs sent to the launch
func (r *Recorder) LaunchLogs() []types.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.LogEntry(nil), r.launchLogs...)
}

// Violations returns every protocol violation seen so far
func (r *Recorder) Violations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.violations...)
}
