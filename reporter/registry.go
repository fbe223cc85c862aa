package reporter

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// itemMetadata is the out-of-band metadata attached to an item through annotation
// events. Before the item exists it is buffered as pending metadata.
type itemMetadata struct {
	Attributes  []types.Attribute
	Description string
	Status      types.ItemStatus
	TestCaseID  string
	Logs        []types.LogEntry
}

func (m *itemMetadata) merge(other *itemMetadata) {
	if other == nil {
		return
	}
	m.Attributes = append(m.Attributes, other.Attributes...)
	if other.Description != "" {
		m.Description = other.Description
	}
	if other.Status != "" {
		m.Status = other.Status
	}
	if other.TestCaseID != "" {
		m.TestCaseID = other.TestCaseID
	}
	m.Logs = append(m.Logs, other.Logs...)
}

// suiteKey scopes a suite path to its project so that the same file run by two
// projects yields two nodes
type suiteKey struct {
	Project string
	Path    string
}

func (k suiteKey) String() string {
	if k.Project == "" {
		return k.Path
	}
	return k.Project + ":" + k.Path
}

type suiteNode struct {
	ID    string
	Name  string
	Type  types.ItemType
	Key   suiteKey
	Depth int
	Suite *types.Suite

	InvocationsLeft int
	Descendants     map[string]struct{}
	Executed        int // Definitively finished tests, monotonic
	ReplayBaseline  int // Executed count already given back by a serial replay

	Meta itemMetadata // Status, logs and late attributes applied on finish
}

func (n *suiteNode) contains(testID string) bool {
	_, ok := n.Descendants[testID]
	return ok
}

type testItem struct {
	ID   string
	Name string
	Type types.ItemType
	Meta itemMetadata // Metadata set after the item started, applied on finish
}

type stepNode struct {
	ID     string
	Name   string
	TestID string
	Depth  int
	Seq    int
	Step   *types.Step
}

// itemRegistry owns every node of one run. Entries are removed exactly when the node
// is closed.
type itemRegistry struct {
	suites  map[suiteKey]*suiteNode
	tests   map[string]*testItem
	steps   map[string]*stepNode
	pending map[string]*itemMetadata
	stepSeq int
}

func newItemRegistry() *itemRegistry {
	return &itemRegistry{
		suites:  make(map[suiteKey]*suiteNode),
		tests:   make(map[string]*testItem),
		steps:   make(map[string]*stepNode),
		pending: make(map[string]*itemMetadata),
	}
}

func stepKey(testID string, stepPath string, instanceID string) string {
	return fmt.Sprintf("%s/%s-%s", testID, stepPath, instanceID)
}

// pendingFor returns the pending metadata for key, creating it when missing
func (r *itemRegistry) pendingFor(key string) *itemMetadata {
	meta, ok := r.pending[key]
	if !ok {
		meta = &itemMetadata{}
		r.pending[key] = meta
	}
	return meta
}

// takePending drains and merges the pending metadata stored under any of the keys
func (r *itemRegistry) takePending(keys ...string) itemMetadata {
	var out itemMetadata
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if meta, ok := r.pending[key]; ok {
			out.merge(meta)
			delete(r.pending, key)
		}
	}
	return out
}

// findSuite looks an open suite up by path key or title
func (r *itemRegistry) findSuite(name string) *suiteNode {
	var byTitle *suiteNode
	for key, node := range r.suites {
		if key.Path == name {
			return node
		}
		if byTitle == nil && node.Name == name {
			byTitle = node
		}
	}
	return byTitle
}

// ancestorsOf returns the open suites whose descendant set contains the test
func (r *itemRegistry) ancestorsOf(testID string) []*suiteNode {
	var out []*suiteNode
	for _, node := range r.suites {
		if node.contains(testID) {
			out = append(out, node)
		}
	}
	return out
}
