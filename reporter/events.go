package reporter

import (
	"bufio"
	"strings"

	"github.com/ethereum-optimism/infra/op-rpreporter/rpapi"
	"github.com/ethereum-optimism/infra/op-rpreporter/types"
)

// OnStdOut routes annotation events found in a stdout chunk. Other lines become INFO
// logs on the test that printed them.
func (r *Reporter) OnStdOut(chunk string, test *types.Test) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scanner := bufio.NewScanner(strings.NewReader(chunk))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		ev, err := rpapi.Parse([]byte(line))
		if err != nil {
			if test == nil {
				continue
			}
			if message := cleanText(line); strings.TrimSpace(message) != "" {
				r.logToTest(test, types.LogEntry{Message: message, Level: types.LogLevelInfo, Time: r.now()})
			}
			continue
		}
		r.applyEvent(ev, test)
	}
	if err := scanner.Err(); err != nil {
		r.log.Warn("Failed to read stdout chunk", "err", err)
	}
}

func (r *Reporter) applyEvent(ev *rpapi.Event, test *types.Test) {
	switch ev.Type {
	case rpapi.EventSetLaunchStatus:
		status, err := ev.Status()
		if err != nil {
			r.log.Warn("Ignoring launch status", "err", err)
			return
		}
		r.launch.customStatus = status
		return
	case rpapi.EventAddLaunchLog:
		data, err := ev.Log()
		if err != nil {
			r.log.Warn("Ignoring launch log", "err", err)
			return
		}
		if r.launch.id == "" {
			r.log.Debug("Dropping launch log before launch start")
			return
		}
		r.sendLog(r.launch.id, data.LogEntry, data.File, "Failed to send launch log.")
		return
	}

	update, err := metadataFromEvent(ev)
	if err != nil {
		r.log.Warn("Ignoring malformed event", "type", ev.Type, "err", err)
		return
	}

	if ev.Suite != "" {
		if node := r.reg.findSuite(ev.Suite); node != nil {
			r.applyToItem(node.ID, &node.Meta, update)
			return
		}
		r.reg.pendingFor(ev.Suite).merge(&update.itemMetadata)
		return
	}

	if test == nil {
		r.log.Debug("Dropping event without a test", "type", ev.Type)
		return
	}
	if item, ok := r.reg.tests[test.ID]; ok {
		r.applyToItem(item.ID, &item.Meta, update)
		return
	}
	r.reg.pendingFor(test.ID).merge(&update.itemMetadata)
}

// metadataUpdate is the change one event makes to an item's metadata
type metadataUpdate struct {
	itemMetadata
	file *types.File
}

func metadataFromEvent(ev *rpapi.Event) (metadataUpdate, error) {
	var u metadataUpdate
	switch ev.Type {
	case rpapi.EventAddAttributes:
		attrs, err := ev.Attributes()
		if err != nil {
			return u, err
		}
		u.Attributes = attrs
	case rpapi.EventSetDescription:
		text, err := ev.Text()
		if err != nil {
			return u, err
		}
		u.Description = text
	case rpapi.EventSetTestCaseID:
		text, err := ev.Text()
		if err != nil {
			return u, err
		}
		u.TestCaseID = text
	case rpapi.EventSetStatus:
		status, err := ev.Status()
		if err != nil {
			return u, err
		}
		u.Status = status
	case rpapi.EventAddLog:
		data, err := ev.Log()
		if err != nil {
			return u, err
		}
		u.Logs = []types.LogEntry{data.LogEntry}
		u.file = data.File
	}
	return u, nil
}

// applyToItem merges the update into the metadata of an open item. Logs go out right
// away; the rest is sent when the item finishes.
func (r *Reporter) applyToItem(itemID string, meta *itemMetadata, update metadataUpdate) {
	logs := update.Logs
	update.Logs = nil
	meta.merge(&update.itemMetadata)
	for _, entry := range logs {
		r.sendLog(itemID, entry, update.file, "Failed to send log.")
	}
}
