package rpreporter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-rpreporter/client"
	"github.com/ethereum-optimism/infra/op-rpreporter/reporter"
)

// TreeFormatter renders the item tree a run produced
type TreeFormatter interface {
	FormatTree(rec *client.Recorder, summary reporter.Summary) error
}

// ConsoleTreeFormatter implements the TreeFormatter interface.
type ConsoleTreeFormatter struct {
	logger log.Logger
	out    io.Writer
}

// NewConsoleTreeFormatter creates a formatter writing to out, or stdout when nil
func NewConsoleTreeFormatter(logger log.Logger, out io.Writer) *ConsoleTreeFormatter {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleTreeFormatter{
		logger: logger,
		out:    out,
	}
}

// FormatTree prints one row per item, children indented below their parent
func (f *ConsoleTreeFormatter) FormatTree(rec *client.Recorder, summary reporter.Summary) error {
	f.logger.Info("Printing item tree...")
	_, start, _ := rec.Launch()
	name := ""
	if start != nil {
		name = start.Name
	}

	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle(fmt.Sprintf("Launch %s (%s)", name, summary.LaunchID))
	t.AppendHeader(table.Row{"Type", "Name", "Status", "Logs", "Attributes"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Name", WidthMax: 70, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Logs", Align: text.AlignRight},
		{Name: "Attributes", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
	})

	type frame struct {
		id    string
		depth int
	}
	var stack []frame
	roots := rec.Children("")
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{id: roots[i].ID})
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		item, ok := rec.Item(cur.id)
		if !ok {
			continue
		}
		label := item.Name
		if item.Retry {
			label += " (retry)"
		}
		t.AppendRow(table.Row{
			item.Type,
			strings.Repeat("  ", cur.depth) + label,
			getStatusString(item.Status),
			len(item.Logs),
			formatAttributes(item.Attributes),
		})
		children := rec.Children(item.ID)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: children[i].ID, depth: cur.depth + 1})
		}
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d attempts, %d passed, %d failed, %d skipped, %d interrupted",
			summary.Total, summary.Passed, summary.Failed, summary.Skipped, summary.Interrupted),
		getStatusString(summary.Status),
		len(rec.LaunchLogs()),
		fmt.Sprintf("forced suites: %d, remote failures: %d", summary.ForcedSuites, summary.RemoteFailures),
	})
	t.Render()
	return nil
}
