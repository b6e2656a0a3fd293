// Package report renders run summaries as tables.
package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/handiism/spritefetch/internal/download"
)

// Render writes a per-category table of summary to w, followed by a
// table of failed records when there are any.
func Render(w io.Writer, summary *download.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("%s strategy, concurrency %d", summary.Strategy, summary.Concurrency)

	t.AppendHeader(table.Row{"Category", "Stored", "Failed", "Bytes"})
	for _, name := range summary.CategoryNames() {
		stats := summary.Categories[name]
		t.AppendRow(table.Row{name, stats.Stored, stats.Failed, stats.Bytes})
	}
	t.AppendFooter(table.Row{"Total", summary.Stored, summary.Failed, summary.Bytes})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	t.Render()

	failures := summary.Failures()
	if len(failures) == 0 {
		return
	}

	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetStyle(table.StyleLight)
	f.AppendHeader(table.Row{"Record", "Stage", "Reason"})
	for _, o := range failures {
		f.AppendRow(table.Row{o.Record.Key(), o.Stage, o.Reason()})
	}
	f.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 80},
	})
	fmt.Fprintln(w)
	f.Render()
}
