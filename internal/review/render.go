package review

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/restore"
)

// Summary writes an overview of the preview: where the backup came from,
// what mode the restore runs in and how many changes each bucket holds.
func Summary(w io.Writer, p *restore.Preview) {
	fmt.Fprintf(w, "Backup from %s", valueOr(p.Meta.ExportOrigin, "unknown device"))
	if !p.Meta.ExportTimestamp.IsZero() {
		fmt.Fprintf(w, " at %s", p.Meta.ExportTimestamp.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, " (app %s, scope %s)\n", valueOr(p.Meta.AppVersion, "?"), p.Meta.Scope)

	if p.ChecksumErr != nil {
		fmt.Fprintf(w, "Warning: %s\n", p.ChecksumErr)
	}

	if p.Mode == restore.ModeFullOverwrite {
		fmt.Fprintln(w, "Comparison is not available: restoring will overwrite local data.")
	} else {
		fmt.Fprintf(w, "Items: %d added, %d modified, %d deleted, %d unchanged\n",
			len(p.Items.Added), len(p.Items.Modified), len(p.Items.Deleted), len(p.Items.Unchanged))
		fmt.Fprintf(w, "Settings: %d changed\n", len(p.Settings.Changed))
		if n := len(p.Conflicts.Conflicts); n > 0 {
			fmt.Fprintf(w, "Conflicts: %d\n", n)
		}
	}

	if len(p.Records) > 0 {
		fmt.Fprintf(w, "Records to write: %s\n", strings.Join(p.Records, ", "))
	}
	if len(p.Replaced) > 0 {
		fmt.Fprintf(w, "Records that differ: %s\n", strings.Join(p.Replaced, ", "))
	}
	if len(p.Ignored) > 0 {
		fmt.Fprintf(w, "Ignored unknown records: %s\n", strings.Join(p.Ignored, ", "))
	}
}

// Changes writes every item and setting change of the preview.
func Changes(w io.Writer, p *restore.Preview) {
	for _, item := range p.Items.Added {
		fmt.Fprintf(w, "+ %s\n", Label(item, p.Key(item)))
	}
	for _, m := range p.Items.Modified {
		fmt.Fprintf(w, "~ %s\n", Label(m.Item, m.Key))
		for _, c := range m.Changes {
			FieldChange(w, "    ", c.Field, c.LocalVal, c.RemoteVal)
		}
	}
	for _, item := range p.Items.Deleted {
		fmt.Fprintf(w, "- %s\n", Label(item, p.Key(item)))
	}
	for _, c := range p.Settings.Changed {
		FieldChange(w, "  setting ", c.Key, c.LocalVal, c.RemoteVal)
	}
	for _, key := range p.Replaced {
		fmt.Fprintf(w, "~ record %s (backup replaces local value)\n", key)
	}
}

// FieldChange writes one changed field. Two strings get a text diff, any
// other pair is shown as old and new value.
func FieldChange(w io.Writer, indent, field string, local, remote any) {
	ls, lok := local.(string)
	rs, rok := remote.(string)
	if lok && rok {
		fmt.Fprintf(w, "%s%s: %s\n", indent, field, TextDiff(ls, rs))
		return
	}
	fmt.Fprintf(w, "%s%s: %s -> %s\n", indent, field, FormatValue(local), FormatValue(remote))
}

// Label names an item for display, preferring its name field.
func Label(item diff.Item, key string) string {
	if name, ok := item["name"].(string); ok && name != "" {
		return fmt.Sprintf("%s [%s]", name, key)
	}
	return key
}

// FormatValue renders a field value on one line.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "(none)"
	case string:
		return fmt.Sprintf("%q", v)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

// TextDiff shows how local becomes remote. Single-line values get an
// inline diff with [-removed-] and {+added+} markers; multi-line values get
// a line diff.
func TextDiff(local, remote string) string {
	if local == remote {
		return fmt.Sprintf("%q", local)
	}

	dmp := diffmatchpatch.New()

	if strings.Contains(local, "\n") || strings.Contains(remote, "\n") {
		a, b, lineArray := dmp.DiffLinesToChars(local, remote)
		diffs := dmp.DiffMain(a, b, false)
		diffs = dmp.DiffCharsToLines(diffs, lineArray)
		return "\n" + lineDiff(diffs)
	}

	diffs := dmp.DiffMain(local, remote, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		default:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

func lineDiff(diffs []diffmatchpatch.Diff) string {
	var b strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString("      " + prefix + " " + strings.TrimSuffix(line, "\n") + "\n")
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
