package review

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/illarion/statevault/internal/diff"
	"github.com/illarion/statevault/internal/restore"
)

// Report formats
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Applied is the part of a report describing a committed restore.
type Applied struct {
	Written []string `json:"written" yaml:"written"`
	Items   int      `json:"items" yaml:"items"`
}

// Report is a machine-readable account of one restore.
type Report struct {
	Mode       string            `json:"mode" yaml:"mode"`
	Origin     string            `json:"origin,omitempty" yaml:"origin,omitempty"`
	AppVersion string            `json:"appVersion,omitempty" yaml:"appVersion,omitempty"`
	Exported   time.Time         `json:"exported" yaml:"exported"`
	Scope      string            `json:"scope" yaml:"scope"`
	ChecksumOK bool              `json:"checksumOk" yaml:"checksumOk"`
	Items      diff.Result       `json:"items" yaml:"items"`
	Settings   diff.SettingsDiff `json:"settings" yaml:"settings"`
	Conflicts  []diff.Conflict   `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Records    []string          `json:"records,omitempty" yaml:"records,omitempty"`
	Replaced   []string          `json:"replaced,omitempty" yaml:"replaced,omitempty"`
	Ignored    []string          `json:"ignored,omitempty" yaml:"ignored,omitempty"`
	Applied    *Applied          `json:"applied,omitempty" yaml:"applied,omitempty"`
}

// NewReport builds a report from a preview and, when the restore was
// applied, its outcome.
func NewReport(p *restore.Preview, out *restore.Outcome) *Report {
	r := &Report{
		Mode:       string(p.Mode),
		Origin:     p.Meta.ExportOrigin,
		AppVersion: p.Meta.AppVersion,
		Exported:   p.Meta.ExportTimestamp,
		Scope:      string(p.Meta.Scope),
		ChecksumOK: p.ChecksumErr == nil,
		Items:      p.Items,
		Settings:   p.Settings,
		Conflicts:  p.Conflicts.Conflicts,
		Records:    p.Records,
		Replaced:   p.Replaced,
		Ignored:    p.Ignored,
	}
	if out != nil {
		r.Applied = &Applied{Written: out.Written, Items: out.Items}
	}
	return r
}

// Write encodes the report as yaml or json.
func (r *Report) Write(w io.Writer, format string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	switch format {
	case FormatJSON:
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		// Going through JSON keeps field order and renders json.Number
		// values as numbers rather than quoted strings
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		blockStyle(&node)

		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q (use yaml or json)", format)
	}
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
