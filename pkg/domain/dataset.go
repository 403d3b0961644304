package domain

import (
	"strings"
)

// PreviewRows is the number of head rows kept for prompt construction.
const PreviewRows = 5

// Dataset is a named tabular dataset handed to a run by the caller.
// The core only reads it.
type Dataset struct {
	// Name is the file name the generated code loads (e.g. "customers.csv").
	Name string `json:"name"`
	// Path is where the dataset lives on the executing host.
	Path    string     `json:"path,omitempty"`
	Columns []string   `json:"columns"`
	Head    [][]string `json:"head,omitempty"`
}

// HasColumn reports whether the dataset declares the given column.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Preview renders the column header and head rows as a small table.
func (d *Dataset) Preview() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(strings.Join(d.Columns, "\t"))
	for i, row := range d.Head {
		if i >= PreviewRows {
			break
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(row, "\t"))
	}
	return b.String()
}
