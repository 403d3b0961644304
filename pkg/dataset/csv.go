// Package dataset loads tabular files into the dataset descriptions runs
// receive: a name, the column header and a short preview.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/runner"
)

// ErrNoHeader is returned for files without a header row.
var ErrNoHeader = errors.New("dataset has no header row")

// LoadField loads the CSV file named by a request field. The path is
// checked first; every failure is an *domain.InputError for field.
func LoadField(field, path string) (*domain.Dataset, error) {
	clean, err := runner.SanitizePath(field, path)
	if err != nil {
		return nil, err
	}
	ds, err := LoadCSV(clean)
	if err != nil {
		return nil, &domain.InputError{Field: field, Err: err}
	}
	return ds, nil
}

// LoadCSV reads the header and up to domain.PreviewRows rows of a CSV file.
// The rest of the file is not read.
func LoadCSV(path string) (*domain.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	ds, err := ReadCSV(filepath.Base(path), f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		ds.Path = abs
	} else {
		ds.Path = path
	}
	return ds, nil
}

// ReadCSV builds a dataset description from a CSV stream.
func ReadCSV(name string, r io.Reader) (*domain.Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	ds := &domain.Dataset{Name: name, Columns: columns, Head: [][]string{}}
	for len(ds.Head) < domain.PreviewRows {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(ds.Head)+1, err)
		}
		ds.Head = append(ds.Head, row)
	}
	return ds, nil
}
