package runner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/dsflow/pkg/domain"
)

var (
	// DefaultMaxInputSize is 64KB, room for a task description with a
	// pasted data sample. It also bounds the text of an inline dataset.
	DefaultMaxInputSize = 64 * 1024
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "DSFLOW_MAX_INPUT_SIZE"
)

// MaxPathLength bounds dataset paths and names.
const MaxPathLength = 4096

// Request fields reported by InputError.
const (
	FieldMessage         = "message"
	FieldDataset         = "dataset"
	FieldTestDataset     = "test_dataset"
	FieldDatasetPath     = "dataset_path"
	FieldTestDatasetPath = "test_dataset_path"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrUnsafePath    = errors.New("unsafe dataset path")
)

// SanitizeMessage cleans the task message of a run: oversized input is
// rejected, never truncated, and control characters other than newline,
// tab and carriage return are stripped. A message that is blank after
// cleaning is rejected with domain.ErrEmptyTask.
func SanitizeMessage(msg string) (string, error) {
	clean, err := cleanText(msg, maxInputSize())
	if err == nil && strings.TrimSpace(clean) == "" {
		err = domain.ErrEmptyTask
	}
	if err != nil {
		return "", &domain.InputError{Field: FieldMessage, Err: err}
	}
	return clean, nil
}

// SanitizePath validates a dataset path taken from a request field and
// returns it cleaned. Paths carrying control characters are rejected
// rather than repaired, and only CSV files are accepted.
func SanitizePath(field, path string) (string, error) {
	if err := checkPath(path); err != nil {
		return "", &domain.InputError{Field: field, Err: err}
	}
	return filepath.Clean(path), nil
}

// SanitizeDataset returns a cleaned copy of an inline dataset description.
// The name must be a bare file name since generated code loads it from the
// working directory. A nil dataset is valid.
func SanitizeDataset(field string, ds *domain.Dataset) (*domain.Dataset, error) {
	if ds == nil {
		return nil, nil
	}
	fail := func(err error) (*domain.Dataset, error) {
		return nil, &domain.InputError{Field: field, Err: err}
	}

	if err := checkName(ds.Name); err != nil {
		return fail(err)
	}
	out := &domain.Dataset{Name: ds.Name}
	if ds.Path != "" {
		if err := checkPath(ds.Path); err != nil {
			return fail(err)
		}
		out.Path = filepath.Clean(ds.Path)
	}

	budget := maxInputSize()
	clean := func(s string) (string, error) {
		c, err := cleanText(s, budget)
		budget -= len(c)
		return c, err
	}
	out.Columns = make([]string, len(ds.Columns))
	for i, col := range ds.Columns {
		c, err := clean(col)
		if err != nil {
			return fail(fmt.Errorf("column %d: %w", i, err))
		}
		out.Columns[i] = c
	}
	if ds.Head != nil {
		out.Head = make([][]string, len(ds.Head))
	}
	for r, row := range ds.Head {
		out.Head[r] = make([]string, len(row))
		for i, cell := range row {
			c, err := clean(cell)
			if err != nil {
				return fail(fmt.Errorf("row %d: %w", r, err))
			}
			out.Head[r][i] = c
		}
	}
	return out, nil
}

func checkName(name string) error {
	switch {
	case len(name) > MaxPathLength:
		return fmt.Errorf("%w: name size=%d limit=%d", ErrInputTooLarge, len(name), MaxPathLength)
	case !utf8.ValidString(name):
		return ErrInvalidUTF8
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("%w: name %q", ErrUnsafePath, name)
	case strings.ContainsAny(name, `/\`) || hasControl(name, false):
		return fmt.Errorf("%w: name %q is not a bare file name", ErrUnsafePath, name)
	}
	return nil
}

func checkPath(path string) error {
	switch {
	case len(path) > MaxPathLength:
		return fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(path), MaxPathLength)
	case !utf8.ValidString(path):
		return ErrInvalidUTF8
	case strings.TrimSpace(path) == "":
		return fmt.Errorf("%w: empty path", ErrUnsafePath)
	case hasControl(path, false):
		return fmt.Errorf("%w: control characters in %q", ErrUnsafePath, path)
	case !strings.EqualFold(filepath.Ext(path), ".csv"):
		return fmt.Errorf("%w: %q is not a .csv file", ErrUnsafePath, filepath.Base(path))
	}
	return nil
}

// cleanText enforces limit and UTF-8 validity and strips unsafe control
// characters.
func cleanText(input string, limit int) (string, error) {
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if !hasControl(input, true) {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// hasControl reports control characters in s; allowSafe ignores newline,
// tab and carriage return.
func hasControl(s string, allowSafe bool) bool {
	for _, r := range s {
		if unicode.IsControl(r) && !(allowSafe && isSafeControl(r)) {
			return true
		}
	}
	return false
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
