package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/dsflow/pkg/domain"
)

func requireInputError(t *testing.T, err error, field string) {
	t.Helper()
	var inputErr *domain.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, field, inputErr.Field)
}

func TestSanitizeMessage_SizeLimit(t *testing.T) {
	limit := DefaultMaxInputSize

	tests := []struct {
		name      string
		inputSize int
		wantErr   bool
	}{
		{"Under Limit", limit - 1, false},
		{"Exact Limit", limit, false},
		{"Over Limit", limit + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeMessage(strings.Repeat("a", tt.inputSize))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInputTooLarge)
				requireInputError(t, err, FieldMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeMessage_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Predict churn", "Predict churn"},
		{"Safe Controls", "Line1\nLine2\tTabbed\r\n", "Line1\nLine2\tTabbed\r\n"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "Null\x00Byte", "NullByte"},
		{"Bell", "Ding\x07", "Ding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeMessage(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizeMessage_Rejects(t *testing.T) {
	_, err := SanitizeMessage("bad \xff byte")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	requireInputError(t, err, FieldMessage)

	_, err = SanitizeMessage("\x00\x07 \n")
	assert.ErrorIs(t, err, domain.ErrEmptyTask)
	assert.EqualError(t, err, "invalid message: no task message")
}

func TestSanitizeMessage_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "10")

	_, err := SanitizeMessage("12345678901")
	assert.ErrorIs(t, err, ErrInputTooLarge)

	_, err = SanitizeMessage("12345")
	assert.NoError(t, err)
}

func TestSanitizePath(t *testing.T) {
	got, err := SanitizePath(FieldDatasetPath, "/data/./train/../churn.CSV")
	require.NoError(t, err)
	assert.Equal(t, "/data/churn.CSV", got)

	for name, path := range map[string]string{
		"empty":         "  ",
		"not csv":       "/etc/passwd",
		"newline":       "/data/churn.csv\n/etc/passwd",
		"null byte":     "/data/churn\x00.csv",
		"invalid utf8":  "/data/\xff.csv",
		"too long":      "/" + strings.Repeat("a", MaxPathLength) + ".csv",
		"csv directory": "/data/churn.csv/",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SanitizePath(FieldTestDatasetPath, path)
			require.Error(t, err)
			requireInputError(t, err, FieldTestDatasetPath)
			assert.Contains(t, err.Error(), "invalid test_dataset_path")
		})
	}
}

func TestSanitizeDataset_CleansCopy(t *testing.T) {
	in := &domain.Dataset{
		Name:    "churn.csv",
		Path:    "/data//churn.csv",
		Columns: []string{"ten\x1bure", "churn"},
		Head:    [][]string{{"1\x00", "0"}},
	}

	out, err := SanitizeDataset(FieldDataset, in)
	require.NoError(t, err)
	assert.Equal(t, &domain.Dataset{
		Name:    "churn.csv",
		Path:    "/data/churn.csv",
		Columns: []string{"tenure", "churn"},
		Head:    [][]string{{"1", "0"}},
	}, out)
	assert.Equal(t, "ten\x1bure", in.Columns[0], "input must not be modified")

	out, err = SanitizeDataset(FieldDataset, nil)
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestSanitizeDataset_Rejects(t *testing.T) {
	tests := []struct {
		name string
		ds   *domain.Dataset
		want error
	}{
		{"parent name", &domain.Dataset{Name: ".."}, ErrUnsafePath},
		{"nested name", &domain.Dataset{Name: "../secrets.csv"}, ErrUnsafePath},
		{"windows separator", &domain.Dataset{Name: `..\secrets.csv`}, ErrUnsafePath},
		{"empty name", &domain.Dataset{Name: ""}, ErrUnsafePath},
		{"bad path", &domain.Dataset{Name: "a.csv", Path: "/root/.ssh/id_rsa"}, ErrUnsafePath},
		{"bad column", &domain.Dataset{Name: "a.csv", Columns: []string{"\xff"}}, ErrInvalidUTF8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizeDataset(FieldTestDataset, tt.ds)
			assert.ErrorIs(t, err, tt.want)
			requireInputError(t, err, FieldTestDataset)
		})
	}
}

func TestSanitizeDataset_SharedBudget(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "8")

	_, err := SanitizeDataset(FieldDataset, &domain.Dataset{Name: "a.csv", Columns: []string{"abcd", "efgh"}})
	assert.NoError(t, err)

	_, err = SanitizeDataset(FieldDataset, &domain.Dataset{Name: "a.csv", Columns: []string{"abcd"}, Head: [][]string{{"efghi"}}})
	assert.ErrorIs(t, err, ErrInputTooLarge)
	assert.Contains(t, err.Error(), "row 0")
}
