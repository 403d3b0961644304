package process_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/dsflow/pkg/adapters/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptRunner_PassesPositionalParameters(t *testing.T) {
	r := process.NewScriptRunner()
	r.Register("fedot", "sh", "-c", `echo "$@"`, "fedot")

	res := r.RunScript(context.Background(), "fedot",
		"--df_name", "churn.csv", "--task_type", "binary", "--target", "churn", "--task_metric", "auc")

	require.False(t, res.Failed(), res.Failure())
	assert.Equal(t, "--df_name churn.csv --task_type binary --target churn --task_metric auc\n", res.Stdout)
}

func TestScriptRunner_UnregisteredScript(t *testing.T) {
	r := process.NewScriptRunner()

	res := r.RunScript(context.Background(), "rm")

	assert.True(t, res.Failed())
	assert.Contains(t, res.Err, "not registered")
	assert.False(t, r.Registered("rm"))
}

func TestScriptRunner_FromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scripts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scripts:
  - name: lightautoml
    command: sh
    args: ["-c", "echo $MODE $1", "lama"]
    env:
      MODE: fast
  - name: ""
    command: ignored
`), 0o644))

	scripts, err := process.LoadScripts(path)
	require.NoError(t, err)
	require.Len(t, scripts, 1)

	r := process.NewScriptRunner(process.WithRegistry(scripts), process.WithBaseDir(t.TempDir()))
	res := r.RunScript(context.Background(), "lightautoml", "--df_name")

	require.False(t, res.Failed(), res.Failure())
	assert.Equal(t, "fast --df_name\n", res.Stdout)
}

func TestLoadScripts(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		scripts, err := process.LoadScripts(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Empty(t, scripts)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scripts.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"scripts":[{"name":"fedot","command":"python3","args":["fedot_train.py"]}]}`), 0o644))

		scripts, err := process.LoadScripts(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"fedot_train.py"}, scripts["fedot"].Args)
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scripts.yaml")
		require.NoError(t, os.WriteFile(path, []byte("scripts: [::"), 0o644))

		_, err := process.LoadScripts(path)
		assert.Error(t, err)
	})
}
