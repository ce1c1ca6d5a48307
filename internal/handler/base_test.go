package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsYAML = `
id: sfdc_accounts
source_system: salesforce
dataset_name: accounts
file_patterns: ["acct_*.csv"]
required_columns: ["Account ID"]
`

func newClassifier(t *testing.T, files map[string]string) (*Classifier, core.Router) {
	t.Helper()
	root := t.TempDir()
	router := core.NewRouter(root)

	require.NoError(t, os.MkdirAll(router.IncomingDir(), 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(router.IncomingDir(), name), []byte(body), 0o644))
	}

	schemaDir := filepath.Join(root, "schemas")
	require.NoError(t, os.Mkdir(schemaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "accounts.yaml"), []byte(accountsYAML), 0o644))

	svc := core.NewService(core.ServiceConfig{
		Options:   core.Options{Root: root},
		SchemaDir: schemaDir,
	}, nil)
	return NewClassifier(svc), router
}

func TestClassifier_Classify(t *testing.T) {
	c, router := newClassifier(t, map[string]string{"acct_1.csv": "Account ID\n1\n"})

	msg := c.Classify()()
	run, ok := msg.(RunMsg)
	require.True(t, ok, "got %T", msg)

	assert.Equal(t, 1, run.Result.Summary.Matched)
	assert.Equal(t, "menu", run.Result.Trigger.Source)

	entries, err := os.ReadDir(router.IncomingDir())
	require.NoError(t, err)
	assert.Empty(t, entries)

	last, ok := c.LastRun()().(RunMsg)
	require.True(t, ok)
	assert.Equal(t, run.Result.RunID, last.Result.RunID)
}

func TestClassifier_DryRun(t *testing.T) {
	c, router := newClassifier(t, map[string]string{"acct_1.csv": "Account ID\n1\n"})

	run, ok := c.DryRun()().(RunMsg)
	require.True(t, ok)
	assert.True(t, run.Result.DryRun)
	assert.FileExists(t, filepath.Join(router.IncomingDir(), "acct_1.csv"))
}

func TestClassifier_SchemaErrorIsUserFacing(t *testing.T) {
	c, _ := newClassifier(t, nil)
	require.NoError(t, os.RemoveAll(c.Service.SchemaDir()))

	msg, ok := c.Classify()().(ErrMsg)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, schema.ErrSchemaDirNotFound)
	assert.Equal(t, "The schema directory does not exist", msg.Err.Error())

	_, ok = c.ListSchemas()().(ErrMsg)
	assert.True(t, ok)
}

func TestClassifier_ListSchemas(t *testing.T) {
	c, _ := newClassifier(t, nil)

	msg, ok := c.ListSchemas()().(WdMsg)
	require.True(t, ok)
	assert.Equal(t, WdMsg("sfdc_accounts -> salesforce/accounts  acct_*.csv"), msg)
}

func TestClassifier_LastRunEmpty(t *testing.T) {
	c, _ := newClassifier(t, nil)
	assert.Equal(t, WdMsg("No runs yet"), c.LastRun()())
}

func TestFormatRun(t *testing.T) {
	r := &core.RunResult{
		RunID:  "run-1",
		DryRun: true,
		Records: []core.Record{
			{OriginalPath: "/in/acct.csv", Status: core.StatusMatched, SchemaID: "sfdc_accounts"},
			{OriginalPath: "/in/x.csv", Status: core.StatusUnclassified, Reason: core.ReasonNoFilePatternMatch},
		},
		Summary: core.Summary{Matched: 1, Unclassified: 1, Total: 2},
	}

	got := FormatRun(r)
	assert.Contains(t, got, "Run run-1 (dry run): matched=1, unclassified=1, rejected=0, total=2")
	assert.Contains(t, got, "acct.csv -> sfdc_accounts")
	assert.Contains(t, got, "x.csv -> no_file_pattern_match")
	assert.NotContains(t, got, "log:")
}
