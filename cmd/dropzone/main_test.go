package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsDefinition = `
id: sfdc_accounts
source_system: salesforce
dataset_name: accounts
file_patterns: ["acct_*.csv"]
required_columns: ["Account ID", "Account Name"]
`

// setupEnv isolates the test from the developer's settings file and database.
func setupEnv(t *testing.T) (root, schemaDir string) {
	t.Helper()
	dir := t.TempDir()

	settings := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(settings, []byte("logging:\n  level: error\n"), 0o644))
	t.Setenv("DROPZONE_SETTINGS", settings)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	root = filepath.Join(dir, "lake")
	schemaDir = filepath.Join(dir, "schemas")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "drop_zone", "incoming"), 0o755))
	require.NoError(t, os.MkdirAll(schemaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "sfdc_accounts.yaml"), []byte(accountsDefinition), 0o644))
	return root, schemaDir
}

func drop(t *testing.T, root, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, "drop_zone", "incoming", name), []byte(body), 0o644))
}

func TestRun_Classify(t *testing.T) {
	root, schemaDir := setupEnv(t)
	drop(t, root, "acct_2024.csv", "Account ID,Account Name\n001,Acme\n")
	drop(t, root, "random.csv", "a,b\n1,2\n")

	code := run([]string{"-root", root, "-schemas", schemaDir, "classify"})
	require.Equal(t, 0, code)

	raw, err := filepath.Glob(filepath.Join(root, "raw", "salesforce", "accounts", "load_date=*", "acct_2024.csv"))
	require.NoError(t, err)
	assert.Len(t, raw, 1)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "unclassified", "random.csv"))

	logs, err := filepath.Glob(filepath.Join(root, "drop_zone", "classification_logs", "classification_*.csv"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRun_DefaultsToClassify(t *testing.T) {
	root, schemaDir := setupEnv(t)
	drop(t, root, "random.csv", "a,b\n")

	code := run([]string{"-root", root, "-schemas", schemaDir})
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "unclassified", "random.csv"))
}

func TestRun_DryRunFlag(t *testing.T) {
	root, schemaDir := setupEnv(t)
	drop(t, root, "acct_2024.csv", "Account ID,Account Name\n")

	code := run([]string{"-root", root, "-schemas", schemaDir, "-dry-run", "classify-drop-zone"})
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "incoming", "acct_2024.csv"))
	assert.NoDirExists(t, filepath.Join(root, "drop_zone", "classification_logs"))
}

func TestRun_FlagsAfterCommand(t *testing.T) {
	root, schemaDir := setupEnv(t)
	drop(t, root, "acct_2024.csv", "Account ID,Account Name\n")

	code := run([]string{"classify", "-root", root, "-schemas", schemaDir, "-dry-run"})
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "incoming", "acct_2024.csv"))
	assert.NoDirExists(t, filepath.Join(root, "drop_zone", "classification_logs"))
	assert.NoDirExists(t, filepath.Join(root, "raw"))
}

func TestRun_RequeueDryRunAfterArea(t *testing.T) {
	root, schemaDir := setupEnv(t)
	rejected := filepath.Join(root, "drop_zone", "rejected")
	require.NoError(t, os.MkdirAll(rejected, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(rejected, "bad.csv"), []byte("a\n"), 0o644))

	code := run([]string{"-root", root, "-schemas", schemaDir, "requeue", "rejected", "-dry-run"})
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(rejected, "bad.csv"))
	assert.NoFileExists(t, filepath.Join(root, "drop_zone", "incoming", "bad.csv"))
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		wantDry bool
	}{
		{"flags first", []string{"-dry-run", "classify"}, []string{"classify"}, true},
		{"flags last", []string{"classify", "-dry-run"}, []string{"classify"}, true},
		{"interleaved", []string{"requeue", "-dry-run", "rejected", "a.csv"}, []string{"requeue", "rejected", "a.csv"}, true},
		{"no flags", []string{"schemas"}, []string{"schemas"}, false},
		{"terminator", []string{"requeue", "--", "rejected", "-odd.csv"}, []string{"requeue", "rejected", "-odd.csv"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			dry := fs.Bool("dry-run", false, "")

			got, err := parseArgs(fs, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDry, *dry)
		})
	}
}

func TestRun_MissingSchemaDirFails(t *testing.T) {
	root, _ := setupEnv(t)
	drop(t, root, "acct_2024.csv", "Account ID,Account Name\n")

	code := run([]string{"-root", root, "-schemas", filepath.Join(root, "nope"), "classify"})
	assert.Equal(t, 1, code)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "incoming", "acct_2024.csv"))
}

func TestRun_Schemas(t *testing.T) {
	root, schemaDir := setupEnv(t)
	assert.Equal(t, 0, run([]string{"-root", root, "-schemas", schemaDir, "schemas"}))
}

func TestRun_Requeue(t *testing.T) {
	root, schemaDir := setupEnv(t)
	unclassified := filepath.Join(root, "drop_zone", "unclassified")
	require.NoError(t, os.MkdirAll(unclassified, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(unclassified, "random.csv"), []byte("a\n"), 0o644))

	code := run([]string{"-root", root, "-schemas", schemaDir, "requeue", "unclassified"})
	require.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(root, "drop_zone", "incoming", "random.csv"))
	assert.NoFileExists(t, filepath.Join(unclassified, "random.csv"))
}

func TestRun_UsageErrors(t *testing.T) {
	root, schemaDir := setupEnv(t)
	base := []string{"-root", root, "-schemas", schemaDir}

	tests := []struct {
		name string
		args []string
	}{
		{"unknown command", append(base, "explode")},
		{"classify with extra argument", append(base, "classify", "now")},
		{"flag error after command", append(base, "classify", "-workers", "many")},
		{"unknown flag", []string{"-nope"}},
		{"requeue without area", append(base, "requeue")},
		{"requeue bad area", append(base, "requeue", "raw")},
		{"requeue too many args", append(base, "requeue", "rejected", "a.csv", "b.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 2, run(tt.args))
		})
	}
}

func TestRun_InvalidFlagValue(t *testing.T) {
	root, schemaDir := setupEnv(t)
	assert.Equal(t, 1, run([]string{"-root", root, "-schemas", schemaDir, "-workers", "0", "classify"}))
}
