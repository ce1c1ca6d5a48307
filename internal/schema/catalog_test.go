package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountsYAML = `
id: sfdc_accounts
source_system: salesforce
dataset_name: accounts
file_patterns: ["acct_*.csv"]
required_columns: ["Name", "Id"]
`

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadFile_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "accounts.yaml", accountsYAML)

	s, err := LoadFile(filepath.Join(dir, "accounts.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sfdc_accounts", s.ID)
	assert.Equal(t, "salesforce", s.SourceSystem)
	assert.Equal(t, "accounts", s.DatasetName)
	assert.Equal(t, DefaultVersion, s.Version)
	assert.True(t, s.AllowExtraColumns, "allow_extra_columns defaults to true")
	assert.Equal(t, []string{"acct_*.csv"}, s.FilePatterns)
	assert.Equal(t, []string{"Name", "Id"}, s.RequiredColumns)
	assert.Empty(t, s.OptionalColumns)
}

func TestLoadFile_AllFields(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "full.yml", `
id: ns_customers
source_system: netsuite
dataset_name: customers
version: 2
description: Customer search
file_patterns: ["CustomerSearch*.csv", "CustomerSearch*.xlsx"]
expected_delimiter: ";"
expected_encoding: latin-1
allow_extra_columns: false
required_columns: ["Internal ID"]
optional_columns: ["Balance"]
`)

	s, err := LoadFile(filepath.Join(dir, "full.yml"))
	require.NoError(t, err)

	assert.Equal(t, "2", s.Version)
	assert.Equal(t, "Customer search", s.Description)
	assert.Equal(t, ";", s.ExpectedDelimiter)
	assert.Equal(t, "latin-1", s.ExpectedEncoding)
	assert.False(t, s.AllowExtraColumns)
	assert.Equal(t, []string{"Balance"}, s.OptionalColumns)
}

func TestLoadFile_MissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		missing []string
	}{
		{
			name:    "empty document",
			body:    "",
			missing: []string{"id", "source_system", "dataset_name", "file_patterns", "required_columns"},
		},
		{
			name: "empty required list",
			body: `
id: a
source_system: s
dataset_name: d
file_patterns: ["*.csv"]
required_columns: []
`,
			missing: []string{"required_columns"},
		},
		{
			name: "empty id string",
			body: `
id: ""
source_system: s
dataset_name: d
file_patterns: ["*.csv"]
required_columns: [A]
`,
			missing: []string{"id"},
		},
		{
			name: "blank pattern entry",
			body: `
id: a
source_system: s
dataset_name: d
file_patterns: [""]
required_columns: [A]
`,
			missing: []string{"file_patterns"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bad.yaml", tt.body)

			_, err := LoadFile(filepath.Join(dir, "bad.yaml"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSchema)
			for _, key := range tt.missing {
				assert.Contains(t, err.Error(), key)
			}
		})
	}
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "id: [unterminated")

	_, err := LoadFile(filepath.Join(dir, "broken.yaml"))
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

// ============================================================================
// Catalog
// ============================================================================

func TestLoadCatalog_FilenameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b_second.yml", `
id: second
source_system: s
dataset_name: two
file_patterns: ["*.csv"]
required_columns: [A]
`)
	writeFile(t, dir, "a_first.yaml", `
id: first
source_system: s
dataset_name: one
file_patterns: ["*.csv"]
required_columns: [A]
`)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	cat, err := LoadCatalog(dir)
	require.NoError(t, err)

	require.Equal(t, 2, cat.Len())
	assert.Equal(t, "first", cat.At(0).ID)
	assert.Equal(t, "second", cat.At(1).ID)
	assert.Equal(t, dir, cat.Dir())

	s, ok := cat.Get("second")
	require.True(t, ok)
	assert.Equal(t, "two", s.DatasetName)

	_, ok = cat.Get("missing")
	assert.False(t, ok)
}

func TestLoadCatalog_MissingDir(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrSchemaDirNotFound)
}

func TestLoadCatalog_OneBadFileFailsAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", accountsYAML)
	writeFile(t, dir, "b.yaml", "id: only_id\n")

	cat, err := LoadCatalog(dir)
	assert.Nil(t, cat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.yaml")
}

func TestLoadCatalog_EmptyDir(t *testing.T) {
	cat, err := LoadCatalog(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, cat.Len())
}

func TestNewCatalog_DuplicateID(t *testing.T) {
	s := Schema{ID: "x", SourceSystem: "s", DatasetName: "d", FilePatterns: []string{"*"}, RequiredColumns: []string{"A"}}

	_, err := NewCatalog(s, s)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestCatalog_AllReturnsCopy(t *testing.T) {
	cat, err := NewCatalog(Schema{ID: "x"})
	require.NoError(t, err)

	all := cat.All()
	all[0].ID = "mutated"

	assert.Equal(t, "x", cat.At(0).ID)
}

func TestLoadCatalog_ShippedDefinitions(t *testing.T) {
	cat, err := LoadCatalog(filepath.Join("..", "..", "config", "schemas"))
	require.NoError(t, err)
	assert.Greater(t, cat.Len(), 0)

	for _, s := range cat.All() {
		assert.NotEmpty(t, s.FilePatterns, s.ID)
		assert.NotEmpty(t, s.RequiredColumns, s.ID)
	}
}
