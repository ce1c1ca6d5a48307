// Package schema loads dataset schema definitions from YAML files.
//
// Each file describes one dataset: which filenames it claims, and which column
// names must appear together in a header row. Definitions are validated at load
// time and then held read-only in a [Catalog] in filename order.
package schema

// DefaultVersion is used when a definition omits version.
const DefaultVersion = "1.0"

// Schema is one dataset definition. Values are read-only once loaded.
type Schema struct {
	ID           string `json:"id" yaml:"id" validate:"required"`
	SourceSystem string `json:"source_system" yaml:"source_system" validate:"required"`
	DatasetName  string `json:"dataset_name" yaml:"dataset_name" validate:"required"`
	Version      string `json:"version" yaml:"version"`
	Description  string `json:"description,omitempty" yaml:"description"`

	// FilePatterns are case-sensitive globs matched against the base filename.
	FilePatterns []string `json:"file_patterns" yaml:"file_patterns" validate:"required,min=1,dive,required"`

	// Hints for delimited files. Informational only.
	ExpectedDelimiter string `json:"expected_delimiter,omitempty" yaml:"expected_delimiter"`
	ExpectedEncoding  string `json:"expected_encoding,omitempty" yaml:"expected_encoding"`

	AllowExtraColumns bool `json:"allow_extra_columns" yaml:"-"`

	// RequiredColumns must all be present, exact and case-sensitive, in one row.
	RequiredColumns []string `json:"required_columns" yaml:"required_columns" validate:"required,min=1,dive,required"`
	OptionalColumns []string `json:"optional_columns,omitempty" yaml:"optional_columns"`
}

// definition is the on-disk shape. AllowExtraColumns is a pointer so an
// absent key can default to true.
type definition struct {
	Schema            `yaml:",inline"`
	AllowExtraColumns *bool `yaml:"allow_extra_columns"`
}

func (d definition) toSchema() Schema {
	s := d.Schema
	if s.Version == "" {
		s.Version = DefaultVersion
	}
	s.AllowExtraColumns = true
	if d.AllowExtraColumns != nil {
		s.AllowExtraColumns = *d.AllowExtraColumns
	}
	s.FilePatterns = cloneStrings(s.FilePatterns)
	s.RequiredColumns = cloneStrings(s.RequiredColumns)
	s.OptionalColumns = cloneStrings(s.OptionalColumns)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
