package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrSchemaDirNotFound is returned when the schema directory does not exist.
	ErrSchemaDirNotFound = errors.New("schema directory does not exist")

	// ErrInvalidSchema is returned for a definition missing required keys,
	// malformed YAML, or a duplicate id.
	ErrInvalidSchema = errors.New("invalid schema definition")
)

// Catalog is the ordered, read-only set of schemas for one run.
type Catalog struct {
	dir     string
	schemas []Schema
	byID    map[string]int
}

// Loader reads and validates schema definition files.
type Loader struct {
	validate *validator.Validate
}

// NewLoader returns a Loader whose validation errors use YAML key names.
func NewLoader() *Loader {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Loader{validate: v}
}

// LoadCatalog loads every *.yaml and *.yml file in dir using a fresh Loader.
func LoadCatalog(dir string) (*Catalog, error) {
	return NewLoader().LoadDir(dir)
}

// LoadFile loads a single definition using a fresh Loader.
func LoadFile(path string) (Schema, error) {
	return NewLoader().LoadFile(path)
}

// LoadDir reads every *.yaml and *.yml file in dir, in filename order.
// One bad definition fails the whole load; no partial catalog is returned.
func (l *Loader) LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaDirNotFound, dir)
		}
		return nil, fmt.Errorf("stat schema directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrSchemaDirNotFound, dir)
	}

	// os.ReadDir returns entries sorted by filename
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read schema directory %s: %w", dir, err)
	}

	var schemas []Schema
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}

		s, err := l.LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}

	cat, err := NewCatalog(schemas...)
	if err != nil {
		return nil, err
	}
	cat.dir = dir
	return cat, nil
}

// LoadFile reads and validates one definition.
func (l *Loader) LoadFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read schema %s: %w", path, err)
	}

	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Schema{}, fmt.Errorf("%w: %s: %v", ErrInvalidSchema, path, err)
	}

	s := def.toSchema()
	if err := l.check(s); err != nil {
		return Schema{}, fmt.Errorf("%w: schema file %s %v", ErrInvalidSchema, path, err)
	}
	return s, nil
}

// check validates required keys and reports them by YAML name.
func (l *Loader) check(s Schema) error {
	err := l.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing []string
	seen := make(map[string]bool)
	for _, fe := range verrs {
		// dive errors are reported as file_patterns[2]
		key := strings.SplitN(fe.Field(), "[", 2)[0]
		if !seen[key] {
			seen[key] = true
			missing = append(missing, key)
		}
	}
	return fmt.Errorf("is missing required keys: %s", strings.Join(missing, ", "))
}

func isDefinitionFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// NewCatalog builds a catalog from already loaded schemas, preserving order.
// Schema ids must be unique.
func NewCatalog(schemas ...Schema) (*Catalog, error) {
	c := &Catalog{
		schemas: make([]Schema, len(schemas)),
		byID:    make(map[string]int, len(schemas)),
	}
	copy(c.schemas, schemas)

	for i, s := range c.schemas {
		if prev, ok := c.byID[s.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate id %q (entries %d and %d)", ErrInvalidSchema, s.ID, prev, i)
		}
		c.byID[s.ID] = i
	}
	return c, nil
}

// All returns the schemas in catalog order. The slice is a copy.
func (c *Catalog) All() []Schema {
	out := make([]Schema, len(c.schemas))
	copy(out, c.schemas)
	return out
}

// Len returns the number of schemas.
func (c *Catalog) Len() int {
	return len(c.schemas)
}

// At returns the schema at catalog position i.
func (c *Catalog) At(i int) Schema {
	return c.schemas[i]
}

// Get looks a schema up by id.
func (c *Catalog) Get(id string) (Schema, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Schema{}, false
	}
	return c.schemas[i], true
}

// Dir returns the directory the catalog was loaded from, if any.
func (c *Catalog) Dir() string {
	return c.dir
}
