package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultMaxRows is the probe row cap when none is configured.
const DefaultMaxRows = 50

var (
	// ErrUnsupportedFormat is returned for extensions other than .csv, .xlsx and .xls.
	ErrUnsupportedFormat = errors.New("unsupported file extension")

	// ErrFileNotFound is returned when the path is not a regular file.
	ErrFileNotFound = errors.New("file does not exist")

	// ErrInvalidEncoding is returned when delimited text is not UTF-8.
	ErrInvalidEncoding = errors.New("invalid UTF-8")
)

// Prober reads a bounded row prefix from CSV and workbook files. It never
// decides which row is the header.
type Prober struct {
	maxRows int
}

// NewProber returns a Prober reading at most maxRows rows per file.
// Non-positive values use DefaultMaxRows.
func NewProber(maxRows int) *Prober {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Prober{maxRows: maxRows}
}

// MaxRows returns the row cap.
func (p *Prober) MaxRows() int {
	return p.maxRows
}

// Probe reads up to MaxRows rows from path. Cells are trimmed; missing cells
// are empty strings.
func (p *Prober) Probe(ctx context.Context, path string) (*ProbedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFileNotFound, path)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(extension(name))

	var rows [][]string
	switch ext {
	case ".csv":
		rows, err = p.readCSV(ctx, path)
	case ".xlsx", ".xls":
		rows, err = p.readWorkbook(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %q for path %s", ErrUnsupportedFormat, ext, path)
	}
	if err != nil {
		return nil, err
	}

	return &ProbedFile{
		Path:      path,
		Name:      name,
		Extension: ext,
		Rows:      rows,
	}, nil
}

// extension returns the final dotted suffix of name. Dotfiles without a
// further dot and names ending in a dot have none.
func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	return name[i:]
}

// readCSV reads comma-separated UTF-8 text. Blank lines are kept as empty rows
// so row indexes match line positions. Field and record size limits bound the
// read when a stray quote swallows the rest of the file.
func (p *Prober) readCSV(ctx context.Context, path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := newRecordReader(WrapForProbe(f))
	rows := make([][]string, 0, p.maxRows)

	for len(rows) < p.maxRows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", path, err)
		}
		rows = append(rows, normalizeRow(record))
	}

	return rows, nil
}

// readWorkbook reads the first sheet of a workbook. Rows with no cells at all
// are skipped, matching how spreadsheet readers drop blank rows.
func (p *Prober) readWorkbook(ctx context.Context, path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return [][]string{}, nil
	}

	it, err := f.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheets[0], path, err)
	}
	defer it.Close()

	rows := make([][]string, 0, p.maxRows)
	for len(rows) < p.maxRows && it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cols, err := it.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row of %s: %w", path, err)
		}

		if isEmptyRow(cols) {
			continue
		}
		rows = append(rows, normalizeWorkbookRow(cols))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("iterate rows of %s: %w", path, err)
	}

	return rows, nil
}

// normalizeRow trims every cell.
func normalizeRow(cells []string) []string {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = normalizeCell(c)
	}
	return row
}

// normalizeCell trims a delimited-text cell. Missing cells are already "".
func normalizeCell(v string) string {
	return strings.TrimSpace(v)
}

// workbookNullValues are spreadsheet cell texts read as missing values.
var workbookNullValues = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// normalizeWorkbookRow maps null-like cells to "" and trims the rest.
func normalizeWorkbookRow(cells []string) []string {
	row := make([]string, len(cells))
	for i, c := range cells {
		if _, isNull := workbookNullValues[c]; isNull {
			continue
		}
		row[i] = normalizeCell(c)
	}
	return row
}

// isEmptyRow returns true if every cell is empty.
func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
