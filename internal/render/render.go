package render

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"github.com/xperimental/git-seek/internal/engine"
)

var errUnknownFormat = errors.New("unknown output format")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects how result rows are written.
type Format string

const (
	FormatRaw   Format = "raw"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// Formats lists the supported formats.
var Formats = []Format{FormatRaw, FormatJSON, FormatTable}

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == strings.ToLower(s) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q, expected one of raw, json, table", errUnknownFormat, s)
}

func (f *Format) String() string {
	return string(*f)
}

func (f *Format) Set(s string) error {
	parsed, err := ParseFormat(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f *Format) Type() string {
	return "format"
}

// UnmarshalYAML parses a format from the configuration file.
func (f *Format) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return f.Set(s)
}

// Renderer writes result rows to an output.
type Renderer struct {
	log logrus.FieldLogger
	out io.Writer
}

func New(log logrus.FieldLogger, out io.Writer) *Renderer {
	return &Renderer{
		log: log,
		out: out,
	}
}

// Render writes rows in the given format. Raw output is written while rows
// are produced, the other formats need the complete result first.
func (r *Renderer) Render(format Format, rows iter.Seq[engine.Row]) error {
	var (
		count int
		err   error
	)
	switch format {
	case FormatRaw:
		count, err = r.writeRaw(rows)
	case FormatJSON:
		count, err = r.writeJSON(rows)
	case FormatTable:
		count, err = r.writeTable(rows)
	default:
		return fmt.Errorf("%w %q", errUnknownFormat, format)
	}
	if err != nil {
		return err
	}

	r.log.Debugf("Rendered %s rows as %s.", humanize.Comma(int64(count)), format)
	return nil
}

func (r *Renderer) writeRaw(rows iter.Seq[engine.Row]) (int, error) {
	count := 0
	for row := range rows {
		count++
		if _, err := fmt.Fprintln(r.out, RawRow(row)); err != nil {
			return count, fmt.Errorf("can not write row: %w", err)
		}
	}
	return count, nil
}

// RawRow formats a row as {key: value, ...} with keys in sorted order.
func RawRow(row engine.Row) string {
	keys := sortedKeys(row)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+row[k].Literal())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (r *Renderer) writeJSON(rows iter.Seq[engine.Row]) (int, error) {
	result := []engine.Row{}
	for row := range rows {
		result = append(result, row)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("can not encode rows: %w", err)
	}

	if _, err := fmt.Fprintln(r.out, string(data)); err != nil {
		return 0, fmt.Errorf("can not write rows: %w", err)
	}
	return len(result), nil
}

func (r *Renderer) writeTable(rows iter.Seq[engine.Row]) (int, error) {
	var (
		header []string
		cells  [][]string
	)
	for row := range rows {
		if header == nil {
			header = sortedKeys(row)
		}

		line := make([]string, 0, len(header))
		for _, k := range header {
			value, ok := row[k]
			if !ok {
				line = append(line, "")
				continue
			}
			line = append(line, value.String())
		}
		cells = append(cells, line)
	}

	if len(cells) == 0 {
		return 0, nil
	}

	r.Table(header, cells)
	return len(cells), nil
}

// Table writes a table with a header line.
func (r *Renderer) Table(header []string, cells [][]string) {
	table := tablewriter.NewWriter(r.out)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.AppendBulk(cells)
	table.Render()
}

func sortedKeys(row engine.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
