// Package dbtsource reads dbt source definitions enriched with Kaggle
// metadata. Each dataset lives in its own dbt model directory and declares a
// single source whose tables map one-to-one to files in a Kaggle dataset:
//
//	version: 2
//	sources:
//	  - name: cars
//	    schema: kaggle_raw
//	    meta:
//	      kaggle_dataset: owner/used-cars
//	      delimiter: "|"
//	      null_value: NA
//	    tables:
//	      - name: vehicles
//	        meta: { kaggle_file_name: vehicles.csv }
//	        columns:
//	          - name: vehicle_id
//	            data_type: integer
//	            meta: { kaggle_column_name: Veh_ID }
package dbtsource

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"kaggleelt/internal/sanitizer"
)

const (
	defaultDelimiter       = "|"
	defaultNullValue       = "NA"
	defaultEncoding        = "utf-8"
	defaultSourceDelimiter = ","
	defaultQuote           = `"`
)

// Source is one dbt source describing a Kaggle dataset.
type Source struct {
	Name   string
	Schema string

	KaggleOwner string
	KaggleName  string

	// Delimiter separates fields in the sanitized stream handed to COPY.
	Delimiter string
	// NullValue is the token COPY interprets as NULL.
	NullValue string
	// Encoding is the character encoding of the downloaded files.
	Encoding string
	// SourceDelimiter and Quote describe the downloaded CSV files.
	SourceDelimiter string
	Quote           string

	Tables []*Table
}

// Table is a source table backed by one file in the Kaggle dataset.
type Table struct {
	Name           string
	Schema         string
	KaggleFileName string
	Columns        []Column
}

// Column is a table column with its original Kaggle header name.
type Column struct {
	Name             string
	DataType         string
	KaggleColumnName string
}

// KaggleFullName returns "owner/name".
func (s *Source) KaggleFullName() string {
	return s.KaggleOwner + "/" + s.KaggleName
}

// Table returns the named table.
func (s *Source) Table(name string) (*Table, error) {
	for _, t := range s.Tables {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, fmt.Errorf("source %s: no table %q", s.Name, name)
}

// TableNames returns table names in declaration order.
func (s *Source) TableNames() []string {
	out := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		out[i] = t.Name
	}
	return out
}

// SanitizerOptions returns the sanitizer configuration for this source's
// files. The replacement separator matches the COPY delimiter.
func (s *Source) SanitizerOptions() sanitizer.Options {
	return sanitizer.Options{
		Sep:            firstRune(s.SourceDelimiter),
		ReplacementSep: s.Delimiter,
		Quote:          firstRune(s.Quote),
	}
}

// QualifiedName returns "schema.name".
func (t *Table) QualifiedName() string {
	return t.Schema + "." + t.Name
}

// ColumnNames returns the target column names in declaration order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// KaggleToDBTMapping maps original Kaggle header names to column names.
func (t *Table) KaggleToDBTMapping() sanitizer.Mapping {
	m := make(sanitizer.Mapping, len(t.Columns))
	for _, c := range t.Columns {
		m[c.KaggleColumnName] = c.Name
	}
	return m
}

// Raw YAML shapes.
type (
	fileYAML struct {
		Version int          `yaml:"version"`
		Sources []sourceYAML `yaml:"sources"`
	}
	sourceYAML struct {
		Name   string      `yaml:"name"`
		Schema string      `yaml:"schema"`
		Meta   sourceMeta  `yaml:"meta"`
		Tables []tableYAML `yaml:"tables"`
	}
	sourceMeta struct {
		KaggleDataset   string  `yaml:"kaggle_dataset"`
		Delimiter       string  `yaml:"delimiter"`
		NullValue       *string `yaml:"null_value"`
		Encoding        string  `yaml:"encoding"`
		SourceDelimiter string  `yaml:"source_delimiter"`
		Quote           string  `yaml:"quote"`
	}
	tableYAML struct {
		Name string `yaml:"name"`
		Meta struct {
			KaggleFileName string `yaml:"kaggle_file_name"`
		} `yaml:"meta"`
		Columns []columnYAML `yaml:"columns"`
	}
	columnYAML struct {
		Name     string `yaml:"name"`
		DataType string `yaml:"data_type"`
		Meta     struct {
			KaggleColumnName string `yaml:"kaggle_column_name"`
		} `yaml:"meta"`
	}
)

// Parse decodes a dbt sources file. Only the first source is used.
func Parse(r io.Reader) (*Source, error) {
	var f fileYAML
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("dbtsource: empty document")
		}
		return nil, fmt.Errorf("dbtsource: decode: %w", err)
	}
	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("dbtsource: no sources declared")
	}
	sy := f.Sources[0]

	owner, name, ok := strings.Cut(sy.Meta.KaggleDataset, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("dbtsource: source %q: kaggle_dataset %q is not owner/name", sy.Name, sy.Meta.KaggleDataset)
	}

	src := &Source{
		Name:            sy.Name,
		Schema:          sy.Schema,
		KaggleOwner:     owner,
		KaggleName:      name,
		Delimiter:       orDefault(sy.Meta.Delimiter, defaultDelimiter),
		NullValue:       defaultNullValue,
		Encoding:        orDefault(sy.Meta.Encoding, defaultEncoding),
		SourceDelimiter: orDefault(sy.Meta.SourceDelimiter, defaultSourceDelimiter),
		Quote:           orDefault(sy.Meta.Quote, defaultQuote),
	}
	// An explicit empty null_value is meaningful (empty string loads as NULL).
	if sy.Meta.NullValue != nil {
		src.NullValue = *sy.Meta.NullValue
	}
	for _, ty := range sy.Tables {
		t := &Table{
			Name:           ty.Name,
			Schema:         src.Schema,
			KaggleFileName: ty.Meta.KaggleFileName,
		}
		for _, cy := range ty.Columns {
			t.Columns = append(t.Columns, Column{
				Name:             cy.Name,
				DataType:         cy.DataType,
				KaggleColumnName: cy.Meta.KaggleColumnName,
			})
		}
		src.Tables = append(src.Tables, t)
	}
	return src, nil
}

// Encode writes s as a dbt sources file that Parse reads back.
func Encode(w io.Writer, s *Source) error {
	null := s.NullValue
	sy := sourceYAML{
		Name:   s.Name,
		Schema: s.Schema,
		Meta: sourceMeta{
			KaggleDataset:   s.KaggleFullName(),
			Delimiter:       s.Delimiter,
			NullValue:       &null,
			Encoding:        s.Encoding,
			SourceDelimiter: s.SourceDelimiter,
			Quote:           s.Quote,
		},
	}
	for _, t := range s.Tables {
		ty := tableYAML{Name: t.Name}
		ty.Meta.KaggleFileName = t.KaggleFileName
		for _, c := range t.Columns {
			cy := columnYAML{Name: c.Name, DataType: c.DataType}
			cy.Meta.KaggleColumnName = c.KaggleColumnName
			ty.Columns = append(ty.Columns, cy)
		}
		sy.Tables = append(sy.Tables, ty)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fileYAML{Version: 2, Sources: []sourceYAML{sy}}); err != nil {
		return fmt.Errorf("dbtsource: encode: %w", err)
	}
	return enc.Close()
}

// ReadFile parses the dbt sources file at path.
func ReadFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}
