package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Column headers of the rows produced from a database catalog.
// They are chosen to resolve through the spreadsheet header synonyms.
const (
	HeaderTable       = "Table Name"
	HeaderTableNote   = "Table Description"
	HeaderColumn      = "Column Name"
	HeaderDataType    = "Data Type"
	HeaderPrimaryKey  = "Primary Key"
	HeaderForeignKey  = "Foreign Key"
	HeaderReferences  = "References"
	HeaderNullable    = "Nullable"
	HeaderUnique      = "Unique"
	HeaderDescription = "Description"
)

// CatalogHeaders lists the row headers in column order
var CatalogHeaders = []string{
	HeaderTable, HeaderTableNote, HeaderColumn, HeaderDataType, HeaderPrimaryKey,
	HeaderForeignKey, HeaderReferences, HeaderNullable, HeaderUnique, HeaderDescription,
}

// Column is one column read from a database catalog
type Column struct {
	Name         string
	Type         string
	Nullable     bool
	IsUnique     bool
	IsPrimaryKey bool
	RefTable     string
	RefColumn    string
	Comment      string
}

// Table is one table read from a database catalog
type Table struct {
	Name    string
	Comment string
	Columns []Column
}

// Catalog reads table definitions from a live database
type Catalog interface {
	ReadTables(ctx context.Context, tables []string) ([]Table, error)
	Close(ctx context.Context) error
}

// IsDatabaseURL reports whether the input names a database rather than a file
func IsDatabaseURL(s string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "mysql://", "sqlite://"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// ParseDatabaseURL detects database type and returns connection string
func ParseDatabaseURL(url string) (dbType, connectionStr string, err error) {
	if url == "" {
		return "", "", fmt.Errorf("database URL is required")
	}

	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return "postgres", url, nil
	}

	if strings.HasPrefix(url, "mysql://") {
		// The Go MySQL driver takes a bare DSN
		return "mysql", strings.TrimPrefix(url, "mysql://"), nil
	}

	if strings.HasPrefix(url, "sqlite://") {
		return "sqlite", strings.TrimPrefix(url, "sqlite://"), nil
	}

	return "", "", fmt.Errorf("invalid database URL scheme (must start with postgres://, mysql://, or sqlite://)")
}

// Open connects to the database named by url and returns its catalog reader.
// schemaName is optional: "public" for PostgreSQL, the DSN database for MySQL.
func Open(ctx context.Context, url, schemaName string) (Catalog, error) {
	dbType, connStr, err := ParseDatabaseURL(url)
	if err != nil {
		return nil, err
	}

	switch dbType {
	case "postgres":
		client, err := NewPostgresClient(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if schemaName == "" {
			schemaName = "public"
		}
		return NewPostgresCatalog(client, schemaName), nil
	case "mysql":
		if schemaName == "" {
			schemaName, err = ParseDatabaseName(connStr)
			if err != nil {
				return nil, fmt.Errorf("failed to determine database name: %w", err)
			}
		}
		client, err := NewMySQLClient(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		return NewMySQLCatalog(client, schemaName), nil
	default:
		client, err := NewSQLiteClient(ctx, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
		}
		return NewSQLiteCatalog(client), nil
	}
}

// ToSheets turns catalog tables into ingest sheets, one sheet per table
func ToSheets(tables []Table) []schema.Sheet {
	sheets := make([]schema.Sheet, 0, len(tables))
	for i, t := range tables {
		sheet := schema.Sheet{
			Name:    t.Name,
			Index:   i + 1,
			Headers: append([]string(nil), CatalogHeaders...),
		}
		for j, col := range t.Columns {
			refs := ""
			if col.RefTable != "" {
				refs = col.RefTable + "." + col.RefColumn
			}
			sheet.Rows = append(sheet.Rows, schema.RawRow{
				Values: map[string]any{
					HeaderTable:       t.Name,
					HeaderTableNote:   nilIfEmpty(t.Comment),
					HeaderColumn:      col.Name,
					HeaderDataType:    col.Type,
					HeaderPrimaryKey:  col.IsPrimaryKey,
					HeaderForeignKey:  col.RefTable != "",
					HeaderReferences:  nilIfEmpty(refs),
					HeaderNullable:    col.Nullable,
					HeaderUnique:      col.IsUnique,
					HeaderDescription: nilIfEmpty(col.Comment),
				},
				SourceSheet: t.Name,
				SheetNumber: i + 1,
				SourceRow:   j + 2,
			})
		}
		sheets = append(sheets, sheet)
	}
	return sheets
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// markKeys applies primary-key and foreign-key catalog facts to the columns
func markKeys(columns []Column, pk []string, refs map[string][2]string) {
	pkSet := make(map[string]bool, len(pk))
	for _, name := range pk {
		pkSet[name] = true
	}
	for i := range columns {
		// Composite keys are not modelled: only a single-column key marks its column
		columns[i].IsPrimaryKey = len(pk) == 1 && pkSet[columns[i].Name]
		if ref, ok := refs[columns[i].Name]; ok {
			columns[i].RefTable, columns[i].RefColumn = ref[0], ref[1]
		}
	}
}
