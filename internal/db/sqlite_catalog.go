package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteCatalog reads table definitions from a SQLite database
type SQLiteCatalog struct {
	client *SQLClient
}

// NewSQLiteCatalog creates a SQLite catalog reader
func NewSQLiteCatalog(client *SQLClient) *SQLiteCatalog {
	return &SQLiteCatalog{client: client}
}

// Close closes the underlying connection
func (c *SQLiteCatalog) Close(context.Context) error {
	return c.client.Close()
}

// ReadTables reads the specified tables.
// If tables is empty, reads all tables in the database.
func (c *SQLiteCatalog) ReadTables(ctx context.Context, tables []string) ([]Table, error) {
	tableNames, err := c.getTableNames(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}

	out := make([]Table, 0, len(tableNames))
	for _, tableName := range tableNames {
		table, err := c.readTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", tableName, err)
		}
		out = append(out, *table)
	}
	return out, nil
}

func (c *SQLiteCatalog) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := c.client.GetDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tableList []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tableList = append(tableList, tableName)
	}

	return tableList, rows.Err()
}

func (c *SQLiteCatalog) readTable(ctx context.Context, tableName string) (*Table, error) {
	columns, pk, err := c.readColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	for i := range columns {
		unique, err := c.isColumnUnique(ctx, tableName, columns[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to read unique constraints: %w", err)
		}
		columns[i].IsUnique = unique
	}

	refs, err := c.readForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	markKeys(columns, pk, refs)
	return &Table{Name: tableName, Columns: columns}, nil
}

// readColumns returns the columns and the primary key columns in key order
func (c *SQLiteCatalog) readColumns(ctx context.Context, tableName string) ([]Column, []string, error) {
	rows, err := c.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var columns []Column
	pkByOrder := map[int]string{}

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, nil, err
		}

		columns = append(columns, Column{
			Name:     name,
			Type:     colType,
			Nullable: notNull == 0 && pk == 0,
		})
		if pk > 0 {
			pkByOrder[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pk := make([]string, 0, len(pkByOrder))
	for i := 1; i <= len(pkByOrder); i++ {
		pk = append(pk, pkByOrder[i])
	}
	return columns, pk, nil
}

// isColumnUnique checks for a single-column unique index on the column
func (c *SQLiteCatalog) isColumnUnique(ctx context.Context, tableName, columnName string) (bool, error) {
	rows, err := c.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteIdent(tableName)))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var uniqueIndexes []string
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return false, err
		}
		// origin "pk" is the implicit primary key index
		if unique == 1 && origin != "pk" {
			uniqueIndexes = append(uniqueIndexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}

	for _, name := range uniqueIndexes {
		cols, err := c.indexColumns(ctx, name)
		if err != nil {
			return false, err
		}
		if len(cols) == 1 && cols[0] == columnName {
			return true, nil
		}
	}
	return false, nil
}

func (c *SQLiteCatalog) indexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := c.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteIdent(indexName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString
		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}
	return columns, rows.Err()
}

func (c *SQLiteCatalog) readForeignKeys(ctx context.Context, tableName string) (map[string][2]string, error) {
	rows, err := c.client.GetDB().QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(tableName)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string][2]string)
	for rows.Next() {
		var id, seq int
		var targetTable, fromCol, onUpdate, onDelete, match string
		var toCol sql.NullString

		if err := rows.Scan(&id, &seq, &targetTable, &fromCol, &toCol, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		// A reference without a column targets the parent's primary key
		target := toCol.String
		if !toCol.Valid || target == "" {
			target = "id"
		}
		if _, seen := refs[fromCol]; !seen {
			refs[fromCol] = [2]string{targetTable, target}
		}
	}

	return refs, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
