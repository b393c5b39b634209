package db

import (
	"context"
	"fmt"
)

const varcharType = "varchar"

// PostgresCatalog reads table definitions from a PostgreSQL schema
type PostgresCatalog struct {
	client *PostgresClient
	schema string
}

// NewPostgresCatalog creates a catalog reader for one schema
func NewPostgresCatalog(client *PostgresClient, schemaName string) *PostgresCatalog {
	return &PostgresCatalog{
		client: client,
		schema: schemaName,
	}
}

// Close closes the underlying connection
func (c *PostgresCatalog) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// ReadTables reads the specified tables.
// If tables is empty, reads all base tables in the schema.
func (c *PostgresCatalog) ReadTables(ctx context.Context, tables []string) ([]Table, error) {
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

func (c *PostgresCatalog) getTableNames(ctx context.Context, requestedTables []string) ([]string, error) {
	if len(requestedTables) > 0 {
		return requestedTables, nil
	}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := c.client.GetConnection().Query(ctx, query, c.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, err
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

func (c *PostgresCatalog) readTable(ctx context.Context, tableName string) (*Table, error) {
	table := &Table{Name: tableName}

	comment, err := c.tableComment(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read table comment: %w", err)
	}
	table.Comment = comment

	columns, err := c.readColumns(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	pk, err := c.readPrimaryKey(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key: %w", err)
	}

	refs, err := c.readForeignKeys(ctx, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys: %w", err)
	}

	markKeys(columns, pk, refs)
	table.Columns = columns
	return table, nil
}

func (c *PostgresCatalog) tableComment(ctx context.Context, tableName string) (string, error) {
	query := `
		SELECT COALESCE(obj_description(cls.oid, 'pg_class'), '')
		FROM pg_class cls
		JOIN pg_namespace n ON n.oid = cls.relnamespace
		WHERE n.nspname = $1 AND cls.relname = $2
	`
	var comment string
	if err := c.client.GetConnection().QueryRow(ctx, query, c.schema, tableName).Scan(&comment); err != nil {
		return "", err
	}
	return comment, nil
}

// normalizePostgresType maps verbose SQL type names to commonly-used PostgreSQL equivalents
func normalizePostgresType(dataType, udtName string, charMaxLength *int) string {
	switch dataType {
	case "timestamp with time zone":
		return "timestamptz"
	case "timestamp without time zone":
		return "timestamp"
	case "time with time zone":
		return "timetz"
	case "time without time zone":
		return "time"
	case "character varying":
		if charMaxLength != nil {
			return fmt.Sprintf("varchar(%d)", *charMaxLength)
		}
		return varcharType
	case "character":
		if charMaxLength != nil {
			return fmt.Sprintf("char(%d)", *charMaxLength)
		}
		return "char"
	case "ARRAY":
		// udt_name has underscore prefix for arrays (e.g., "_text" for text[])
		if len(udtName) > 0 && udtName[0] == '_' {
			return fmt.Sprintf("%s[]", normalizeUdtName(udtName[1:]))
		}
		return "array"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// normalizeUdtName converts PostgreSQL internal type names to more readable forms
func normalizeUdtName(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	case "bool":
		return "boolean"
	default:
		return udtName
	}
}

func (c *PostgresCatalog) readColumns(ctx context.Context, tableName string) ([]Column, error) {
	query := `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			CASE WHEN EXISTS (
				SELECT 1 FROM information_schema.table_constraints tc
				JOIN information_schema.constraint_column_usage ccu
					ON tc.constraint_name = ccu.constraint_name
					AND tc.table_schema = ccu.table_schema
				WHERE tc.table_schema = $1
					AND tc.table_name = $2
					AND tc.constraint_type = 'UNIQUE'
					AND ccu.column_name = c.column_name
			) THEN true ELSE false END AS is_unique,
			c.udt_name,
			c.character_maximum_length,
			COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '')
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := c.client.GetConnection().Query(ctx, query, c.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var nullable, dataType, udtName string
		var charMaxLength *int

		if err := rows.Scan(&col.Name, &dataType, &nullable, &col.IsUnique, &udtName, &charMaxLength, &col.Comment); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		col.Type = normalizePostgresType(dataType, udtName, charMaxLength)
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

func (c *PostgresCatalog) readPrimaryKey(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = $1
			AND table_name = $2
			AND constraint_name IN (
				SELECT constraint_name
				FROM information_schema.table_constraints
				WHERE table_schema = $1
					AND table_name = $2
					AND constraint_type = 'PRIMARY KEY'
			)
		ORDER BY ordinal_position
	`

	rows, err := c.client.GetConnection().Query(ctx, query, c.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pk []string
	for rows.Next() {
		var colName string
		if err := rows.Scan(&colName); err != nil {
			return nil, err
		}
		pk = append(pk, colName)
	}

	return pk, rows.Err()
}

// readForeignKeys maps each referencing column to its target table and column
func (c *PostgresCatalog) readForeignKeys(ctx context.Context, tableName string) (map[string][2]string, error) {
	query := `
		SELECT
			kcu.column_name,
			ccu.table_name AS foreign_table_name,
			ccu.column_name AS foreign_column_name
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`

	rows, err := c.client.GetConnection().Query(ctx, query, c.schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[string][2]string)
	for rows.Next() {
		var column, targetTable, targetColumn string
		if err := rows.Scan(&column, &targetTable, &targetColumn); err != nil {
			return nil, err
		}
		if _, seen := refs[column]; !seen {
			refs[column] = [2]string{targetTable, targetColumn}
		}
	}

	return refs, rows.Err()
}
