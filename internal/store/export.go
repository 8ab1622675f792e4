package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// exportEnvelope is the transportable file format: the persisted
// envelope with an export timestamp instead of lastModified.
type exportEnvelope struct {
	Version    int             `json:"version"`
	Data       json.RawMessage `json:"data"`
	ExportedAt string          `json:"exportedAt"`
}

// Export serializes the entire document to the transportable JSON
// format: {version, data, exportedAt}.
func (s *Store) Export() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(s.doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	out, err := json.MarshalIndent(exportEnvelope{
		Version:    SchemaVersion,
		Data:       data,
		ExportedAt: s.timestamp(),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode export: %w", err)
	}
	return string(out), nil
}

// ExportFilename returns the date-stamped name for a JSON export file.
func (s *Store) ExportFilename() string {
	return fmt.Sprintf("darkhaven_database_%s.json", s.now().UTC().Format("2006-01-02"))
}

// SQLFilename returns the date-stamped name for a SQL export file.
func (s *Store) SQLFilename() string {
	return fmt.Sprintf("darkhaven_database_%s.sql", s.now().UTC().Format("2006-01-02"))
}

// Import replaces the document wholesale from a serialized export. The
// payload must parse and carry a top-level data field; on any failure
// the current document is left untouched. The import is never applied
// partially.
func (s *Store) Import(serialized string) error {
	var env exportEnvelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		return fmt.Errorf("parse import: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return errors.New("import has no data field")
	}
	var doc Document
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		return fmt.Errorf("parse import data: %w", err)
	}
	doc.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return s.persistLocked()
}

// ExportSQL flattens the document into one INSERT statement per row of
// every list-valued table. The output is a human-readable artifact,
// not meant to be re-imported.
func (s *Store) ExportSQL() (string, error) {
	s.mu.RLock()
	raw, err := json.Marshal(s.doc)
	s.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	var tables map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tables); err != nil {
		return "", fmt.Errorf("decode document tables: %w", err)
	}

	var b strings.Builder
	b.WriteString("-- Dark Haven Database Export\n")
	fmt.Fprintf(&b, "-- Generated: %s\n\n", s.now().UTC().Format(time.RFC3339))

	for _, table := range tableNames(tables) {
		var rows []map[string]any
		if err := json.Unmarshal(tables[table], &rows); err != nil {
			// Scalar and object tables (user, heroData, ...) have no
			// row shape in the SQL artifact.
			continue
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "-- Table: %s\n", table)
		for _, row := range rows {
			columns := make([]string, 0, len(row))
			for column := range row {
				columns = append(columns, column)
			}
			sort.Strings(columns)

			values := make([]string, len(columns))
			for i, column := range columns {
				values[i] = sqlValue(row[column])
			}
			fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s);\n",
				table, strings.Join(columns, ", "), strings.Join(values, ", "))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

// sqlValue renders one cell: strings quoted with doubled single
// quotes, nil as NULL, objects as quoted JSON, everything else bare.
func sqlValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	case map[string]any, []any:
		raw, err := json.Marshal(value)
		if err != nil {
			return "NULL"
		}
		return "'" + strings.ReplaceAll(string(raw), "'", "''") + "'"
	default:
		return fmt.Sprintf("%v", value)
	}
}

// Size reports the byte size of the JSON export, with a human-readable
// rendering.
func (s *Store) Size() (int, string, error) {
	data, err := s.Export()
	if err != nil {
		return 0, "", err
	}
	bytes := len(data)
	return bytes, readableSize(bytes), nil
}

func readableSize(bytes int) string {
	kb := float64(bytes) / 1024
	mb := kb / 1024
	switch {
	case mb >= 1:
		return fmt.Sprintf("%.2f MB", mb)
	case kb >= 1:
		return fmt.Sprintf("%.2f KB", kb)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
