package database

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cursordb/pkg/dberror"
	"cursordb/pkg/table"
	"cursordb/pkg/tuple"
)

const (
	// CatalogFile holds the table and index definitions of a database.
	CatalogFile    = "catalog.json"
	catalogVersion = 1
)

type tableMeta struct {
	Name    string           `json:"name"`
	Columns []tuple.Column   `json:"columns"`
	Indexes []table.IndexDef `json:"indexes,omitempty"`
}

type catalog struct {
	Version int         `json:"version"`
	Tables  []tableMeta `json:"tables"`
}

func loadCatalog(dir string) (catalog, error) {
	path := filepath.Join(dir, CatalogFile)
	data, err := os.ReadFile(path) // #nosec G304
	if errors.Is(err, os.ErrNotExist) {
		return catalog{Version: catalogVersion}, nil
	}
	if err != nil {
		return catalog{}, dberror.IOFailure("LoadCatalog", err)
	}

	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return catalog{}, dberror.Corruption(path, "%v", err)
	}
	if c.Version != catalogVersion {
		return catalog{}, dberror.Corruption(path, "unsupported catalog version %d", c.Version)
	}
	return c, nil
}

// writeCatalog replaces the catalog file atomically.
func writeCatalog(dir string, c catalog) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return dberror.Wrap(err, dberror.CodeIOFailure, "SaveCatalog", "Database")
	}
	tmp := filepath.Join(dir, CatalogFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return dberror.IOFailure("SaveCatalog", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, CatalogFile)); err != nil {
		return dberror.IOFailure("SaveCatalog", err)
	}
	return nil
}

// snapshotCatalog describes the open tables and indexes whose creation has
// been committed. The caller holds db.mutex.
func (db *Database) snapshotCatalog() catalog {
	c := catalog{Version: catalogVersion}
	for key, t := range db.tables {
		if db.uncommitted[key] != "" {
			continue
		}
		cols := slices.Clone(t.TupleDesc().Columns)
		for i := range cols {
			cols[i].Table = ""
		}
		var defs []table.IndexDef
		for _, ix := range t.Indexes() {
			if db.uncommitted[indexKey(t.Name(), ix.Name)] == "" {
				defs = append(defs, ix.IndexDef)
			}
		}
		slices.SortFunc(defs, func(a, b table.IndexDef) int { return strings.Compare(a.Name, b.Name) })
		c.Tables = append(c.Tables, tableMeta{Name: t.Name(), Columns: cols, Indexes: defs})
	}
	slices.SortFunc(c.Tables, func(a, b tableMeta) int { return strings.Compare(a.Name, b.Name) })
	return c
}

// saveCatalog persists the definitions of every open table.
func (db *Database) saveCatalog() error {
	db.mutex.RLock()
	c := db.snapshotCatalog()
	db.mutex.RUnlock()
	return writeCatalog(db.dataDir, c)
}
