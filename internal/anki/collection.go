package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mdcards/mdcards/pkg/logger"
)

// fieldSeparator joins note field values inside the flds column.
const fieldSeparator = "\x1f"

// DefaultDeckName is used when the collection carries no usable deck name.
const DefaultDeckName = "Imported Deck"

// reservedDeckID is Anki's built-in "Default" deck, skipped during deck
// name resolution.
const reservedDeckID = "1"

// Note is one row of the collection's notes table.
type Note struct {
	ID      int64
	GUID    string
	Fields  []string
	ModelID int64
}

// FieldNameSource records where the field-name metadata came from.
type FieldNameSource int

const (
	FieldNamesUnknown FieldNameSource = iota
	FieldNamesTable
	FieldNamesLegacyJSON
)

// FieldNameMap holds the ordered field display names per note type.
type FieldNameMap map[int64][]string

// Collection is everything the importer needs out of the embedded
// database.
type Collection struct {
	DeckName    string
	FieldNames  FieldNameMap
	FieldSource FieldNameSource
	Notes       []Note
}

// DBOpener turns a filesystem path into an open database handle. Injected
// so the codec never hard-wires driver selection.
type DBOpener func(path string) (*sql.DB, error)

// OpenSQLite is the production opener, backed by the pure-Go sqlite
// driver.
func OpenSQLite(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

// LoadCollection locates the collection entry, materializes it to a
// scratch file, and extracts deck name, field names and notes. The scratch
// file never outlives the call.
func LoadCollection(ctx context.Context, c *Container, open DBOpener, log *logger.Logger) (*Collection, error) {
	name, ok := c.FindEntry(CollectionCandidates...)
	if !ok {
		return nil, ErrMissingCollection
	}

	data, err := c.ReadEntry(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if strings.HasSuffix(name, ".anki21b") {
		data, err = Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", name, err)
		}
	}

	scratch, err := os.CreateTemp("", "mdcards-collection-"+uuid.NewString()+"-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch database: %w", err)
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	if _, err := scratch.Write(data); err != nil {
		scratch.Close()
		return nil, fmt.Errorf("failed to write scratch database: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return nil, fmt.Errorf("failed to close scratch database: %w", err)
	}

	db, err := open(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection database: %w", err)
	}
	defer db.Close()

	col := &Collection{FieldNames: FieldNameMap{}}
	col.DeckName = resolveDeckName(ctx, db, log)
	col.FieldNames, col.FieldSource = resolveFieldNames(ctx, db, log)

	col.Notes, err = readNotes(ctx, db)
	if err != nil {
		return nil, err
	}
	return col, nil
}

// resolveDeckName tries the legacy col.decks JSON blob, then a modern
// decks table, then gives up and returns the fixed default.
func resolveDeckName(ctx context.Context, db *sql.DB, log *logger.Logger) string {
	var decksJSON string
	err := db.QueryRowContext(ctx, "SELECT decks FROM col LIMIT 1").Scan(&decksJSON)
	if err == nil && len(decksJSON) > 2 {
		if name := deckNameFromJSON(decksJSON); name != "" {
			return name
		}
	} else if err != nil {
		log.Debug("no col.decks blob: %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx,
		"SELECT name FROM decks WHERE id != 1 ORDER BY id LIMIT 1").Scan(&name)
	if err == nil && name != "" {
		return name
	}

	return DefaultDeckName
}

func deckNameFromJSON(blob string) string {
	var decks map[string]struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(blob), &decks); err != nil {
		return ""
	}

	ids := make([]string, 0, len(decks))
	for id := range decks {
		if id == reservedDeckID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if decks[id].Name != "" {
			return decks[id].Name
		}
	}
	return ""
}

// resolveFieldNames prefers the modern fields table and falls back to the
// legacy col.models JSON blob. Malformed metadata is never fatal: the
// classifier copes with positional rules alone.
func resolveFieldNames(ctx context.Context, db *sql.DB, log *logger.Logger) (FieldNameMap, FieldNameSource) {
	if hasTable(ctx, db, "fields") {
		names, err := fieldNamesFromTable(ctx, db)
		if err != nil {
			log.Debug("fields table unreadable: %v", err)
		} else if len(names) > 0 {
			return names, FieldNamesTable
		}
	}

	var modelsJSON string
	if err := db.QueryRowContext(ctx, "SELECT models FROM col LIMIT 1").Scan(&modelsJSON); err != nil {
		log.Debug("no col.models blob: %v", err)
		return FieldNameMap{}, FieldNamesUnknown
	}
	names, err := fieldNamesFromModelsJSON(modelsJSON)
	if err != nil {
		log.Warn("malformed models JSON, falling back to positional fields: %v", err)
		return FieldNameMap{}, FieldNamesUnknown
	}
	return names, FieldNamesLegacyJSON
}

func hasTable(ctx context.Context, db *sql.DB, name string) bool {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	return err == nil && n > 0
}

func fieldNamesFromTable(ctx context.Context, db *sql.DB) (FieldNameMap, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT ntid, ord, name FROM fields ORDER BY ntid, ord")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := FieldNameMap{}
	for rows.Next() {
		var ntid int64
		var ord int
		var name string
		if err := rows.Scan(&ntid, &ord, &name); err != nil {
			return nil, err
		}
		for len(names[ntid]) <= ord {
			names[ntid] = append(names[ntid], "")
		}
		names[ntid][ord] = name
	}
	return names, rows.Err()
}

func fieldNamesFromModelsJSON(blob string) (FieldNameMap, error) {
	var models map[string]struct {
		Flds []struct {
			Name string `json:"name"`
			Ord  int    `json:"ord"`
		} `json:"flds"`
	}
	if err := json.Unmarshal([]byte(blob), &models); err != nil {
		return nil, err
	}

	names := FieldNameMap{}
	for id, model := range models {
		mid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		ordered := make([]string, len(model.Flds))
		for i, fld := range model.Flds {
			ord := fld.Ord
			if ord < 0 || ord >= len(ordered) {
				ord = i
			}
			ordered[ord] = fld.Name
		}
		names[mid] = ordered
	}
	return names, nil
}

func readNotes(ctx context.Context, db *sql.DB) ([]Note, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, guid, flds, mid FROM notes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var flds string
		if err := rows.Scan(&n.ID, &n.GUID, &flds, &n.ModelID); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.Fields = strings.Split(flds, fieldSeparator)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
