package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/listingcrawl/listingcrawl/internal/common"
	"github.com/listingcrawl/listingcrawl/internal/models"
)

// Writer is the Storage Writer facade (spec §4.L): silver JSONL, gold CSV,
// and the relational SQLite tier, plus the output-path bookkeeping the
// run manifest needs.
type Writer struct {
	silverRoot string
	goldRoot   string
	db         *DB
}

// NewWriter builds a Writer over the given tier roots and relational DB.
func NewWriter(silverRoot, goldRoot string, db *DB) *Writer {
	return &Writer{silverRoot: silverRoot, goldRoot: goldRoot, db: db}
}

// WriteSilver appends entity as one JSON line to
// <silver_root>/<entity_type>-<run_id>.jsonl (spec §4.L). Returns the
// path written, for the run manifest's output_paths list.
func (w *Writer) WriteSilver(entityType models.EntityType, runID string, entity *models.Entity) (string, error) {
	if entityType == "" {
		return "", nil
	}

	if err := os.MkdirAll(w.silverRoot, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating silver dir %s: %v", common.ErrFatal, w.silverRoot, err)
	}

	path := filepath.Join(w.silverRoot, fmt.Sprintf("%s-%s.jsonl", entityType, runID))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: opening silver file %s: %v", common.ErrFatal, path, err)
	}
	defer f.Close()

	data, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("%w: marshalling entity: %v", common.ErrFatal, err)
	}

	w2 := bufio.NewWriter(f)
	if _, err := w2.Write(data); err != nil {
		return "", fmt.Errorf("%w: writing silver record: %v", common.ErrFatal, err)
	}
	if err := w2.WriteByte('\n'); err != nil {
		return "", fmt.Errorf("%w: writing silver record: %v", common.ErrFatal, err)
	}
	if err := w2.Flush(); err != nil {
		return "", fmt.Errorf("%w: flushing silver file: %v", common.ErrFatal, err)
	}

	return path, nil
}

// WriteGold (re)writes the CSV for entityType on runDate's UTC day,
// computing a column-union header across every entity passed (spec
// §4.L). Each call is a full rewrite of that day's file for that type,
// since gold is regenerated per run rather than append-only.
func (w *Writer) WriteGold(entityType models.EntityType, runDate time.Time, entities []*models.Entity) (string, error) {
	if entityType == "" || len(entities) == 0 {
		return "", nil
	}

	day := runDate.UTC().Format("2006-01-02")
	dir := filepath.Join(w.goldRoot, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating gold dir %s: %v", common.ErrFatal, dir, err)
	}

	path := filepath.Join(dir, string(entityType)+".csv")

	columns := columnUnion(entities)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: creating gold file %s: %v", common.ErrFatal, path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(columns); err != nil {
		return "", fmt.Errorf("%w: writing gold header: %v", common.ErrFatal, err)
	}

	for _, e := range entities {
		row := rowFor(e.AsMap(), columns)
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("%w: writing gold row: %v", common.ErrFatal, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("%w: flushing gold file: %v", common.ErrFatal, err)
	}

	return path, nil
}

func columnUnion(entities []*models.Entity) []string {
	seen := make(map[string]bool)
	var columns []string
	for _, e := range entities {
		for k := range e.AsMap() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return columns
}

func rowFor(fields map[string]interface{}, columns []string) []string {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = cellString(fields[col])
	}
	return row
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// UpsertRelational inserts or updates entity's row keyed on dedupKey,
// leaving immutableColumns untouched on conflict (spec §4.L). Returns
// whether the row was newly inserted (no row with dedupKey existed before
// the call).
func (w *Writer) UpsertRelational(entityType models.EntityType, dedupKey string, e *models.Entity) (inserted bool, err error) {
	table := tableFor(string(entityType))

	var existsBefore int
	if err := w.db.conn.QueryRow(fmt.Sprintf("SELECT COUNT(1) FROM %s WHERE dedup_key = ?", table), dedupKey).Scan(&existsBefore); err != nil {
		return false, fmt.Errorf("%w: checking existing row: %v", common.ErrFatal, err)
	}

	updateSet := make([]string, 0, len(relationalColumns))
	for _, col := range relationalColumns {
		if col == "dedup_key" || immutableColumns[col] {
			continue
		}
		updateSet = append(updateSet, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(dedup_key) DO UPDATE SET %s`,
		table,
		joinColumns(relationalColumns),
		joinColumns(updateSet),
	)

	_, err = w.db.conn.Exec(query,
		dedupKey, e.SourceID, e.Title, e.VenueName, e.Address, e.City,
		e.Country, e.Timezone, e.Start, e.End, e.PriceText, e.PriceValue,
		e.Organizer, e.URL, e.SportType, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("%w: upserting into %s: %v", common.ErrFatal, table, err)
	}

	return existsBefore == 0, nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
