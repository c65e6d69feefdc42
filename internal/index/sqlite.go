// Package index implements mlib.Index on SQLite.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"mlib/internal/index/migrations"
	"mlib/internal/mlib"
)

const mediaColumns = `id, hash, filename, ext, size, caption, time_add, type,
	sub_type, type_addition, series_uuid, series_no, comment`

// SQLiteIndex implements the Index interface using SQLite.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

// NewSQLiteIndex opens the index at path, applies pending migrations and
// verifies the resulting schema version. path can be ":memory:".
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// NewSQLiteIndexFromDB wraps an existing, already migrated connection.
func NewSQLiteIndexFromDB(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// OpenConnection opens a SQLite connection configured for the index:
// foreign keys enforced, one connection owned exclusively by this process.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Media operations

func (s *SQLiteIndex) InsertMedia(media *mlib.Media) (int64, error) {
	if s.db == nil {
		return 0, mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO media (hash, filename, ext, size, caption, time_add,
		type, sub_type, type_addition, comment) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		media.Hash, media.Filename, media.Ext, media.Size, nullString(media.Caption),
		media.AddedAt.UTC(), int(media.Type), nullString(media.SubType),
		nullString(media.TypeAddition), nullString(media.Comment))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintUnique) {
			return 0, fmt.Errorf("media with hash %s: %w", media.Hash, mlib.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("inserting media: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading media id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	media.ID = id
	return id, nil
}

func (s *SQLiteIndex) GetMedia(id int64) (*mlib.Media, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	row := s.db.QueryRow("SELECT "+mediaColumns+" FROM media WHERE id = ?", id)
	media, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("media %d: %w", id, mlib.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	return media, nil
}

func (s *SQLiteIndex) FindMediaByHash(hash string) (*mlib.Media, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	row := s.db.QueryRow("SELECT "+mediaColumns+" FROM media WHERE hash = ?", hash)
	media, err := scanMedia(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("media with hash %s: %w", hash, mlib.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching media by hash: %w", err)
	}
	return media, nil
}

func (s *SQLiteIndex) ListMedia() ([]*mlib.Media, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	return queryMedia(s.db, "SELECT "+mediaColumns+" FROM media ORDER BY id")
}

func (s *SQLiteIndex) UpdateMedia(id int64, fields map[string]any) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	filtered, err := mlib.FilterUpdate(fields)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := mediaExists(tx, id); err != nil {
		return err
	}

	if len(filtered) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filtered))
	for k := range filtered {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		// Column names come from mlib.UpdatableFields, never from callers.
		sets[i] = k + " = ?"
		switch v := filtered[k].(type) {
		case mlib.MediaType:
			args = append(args, int(v))
		case string:
			if k == mlib.FieldFilename {
				args = append(args, v)
			} else {
				args = append(args, nullString(v))
			}
		default:
			args = append(args, v)
		}
	}
	args = append(args, id)

	if _, err := tx.Exec("UPDATE media SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...); err != nil {
		return fmt.Errorf("updating media: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) DeleteMedia(id int64) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	series, err := currentSeries(tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM media WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}

	if mlib.ValidUUID(series) {
		if err := adjustCount(tx, series, -1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Series operations

func (s *SQLiteIndex) CreateSeries(series *mlib.Series) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	_, err := s.db.Exec("INSERT INTO series (uuid, caption, media_count, comment) VALUES (?, ?, 0, ?)",
		series.UUID, nullString(series.Caption), nullString(series.Comment))
	if err != nil {
		if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) || isConstraint(err, sqlite3.ErrConstraintUnique) {
			return fmt.Errorf("series %s: %w", series.UUID, mlib.ErrAlreadyExists)
		}
		return fmt.Errorf("inserting series: %w", err)
	}
	series.MediaCount = 0
	return nil
}

func (s *SQLiteIndex) GetSeries(uuid string) (*mlib.Series, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	series, err := getSeries(s.db, uuid)
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (s *SQLiteIndex) ListSeries() ([]*mlib.Series, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	rows, err := s.db.Query("SELECT uuid, caption, media_count, comment FROM series ORDER BY caption, uuid")
	if err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}
	defer rows.Close()

	var result []*mlib.Series
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning series: %w", err)
		}
		result = append(result, series)
	}
	return result, rows.Err()
}

func (s *SQLiteIndex) DeleteSeries(uuid string) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getSeries(tx, uuid); err != nil {
		return err
	}

	var members int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM media WHERE series_uuid = ?", uuid).Scan(&members); err != nil {
		return fmt.Errorf("counting series members: %w", err)
	}
	if members > 0 {
		return fmt.Errorf("series %s has %d members: %w", uuid, members, mlib.ErrSeriesNotEmpty)
	}

	if _, err := tx.Exec("DELETE FROM series WHERE uuid = ?", uuid); err != nil {
		return fmt.Errorf("deleting series: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) ListSeriesMedia(uuid string) ([]*mlib.Media, error) {
	if s.db == nil {
		return nil, mlib.ErrClosed
	}
	return queryMedia(s.db, "SELECT "+mediaColumns+` FROM media WHERE series_uuid = ?
		ORDER BY series_no IS NULL, series_no, id`, uuid)
}

// Ordering operations

func (s *SQLiteIndex) AttachToSeries(mediaID int64, seriesUUID string, ordinal *int64) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	previous, err := currentSeries(tx, mediaID)
	if err != nil {
		return err
	}
	if _, err := getSeries(tx, seriesUUID); err != nil {
		return err
	}

	if ordinal != nil {
		others, err := seriesMembers(tx, seriesUUID, mediaID)
		if err != nil {
			return err
		}
		if mlib.OrdinalTaken(others, *ordinal) {
			return fmt.Errorf("ordinal %d in series %s: %w", *ordinal, seriesUUID, mlib.ErrOrdinalOccupied)
		}
	}

	if _, err := tx.Exec("UPDATE media SET series_uuid = ?, series_no = ? WHERE id = ?",
		seriesUUID, nullInt(ordinal), mediaID); err != nil {
		return fmt.Errorf("attaching media: %w", err)
	}

	if previous != seriesUUID {
		if mlib.ValidUUID(previous) {
			if err := adjustCount(tx, previous, -1); err != nil {
				return err
			}
		}
		if err := adjustCount(tx, seriesUUID, 1); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) DetachFromSeries(mediaID int64) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	series, err := currentSeries(tx, mediaID)
	if err != nil {
		return err
	}
	if !mlib.ValidUUID(series) {
		return nil
	}

	if _, err := tx.Exec("UPDATE media SET series_uuid = NULL, series_no = NULL WHERE id = ?", mediaID); err != nil {
		return fmt.Errorf("detaching media: %w", err)
	}
	if err := adjustCount(tx, series, -1); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) Renumber(mediaID int64, ordinal int64, allowInsert bool) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	series, err := currentSeries(tx, mediaID)
	if err != nil {
		return err
	}
	if !mlib.ValidUUID(series) {
		return fmt.Errorf("media %d: %w", mediaID, mlib.ErrNotInSeries)
	}

	others, err := seriesMembers(tx, series, mediaID)
	if err != nil {
		return err
	}

	if mlib.OrdinalTaken(others, ordinal) {
		if !allowInsert {
			return fmt.Errorf("ordinal %d in series %s: %w", ordinal, series, mlib.ErrOrdinalOccupied)
		}
		// Vacate the moving member's slot so the shift can pass through it.
		if _, err := tx.Exec("UPDATE media SET series_no = NULL WHERE id = ?", mediaID); err != nil {
			return fmt.Errorf("clearing ordinal: %w", err)
		}
		for _, m := range mlib.InsertShift(others, ordinal) {
			if _, err := tx.Exec("UPDATE media SET series_no = ? WHERE id = ?", *m.Ordinal, m.MediaID); err != nil {
				return fmt.Errorf("shifting media %d: %w", m.MediaID, err)
			}
		}
	}

	if _, err := tx.Exec("UPDATE media SET series_no = ? WHERE id = ?", ordinal, mediaID); err != nil {
		return fmt.Errorf("renumbering media: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteIndex) TrimSeries(seriesUUID string) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := getSeries(tx, seriesUUID); err != nil {
		return err
	}

	members, err := seriesMembers(tx, seriesUUID, 0)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	// Clear first so intermediate states never repeat an ordinal.
	if _, err := tx.Exec("UPDATE media SET series_no = NULL WHERE series_uuid = ?", seriesUUID); err != nil {
		return fmt.Errorf("clearing ordinals: %w", err)
	}
	for _, m := range mlib.DenseOrder(members) {
		if _, err := tx.Exec("UPDATE media SET series_no = ? WHERE id = ?", *m.Ordinal, m.MediaID); err != nil {
			return fmt.Errorf("renumbering media %d: %w", m.MediaID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Catalog registry

func (s *SQLiteIndex) RegisterCatalog(uuid, path string) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	_, err := s.db.Exec(`INSERT INTO catalogs (uuid, path) VALUES (?, ?)
		ON CONFLICT(uuid) DO UPDATE SET path = excluded.path`, uuid, path)
	if err != nil {
		return fmt.Errorf("registering catalog: %w", err)
	}
	return nil
}

// CatalogPath returns the path last registered for uuid.
func (s *SQLiteIndex) CatalogPath(uuid string) (string, error) {
	if s.db == nil {
		return "", mlib.ErrClosed
	}
	var path string
	err := s.db.QueryRow("SELECT path FROM catalogs WHERE uuid = ?", uuid).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("catalog %s: %w", uuid, mlib.ErrNotFound)
		}
		return "", fmt.Errorf("fetching catalog path: %w", err)
	}
	return path, nil
}

// Path returns the index file path (or ":memory:").
func (s *SQLiteIndex) Path() string {
	return s.path
}

// CheckMigrations verifies the index schema is up-to-date.
func (s *SQLiteIndex) CheckMigrations() error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	return migrations.CheckStatus(s.db)
}

// BackupTo writes a consistent copy of the index using VACUUM INTO.
func (s *SQLiteIndex) BackupTo(destPath string) error {
	if s.db == nil {
		return mlib.ErrClosed
	}
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up index: %w", err)
	}
	return nil
}

// Close closes the index connection. It is safe to call more than once.
func (s *SQLiteIndex) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// helpers

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner) (*mlib.Media, error) {
	var (
		m          mlib.Media
		caption    sql.NullString
		subType    sql.NullString
		typeAdd    sql.NullString
		comment    sql.NullString
		seriesUUID sql.NullString
		seriesNo   sql.NullInt64
		kind       int
		added      time.Time
	)
	err := row.Scan(&m.ID, &m.Hash, &m.Filename, &m.Ext, &m.Size, &caption, &added, &kind,
		&subType, &typeAdd, &seriesUUID, &seriesNo, &comment)
	if err != nil {
		return nil, err
	}

	m.Caption = caption.String
	m.AddedAt = added.UTC()
	m.Type = mlib.MediaType(kind)
	m.SubType = subType.String
	m.TypeAddition = typeAdd.String
	m.SeriesUUID = seriesUUID.String
	if seriesNo.Valid {
		m.SeriesNo = mlib.Ordinal(seriesNo.Int64)
	}
	m.Comment = comment.String
	return &m, nil
}

func queryMedia(q querier, query string, args ...any) ([]*mlib.Media, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	defer rows.Close()

	var result []*mlib.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning media: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanSeries(row scanner) (*mlib.Series, error) {
	var (
		series           mlib.Series
		caption, comment sql.NullString
	)
	if err := row.Scan(&series.UUID, &caption, &series.MediaCount, &comment); err != nil {
		return nil, err
	}
	series.Caption = caption.String
	series.Comment = comment.String
	return &series, nil
}

func getSeries(q querier, uuid string) (*mlib.Series, error) {
	row := q.QueryRow("SELECT uuid, caption, media_count, comment FROM series WHERE uuid = ?", uuid)
	series, err := scanSeries(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("series %s: %w", uuid, mlib.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching series: %w", err)
	}
	return series, nil
}

func mediaExists(q querier, id int64) error {
	var one int
	if err := q.QueryRow("SELECT 1 FROM media WHERE id = ?", id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("media %d: %w", id, mlib.ErrNotFound)
		}
		return fmt.Errorf("fetching media: %w", err)
	}
	return nil
}

// currentSeries returns the series UUID stored on a media row, "" if none.
func currentSeries(q querier, id int64) (string, error) {
	var series sql.NullString
	if err := q.QueryRow("SELECT series_uuid FROM media WHERE id = ?", id).Scan(&series); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("media %d: %w", id, mlib.ErrNotFound)
		}
		return "", fmt.Errorf("fetching media series: %w", err)
	}
	return series.String, nil
}

// seriesMembers returns the positions of a series' members ordered by media
// id, leaving out exclude.
func seriesMembers(q querier, uuid string, exclude int64) ([]mlib.Member, error) {
	rows, err := q.Query("SELECT id, series_no FROM media WHERE series_uuid = ? AND id != ? ORDER BY id", uuid, exclude)
	if err != nil {
		return nil, fmt.Errorf("listing series members: %w", err)
	}
	defer rows.Close()

	var members []mlib.Member
	for rows.Next() {
		var (
			m  mlib.Member
			no sql.NullInt64
		)
		if err := rows.Scan(&m.MediaID, &no); err != nil {
			return nil, fmt.Errorf("scanning series member: %w", err)
		}
		if no.Valid {
			m.Ordinal = mlib.Ordinal(no.Int64)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func adjustCount(q querier, uuid string, delta int64) error {
	if _, err := q.Exec("UPDATE series SET media_count = media_count + ? WHERE uuid = ?", delta, uuid); err != nil {
		return fmt.Errorf("updating member count of series %s: %w", uuid, err)
	}
	return nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// Compile-time check that SQLiteIndex implements mlib.Index.
var _ mlib.Index = (*SQLiteIndex)(nil)
