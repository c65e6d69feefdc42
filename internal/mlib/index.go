package mlib

// Index provides durable storage of media and series records.
// Every mutation commits before returning; there is no batching.
type Index interface {
	// Media operations

	// InsertMedia records a new media and returns its generated identifier.
	// Returns ErrAlreadyExists if the hash is already indexed.
	InsertMedia(media *Media) (int64, error)

	// GetMedia returns the media with the given identifier or ErrNotFound.
	GetMedia(id int64) (*Media, error)

	// FindMediaByHash returns the media with the given content hash or ErrNotFound.
	FindMediaByHash(hash string) (*Media, error)

	// ListMedia returns all media ordered by identifier.
	ListMedia() ([]*Media, error)

	// UpdateMedia writes the allow-listed fields in a single transaction.
	// Unknown field names are ignored.
	UpdateMedia(id int64, fields map[string]any) error

	// DeleteMedia removes a media row. Series counts are adjusted if the
	// media was attached.
	DeleteMedia(id int64) error

	// Series operations

	// CreateSeries records a new, empty series.
	CreateSeries(series *Series) error

	// GetSeries returns the series with the given UUID or ErrNotFound.
	GetSeries(uuid string) (*Series, error)

	// ListSeries returns all series ordered by caption.
	ListSeries() ([]*Series, error)

	// DeleteSeries removes an empty series. Returns ErrSeriesNotEmpty while
	// members remain attached.
	DeleteSeries(uuid string) error

	// ListSeriesMedia returns the members of a series ordered by ordinal,
	// unordered members last.
	ListSeriesMedia(uuid string) ([]*Media, error)

	// Ordering operations. Each runs in one transaction.

	// AttachToSeries links media to a series at ordinal (nil = unordered).
	AttachToSeries(mediaID int64, seriesUUID string, ordinal *int64) error

	// DetachFromSeries unlinks media from its series. No-op when unattached.
	DetachFromSeries(mediaID int64) error

	// Renumber moves media to a new ordinal within its series, shifting
	// later members when allowInsert is set.
	Renumber(mediaID int64, ordinal int64, allowInsert bool) error

	// TrimSeries rewrites the series ordinals to a dense 1..N sequence.
	TrimSeries(seriesUUID string) error

	// Catalog registry

	// RegisterCatalog binds a catalog UUID to its storage path.
	RegisterCatalog(uuid, path string) error

	// BackupTo writes a consistent copy of the index to destPath.
	BackupTo(destPath string) error

	// Close closes the index connection.
	Close() error
}
