package mlib

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"golang.org/x/text/unicode/norm"
)

// Service is the orchestration layer that coordinates the content store,
// the index and the summary cache to perform catalog operations.
type Service struct {
	index   Index
	content ContentStore
	summary SummaryStore
	prober  Prober
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	closed  bool
}

// NewService creates a new Service with the provided dependencies.
// prober may be nil, in which case ProbeMedia returns an error.
func NewService(index Index, content ContentStore, summary SummaryStore, prober Prober, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		index:   index,
		content: content,
		summary: summary,
		prober:  prober,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

// AddMedia ingests the file at path and records it in the index.
// Returns the new media identifier.
//
// Content is copied first, then the row is inserted. A failed insert leaves
// the copied blob in place; it is reported in the log and by Verify.
func (s *Service) AddMedia(path string, kind MediaType, opts AddOptions) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMediaType, int(kind))
	}

	blob, err := s.content.Ingest(path)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			s.logger.Debug("duplicate content rejected", "path", path)
		}
		return 0, fmt.Errorf("ingesting %s: %w", path, err)
	}

	media := &Media{
		Hash:         blob.Hash,
		Filename:     norm.NFC.String(filepath.Base(path)),
		Ext:          blob.Ext,
		Size:         blob.Size,
		Caption:      opts.Caption,
		AddedAt:      s.clock.Now().UTC(),
		Type:         kind,
		SubType:      opts.SubType,
		TypeAddition: opts.TypeAddition,
		Comment:      opts.Comment,
	}

	id, err := s.index.InsertMedia(media)
	if err != nil {
		s.logger.Warn("stored blob has no index row", "hash", blob.Hash, "path", blob.Path, "error", err)
		return 0, fmt.Errorf("indexing %s: %w", path, err)
	}

	if err := s.summary.UpdateSummary(func(sum *Summary) {
		sum.MediaCount++
		sum.MediaSize += blob.Size
	}); err != nil {
		return id, fmt.Errorf("updating summary: %w", err)
	}

	s.logger.Info("media added", "id", id, "hash", blob.Hash, "filename", media.Filename)
	return id, nil
}

// RemoveMedia deletes the backing file and then the index row.
// The file must exist: a missing blob is reported as ErrInconsistent and
// the row is left untouched.
func (s *Service) RemoveMedia(id int64) error {
	media, err := s.index.GetMedia(id)
	if err != nil {
		return fmt.Errorf("fetching media %d: %w", id, err)
	}

	if err := s.content.Remove(media.Hash, media.Ext); err != nil {
		return fmt.Errorf("removing content of media %d: %w", id, err)
	}

	if err := s.index.DeleteMedia(id); err != nil {
		return fmt.Errorf("deleting media %d: %w", id, err)
	}

	if err := s.summary.UpdateSummary(func(sum *Summary) {
		sum.MediaCount--
		sum.MediaSize -= media.Size
	}); err != nil {
		return fmt.Errorf("updating summary: %w", err)
	}

	s.logger.Info("media removed", "id", id, "hash", media.Hash)
	return nil
}

// UpdateMedia changes the allow-listed fields of a media record.
// Unknown field names are ignored.
func (s *Service) UpdateMedia(id int64, fields map[string]any) error {
	if err := s.index.UpdateMedia(id, fields); err != nil {
		return fmt.Errorf("updating media %d: %w", id, err)
	}
	s.logger.Debug("media updated", "id", id)
	return nil
}

// GetMedia returns the media with the given identifier.
func (s *Service) GetMedia(id int64) (*Media, error) {
	media, err := s.index.GetMedia(id)
	if err != nil {
		return nil, fmt.Errorf("fetching media %d: %w", id, err)
	}
	return media, nil
}

// ListMedia returns every media in the catalog.
func (s *Service) ListMedia() ([]*Media, error) {
	media, err := s.index.ListMedia()
	if err != nil {
		return nil, fmt.Errorf("listing media: %w", err)
	}
	return media, nil
}

// MediaPath returns the path of the stored file for a media.
// Returns ErrInconsistent if the index row exists but the file does not.
func (s *Service) MediaPath(id int64) (string, error) {
	media, err := s.GetMedia(id)
	if err != nil {
		return "", err
	}
	if err := s.checkStored(media); err != nil {
		return "", err
	}
	return s.content.Path(media.Hash, media.Ext), nil
}

// ProbeMedia reads format details from the stored file of a media.
func (s *Service) ProbeMedia(id int64) (*Detail, error) {
	if s.prober == nil {
		return nil, fmt.Errorf("no media prober configured")
	}

	media, err := s.GetMedia(id)
	if err != nil {
		return nil, err
	}

	rc, err := s.content.Open(media.Hash, media.Ext)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("media %d: %w", id, ErrInconsistent)
		}
		return nil, fmt.Errorf("opening media %d: %w", id, err)
	}
	defer rc.Close()

	rs, ok := rc.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("reading media %d: %w", id, err)
		}
		rs = bytes.NewReader(data)
	}

	detail, err := s.prober.Probe(media.Type, media.Ext, rs)
	if err != nil {
		return nil, fmt.Errorf("probing media %d: %w", id, err)
	}
	return detail, nil
}

// Verify checks every indexed media for its stored file and returns the
// media whose file is missing. It reports; it never repairs.
func (s *Service) Verify() ([]*Media, error) {
	all, err := s.ListMedia()
	if err != nil {
		return nil, err
	}

	var missing []*Media
	for _, media := range all {
		if err := s.checkStored(media); err != nil {
			if errors.Is(err, ErrInconsistent) {
				missing = append(missing, media)
				continue
			}
			return nil, err
		}
	}

	if len(missing) > 0 {
		s.logger.Warn("catalog inconsistent", "missing", len(missing))
	}
	return missing, nil
}

func (s *Service) checkStored(media *Media) error {
	ok, err := s.content.Exists(media.Hash, media.Ext)
	if err != nil {
		return fmt.Errorf("checking content of media %d: %w", media.ID, err)
	}
	if !ok {
		return fmt.Errorf("media %d: %w", media.ID, ErrInconsistent)
	}
	return nil
}

// Close closes the index. Every later operation fails with ErrClosed:
// AddMedia checks before copying, the rest through the index.
func (s *Service) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}

// Summary returns the cached catalog statistics.
func (s *Service) Summary() Summary {
	return s.summary.Summary()
}
