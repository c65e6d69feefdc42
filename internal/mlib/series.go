package mlib

import "fmt"

// CreateSeries creates an empty series and returns its UUID.
func (s *Service) CreateSeries(caption, comment string) (string, error) {
	series := &Series{
		UUID:    s.idgen.New(),
		Caption: caption,
		Comment: comment,
	}
	if err := s.index.CreateSeries(series); err != nil {
		return "", fmt.Errorf("creating series: %w", err)
	}

	if err := s.summary.UpdateSummary(func(sum *Summary) {
		sum.GroupCount++
	}); err != nil {
		return series.UUID, fmt.Errorf("updating summary: %w", err)
	}

	s.logger.Info("series created", "uuid", series.UUID, "caption", caption)
	return series.UUID, nil
}

// DeleteSeries deletes a series. Members must be detached first.
func (s *Service) DeleteSeries(uuid string) error {
	if err := s.index.DeleteSeries(uuid); err != nil {
		return fmt.Errorf("deleting series %s: %w", uuid, err)
	}

	if err := s.summary.UpdateSummary(func(sum *Summary) {
		sum.GroupCount--
	}); err != nil {
		return fmt.Errorf("updating summary: %w", err)
	}

	s.logger.Info("series deleted", "uuid", uuid)
	return nil
}

// GetSeries returns the series with the given UUID.
func (s *Service) GetSeries(uuid string) (*Series, error) {
	series, err := s.index.GetSeries(uuid)
	if err != nil {
		return nil, fmt.Errorf("fetching series %s: %w", uuid, err)
	}
	return series, nil
}

// ListSeries returns every series in the catalog.
func (s *Service) ListSeries() ([]*Series, error) {
	series, err := s.index.ListSeries()
	if err != nil {
		return nil, fmt.Errorf("listing series: %w", err)
	}
	return series, nil
}

// SeriesMembers returns the media of a series in ordinal order, unordered
// members last.
func (s *Service) SeriesMembers(uuid string) ([]*Media, error) {
	if _, err := s.GetSeries(uuid); err != nil {
		return nil, err
	}
	members, err := s.index.ListSeriesMedia(uuid)
	if err != nil {
		return nil, fmt.Errorf("listing members of series %s: %w", uuid, err)
	}
	return members, nil
}

// AttachToSeries adds media to a series at ordinal; nil attaches it
// unordered. Returns ErrOrdinalOccupied if another member holds ordinal.
func (s *Service) AttachToSeries(mediaID int64, seriesUUID string, ordinal *int64) error {
	if err := s.index.AttachToSeries(mediaID, seriesUUID, ordinal); err != nil {
		return fmt.Errorf("attaching media %d to series %s: %w", mediaID, seriesUUID, err)
	}
	s.logger.Debug("media attached", "id", mediaID, "series", seriesUUID, "ordinal", ordinalArg(ordinal))
	return nil
}

// DetachFromSeries removes media from its series. Media outside any series
// is left as is.
func (s *Service) DetachFromSeries(mediaID int64) error {
	if err := s.index.DetachFromSeries(mediaID); err != nil {
		return fmt.Errorf("detaching media %d: %w", mediaID, err)
	}
	s.logger.Debug("media detached", "id", mediaID)
	return nil
}

// RenumberInSeries moves media to ordinal within its series. When the
// ordinal is taken and allowInsert is set, the occupant and every later
// member shift up by one.
func (s *Service) RenumberInSeries(mediaID int64, ordinal int64, allowInsert bool) error {
	if err := s.index.Renumber(mediaID, ordinal, allowInsert); err != nil {
		return fmt.Errorf("renumbering media %d: %w", mediaID, err)
	}
	s.logger.Debug("media renumbered", "id", mediaID, "ordinal", ordinal, "insert", allowInsert)
	return nil
}

// TrimSeries rewrites a series' ordinals to 1..N, keeping relative order.
// Unordered members are placed after all ordered ones.
func (s *Service) TrimSeries(seriesUUID string) error {
	if err := s.index.TrimSeries(seriesUUID); err != nil {
		return fmt.Errorf("trimming series %s: %w", seriesUUID, err)
	}
	s.logger.Info("series trimmed", "uuid", seriesUUID)
	return nil
}

func ordinalArg(ordinal *int64) any {
	if ordinal == nil {
		return "none"
	}
	return *ordinal
}
