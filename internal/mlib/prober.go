package mlib

import "io"

// Prober extracts format details from media content.
type Prober interface {
	Probe(kind MediaType, ext string, r io.ReadSeeker) (*Detail, error)
}
