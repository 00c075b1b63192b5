package storage

import "synth-market/models"

// RawListingWriter is the interface for dumping listings as fetched,
// before filtering, for offline inspection of what each source returned.
type RawListingWriter interface {
	WriteRaw(listings []*models.Listing) error
	Close() error
}
