package testutil

import (
	"bytes"

	"mlib/internal/store"
)

// ContentHash returns the hash the content store assigns to data.
func ContentHash(data []byte) string {
	h, err := store.Hash(bytes.NewReader(data))
	if err != nil {
		panic(err)
	}
	return h
}
