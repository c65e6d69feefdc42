package mlib

// Linker is the extension point for joining catalogs that share a master
// name into one federation. Nothing implements it yet: there is no
// replication or conflict-resolution protocol, and catalogs never call it.
type Linker interface {
	// Link joins this catalog to the catalog registered at path.
	Link(path string) error

	// Unlink removes the catalog with the given UUID from the federation.
	Unlink(uuid string) error

	// Sync reconciles this catalog with its linked peers.
	Sync() error
}
