package mlib

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts catalog and series identifier generation so tests
// are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces version 1 UUIDs rendered in uppercase. The node
// field is re-randomized for every identifier (multicast bit set, as
// RFC 4122 requires for node IDs that are not MAC addresses), so
// identifiers never embed a hardware address.
type UUIDGenerator struct{}

var nodeMu sync.Mutex

func (UUIDGenerator) New() string {
	nodeMu.Lock()
	defer nodeMu.Unlock()

	node := make([]byte, 6)
	if _, err := rand.Read(node); err == nil {
		node[0] |= 0x01
		uuid.SetNodeID(node)
	}

	id, err := uuid.NewUUID()
	if err != nil {
		id = uuid.New()
	}
	return strings.ToUpper(id.String())
}

// ValidUUID reports whether s is a well-formed 36-character UUID.
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
