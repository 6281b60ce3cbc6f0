package graph

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// largeRegistry is the registry size beyond which generated ids get longer.
const largeRegistry = 0x10000

// UniqueID returns an id that is registered in neither namespace. Ids are
// lowercase hex strings that start with a letter, five characters long, or
// eight once the registry grows past 65536 entries.
func (m *Manager) UniqueID() string {
	digits := 5
	if len(m.ids)+len(m.groups) > largeRegistry {
		digits = 8
	}
	for {
		id := m.randomID(digits)
		if !m.taken(id) {
			return id
		}
	}
}

func (m *Manager) randomID(digits int) string {
	var u uuid.UUID
	var err error
	if m.random != nil {
		u, err = uuid.NewRandomFromReader(m.random)
	}
	if m.random == nil || err != nil {
		u = uuid.New()
	}
	first := byte('a' + u[0]%6)
	return string(first) + hex.EncodeToString(u[1:5])[:digits-1]
}
