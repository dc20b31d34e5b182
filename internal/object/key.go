package object

import (
	"fmt"

	"github.com/google/uuid"
)

// MakeObjectKey derives the storage key for an object. Keys are namespaced by
// owner so distinct owners can never collide, and owner prefixes can be
// enumerated. Both parts are UUIDs, so the key cannot carry traversal
// characters.
func MakeObjectKey(ownerID, objectID uuid.UUID) string {
	return fmt.Sprintf("%s/%s", ownerID.String(), objectID.String())
}
