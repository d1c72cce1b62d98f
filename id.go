package edgecraft

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator provides randomness for deploy identifiers (invalidation
// caller references, import tokens).
type IDGenerator interface {
	NewID() string
}

// ULIDGenerator generates lexically sortable, collision-resistant IDs.
type ULIDGenerator struct{}

func (ULIDGenerator) NewID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	return strings.ToLower(id.String())
}
