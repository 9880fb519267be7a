package entityid

import (
	"fmt"

	"github.com/google/uuid"
)

// GUID keys storage locations and the other GUID-keyed kinds. The embedded
// uuid.UUID gives it String and text encoding in canonical form.
type GUID struct {
	uuid.UUID
}

// ParseGUID accepts the hyphenated form in any case, and the bare 32 hex
// digit form.
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return GUID{}, fmt.Errorf("invalid guid %q: %w", s, err)
	}
	return GUID{u}, nil
}

func (g GUID) IsZero() bool { return g.UUID == uuid.Nil }
