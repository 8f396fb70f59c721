package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the requester does not own the resource.
var ErrForbidden = errors.New("forbidden")

// Authorize allows a mutation only when requesterID owns the resource.
// The nil id never owns anything.
func Authorize(ownerID, requesterID uuid.UUID) error {
	if ownerID == uuid.Nil || ownerID != requesterID {
		return ErrForbidden
	}
	return nil
}

// NormalizeID converts the identifier representations that reach the API
// boundary into a uuid.UUID.
func NormalizeID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case *uuid.UUID:
		if id == nil {
			return uuid.Nil, errors.New("nil id")
		}
		return *id, nil
	case [16]byte:
		return uuid.UUID(id), nil
	case []byte:
		if len(id) == 16 {
			return uuid.FromBytes(id)
		}
		return uuid.ParseBytes(id)
	case string:
		return uuid.Parse(strings.TrimSpace(id))
	case fmt.Stringer:
		return uuid.Parse(strings.TrimSpace(id.String()))
	default:
		return uuid.Nil, fmt.Errorf("unsupported id type %T", v)
	}
}
