package resource

import "errors"

// ReservedPrefix marks field names owned by the cache; Extend never merges them.
const ReservedPrefix = "$"

var (
	// ErrUnboundKey is returned when an operation needs a key that is not bound yet.
	ErrUnboundKey = errors.New("resource: key is not bound")
	// ErrInvalidKey is returned when a key value is neither a string nor null.
	ErrInvalidKey = errors.New("resource: key must be a string")
	// ErrDuplicateMember is returned by Collection.Add for a key already indexed.
	ErrDuplicateMember = errors.New("resource: collection already has a member with this key")
	// ErrNotMember is returned by Collection.Replace when no member owns the key.
	ErrNotMember = errors.New("resource: no member with this key")
	// ErrReservedField is returned when writing a field under ReservedPrefix.
	ErrReservedField = errors.New("resource: field name uses the reserved prefix")
	// ErrUnexpectedPayload is returned when fetched data has the wrong shape.
	ErrUnexpectedPayload = errors.New("resource: unexpected payload shape")
)
