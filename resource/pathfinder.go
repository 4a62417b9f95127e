package resource

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Pathfinder derives a member's key from its parent collection's key and the
// member's raw fields.
type Pathfinder func(parentKey string, entity Fields) (string, error)

// IDField is the attribute DefaultPathfinder reads the identifier from.
const IDField = "id"

// DefaultPathfinder joins the last segment of parentKey with the entity's id:
// "/items" and {id: 1} give "/items/1"; "/api/items" gives "/items/1" too.
func DefaultPathfinder(parentKey string, entity Fields) (string, error) {
	id, err := FormatID(entity[IDField])
	if err != nil {
		return "", err
	}
	base := parentKey
	if i := strings.LastIndex(parentKey, "/"); i >= 0 {
		base = parentKey[i:]
	}
	return base + "/" + id, nil
}

// FormatID renders an identifier value as a key segment. Strings and numbers
// are accepted; decoded JSON numbers arrive as float64.
func FormatID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if id != "" {
			return id, nil
		}
	case int:
		return strconv.Itoa(id), nil
	case int32:
		return strconv.FormatInt(int64(id), 10), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(id), 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case json.Number:
		return id.String(), nil
	}
	return "", fmt.Errorf("%w: unusable id %#v", ErrInvalidKey, v)
}
