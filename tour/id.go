package tour

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ID identifies a tour, scene, connection, floorplan, or floorplan marker.
// Negative values are tentative ids created on the client.
type ID int64

// Tentative reports whether id is a client-generated placeholder.
func (id ID) Tentative() bool { return id < 0 }

// String returns the decimal form of id.
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// UnmarshalJSON accepts both JSON numbers and numeric strings, since the
// server sends ids either way depending on the message.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, ok := parseIDString(s)
	if !ok {
		return fmt.Errorf("tour: invalid id %s", data)
	}
	*id = v
	return nil
}

// ParseID converts an identifier of any of the shapes seen on the wire or in
// local state (ID, integer kinds, integral floats, numeric strings) into an
// ID. The second result is false when v is not an identifier.
func ParseID(v any) (ID, bool) {
	switch x := v.(type) {
	case ID:
		return x, true
	case *ID:
		if x == nil {
			return 0, false
		}
		return *x, true
	case int:
		return ID(x), true
	case int32:
		return ID(x), true
	case int64:
		return ID(x), true
	case uint32:
		return ID(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return ID(x), true
	case string:
		return parseIDString(x)
	default:
		return 0, false
	}
}

// SameID compares two identifiers tolerantly: 55, "55" and ID(55) are equal.
func SameID(a, b any) bool {
	x, ok := ParseID(a)
	if !ok {
		return false
	}
	y, ok := ParseID(b)
	return ok && x == y
}

func parseIDString(s string) (ID, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID(v), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return ID(f), true
}
