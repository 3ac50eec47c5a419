package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ID identifies a profile entity. An entity created on this side carries a
// local ID until the backend confirms it and issues a server ID. The two
// states are distinct values and a local ID is never encoded.
type ID struct {
	local  uuid.UUID
	server int64
}

// NewLocalID returns a fresh, process-unique placeholder ID.
func NewLocalID() ID {
	return ID{local: uuid.New()}
}

// ServerID wraps an identifier issued by the backend.
func ServerID(id int64) ID {
	return ID{server: id}
}

// IsLocal reports whether the entity has not been persisted yet.
func (id ID) IsLocal() bool {
	return id.local != uuid.Nil
}

// Server returns the backend identifier when there is one.
func (id ID) Server() (int64, bool) {
	if id.server == 0 {
		return 0, false
	}
	return id.server, true
}

// IsZero reports whether id carries no server identity. It drives the
// omitzero tag, so local and empty IDs never reach a request body.
func (id ID) IsZero() bool {
	return id.server == 0
}

func (id ID) String() string {
	switch {
	case id.IsLocal():
		return "local:" + id.local.String()
	case id.server != 0:
		return strconv.FormatInt(id.server, 10)
	default:
		return ""
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.server == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(id.server, 10)), nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("entity id %q: %w", n, err)
	}
	*id = ServerID(v)
	return nil
}
