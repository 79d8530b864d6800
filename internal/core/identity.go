package core

import "strings"

// Identity is the verified caller that owns monitors. It is produced by the
// transport layer and treated as opaque here.
type Identity string

func (id Identity) Valid() bool {
	return strings.TrimSpace(string(id)) != ""
}

func (id Identity) String() string {
	return string(id)
}
