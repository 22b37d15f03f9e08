package storage

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID returns a unique entity ID: a microsecond timestamp prefix
// (keeps IDs roughly sortable by creation time) followed by a UUID in
// hex.
func NewID() string {
	now := time.Now()
	u := uuid.New()
	return fmt.Sprintf("%s%06d%s", now.Format("20060102150405"), now.Nanosecond()/1000, hex.EncodeToString(u[:]))
}

// NumberedName disambiguates name against existing by appending a
// counter: "Name 2", "Name 3", ... For dotted names the counter goes
// before the extension ("export 2.db").
func NumberedName(name string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, n := range existing {
		taken[n] = struct{}{}
	}
	if _, ok := taken[name]; !ok {
		return name
	}

	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for i := 2; i <= len(existing)+2; i++ {
		candidate := fmt.Sprintf("%s %d%s", stem, i, ext)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
	return name
}
