package filename

import (
	"path"
	"strconv"
	"strings"
)

// Deduper hands out unique names within one directory. Later claims of a
// taken name get "-2", "-3"... inserted before the extension. Comparison is
// case-insensitive so results stay distinct on case-folding filesystems.
// Not safe for concurrent use.
type Deduper struct {
	taken map[string]struct{}
}

// NewDeduper returns an empty Deduper
func NewDeduper() *Deduper {
	return &Deduper{taken: make(map[string]struct{})}
}

// Claim returns name, or the first free numbered variant of it
func (d *Deduper) Claim(name string) string {
	if d.take(name) {
		return name
	}

	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ext
		if d.take(candidate) {
			return candidate
		}
	}
}

func (d *Deduper) take(name string) bool {
	key := strings.ToLower(name)
	if _, ok := d.taken[key]; ok {
		return false
	}
	d.taken[key] = struct{}{}
	return true
}
