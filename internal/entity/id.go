package entity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const globalIDPrefix = "gid://gitlab/"

// ErrMalformedID is returned when an upstream identifier cannot be normalised.
var ErrMalformedID = errors.New("malformed upstream id")

// ParseUpstreamID normalises an upstream identifier into its numeric form.
// It accepts global identifiers such as "gid://gitlab/Issue/123" and plain
// decimal strings. Anything else, including zero and negative numbers, yields
// an error wrapping ErrMalformedID.
func ParseUpstreamID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(s, globalIDPrefix); ok {
		i := strings.LastIndexByte(rest, '/')
		if i <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrMalformedID, raw)
		}
		s = rest[i+1:]
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedID, raw)
	}
	return id, nil
}

// GlobalID builds the upstream global identifier for a numeric id.
func GlobalID(kind string, id int64) string {
	return globalIDPrefix + kind + "/" + strconv.FormatInt(id, 10)
}
