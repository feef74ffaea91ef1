// Package pathcodec encodes and decodes materialized hierarchy paths.
//
// A path stores the full ancestor chain of a node, own id included, so that
// ancestor and descendant lookups reduce to prefix matching. A root node R is
// encoded as "/R/", a child A of R as "/R/A/".
package pathcodec

import (
	"fmt"
	"strings"
)

// Separator delimits path segments. It is reserved: entity ids must never
// contain it.
const Separator = "/"

// Encode derives a node's path from its parent's path. An empty parentPath
// produces a root path.
func Encode(parentPath, id string) string {
	if parentPath == "" {
		return Separator + id + Separator
	}
	return parentPath + id + Separator
}

// Depth counts the non-empty segments of a path. Roots have depth 1; Level
// (ancestor count) is Depth-1.
func Depth(path string) int {
	n := 0
	for _, seg := range strings.Split(path, Separator) {
		if seg != "" {
			n++
		}
	}
	return n
}

// AncestorIDs returns every segment except the last, root-first. The last
// segment is the node itself.
func AncestorIDs(path string) []string {
	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(path, Separator) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) <= 1 {
		return nil
	}
	return segments[:len(segments)-1]
}

// OwnID returns the last segment of a path, or "" for a malformed path.
func OwnID(path string) string {
	segments := strings.Split(strings.Trim(path, Separator), Separator)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// ValidateID rejects ids that are empty or contain the reserved separator.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("entity id is empty")
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("entity id %q contains reserved separator %q", id, Separator)
	}
	return nil
}
