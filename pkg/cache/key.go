package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// RequestIdentity derives the identity of a request from its endpoint key and
// argument set. Two calls with the same endpoint and the same arguments hash
// to the same identity regardless of argument order. The identity keys the
// ETag/payload cache.
func RequestIdentity(endpoint string, args map[string]any) string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, name := range names {
		fmt.Fprintf(&b, ":%s=%v", name, args[name])
	}

	return fmt.Sprintf("esi:req:%016x", xxhash.Sum64String(b.String()))
}

// Key derives a cache key from a function identity and its arguments.
//
// The identity should carry a version suffix (e.g. "check_type_id@v1") so
// that changing the cached function's logic invalidates old entries instead
// of reusing them.
func Key(identity string, args ...any) string {
	var b strings.Builder
	b.WriteString(identity)
	for _, arg := range args {
		fmt.Fprintf(&b, ":%v", arg)
	}
	return fmt.Sprintf("esi:fn:%s:%016x", identity, xxhash.Sum64String(b.String()))
}
