package cache

import (
	"encoding/binary"
	"net/url"
	"strings"

	"github.com/zeebo/blake3"
)

// keyDomain separates cache-key digests from any other BLAKE3 use of the same bytes.
var keyDomain = [32]byte{
	't', 'h', 'u', 'm', 'b', 'n', 'a', 'i', 'l', '.', 's', 'o', 'u', 'r', 'c', 'e',
	'.', 'k', 'e', 'y', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Key returns the cache key of a source URL. Equal URLs, after
// canonicalization, always map to the same key.
func Key(rawURL string) uint64 {
	return hashKey(Canonicalize(rawURL))
}

// Canonicalize trims whitespace, lower-cases the scheme and host and drops
// the fragment. Userinfo, path and query are kept byte for byte, so the
// canonical URL is still the URL the client asked for. Strings that do not
// parse as URLs are only trimmed.
func Canonicalize(rawURL string) string {
	s := strings.TrimSpace(rawURL)

	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return s
	}

	rest := s[len(u.Scheme)+1:]
	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}

	scheme := strings.ToLower(u.Scheme)
	if !strings.HasPrefix(rest, "//") {
		return scheme + ":" + rest
	}

	authority, tail := rest[2:], ""
	if i := strings.IndexAny(authority, "/?"); i >= 0 {
		authority, tail = authority[:i], authority[i:]
	}

	userinfo, host := "", authority
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		userinfo, host = authority[:i+1], authority[i+1:]
	}

	return scheme + "://" + userinfo + strings.ToLower(host) + tail
}

func hashKey(canonical string) uint64 {
	h, err := blake3.NewKeyed(keyDomain[:])
	if err != nil {
		// NewKeyed only fails for keys that are not 32 bytes long.
		panic("cache: " + err.Error())
	}
	h.Write([]byte(canonical))

	return binary.LittleEndian.Uint64(h.Sum(nil)[:8])
}
