package encoding

import (
	"github.com/eknkc/basex"
)

// Base62Alphabet is the alphabet used for Base62 encoding: digits first,
// then lowercase, then uppercase, so short identifiers never need quoting
// or escaping anywhere a path component is legal.
const Base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// base62 is the shared Base62 codec backing short display identifiers. It
// is safe for concurrent use.
var base62 *basex.Encoding

func init() {
	encoding, err := basex.NewEncoding(Base62Alphabet)
	if err != nil {
		panic("encoding: invalid Base62 alphabet")
	}
	base62 = encoding
}

// EncodeBase62 performs Base62 encoding. Revision and item identifiers
// render considerably narrower this way than as 40-character hex, which is
// why log output prefers it.
func EncodeBase62(value []byte) string {
	return base62.Encode(value)
}

// DecodeBase62 decodes a string produced by EncodeBase62.
func DecodeBase62(value string) ([]byte, error) {
	return base62.Decode(value)
}
