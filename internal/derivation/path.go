package derivation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPath is the abstract PathError of spec.md §7: a syntactically
// invalid derivation path string.
var ErrBadPath = errors.New("derivation: invalid path")

// Path is an ordered sequence of 32-bit child indices, each already tagged
// hardened (bit 31 set) or normal (bit 31 clear) by ParsePath.
type Path []uint32

// ParsePath parses the grammar `m ( / [0-9]+ ['h']? )*` (spec.md §6),
// where a trailing apostrophe (or 'h') denotes a hardened index.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty path", ErrBadPath)
	}
	parts := strings.Split(s, "/")
	if parts[0] != "m" {
		return nil, fmt.Errorf("%w: path must start with \"m\"", ErrBadPath)
	}
	path := make(Path, 0, len(parts)-1)
	for _, part := range parts[1:] {
		if part == "" {
			return nil, fmt.Errorf("%w: empty path segment", ErrBadPath)
		}
		hardened := false
		switch last := part[len(part)-1]; last {
		case '\'', 'h', 'H':
			hardened = true
			part = part[:len(part)-1]
		}
		if part == "" {
			return nil, fmt.Errorf("%w: missing index in segment", ErrBadPath)
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a valid index", ErrBadPath, part)
		}
		idx := uint32(n)
		if hardened {
			if idx >= hardenedOffset {
				return nil, fmt.Errorf("%w: index %d already exceeds the hardened range", ErrBadPath, idx)
			}
			idx |= hardenedOffset
		}
		path = append(path, idx)
	}
	return path, nil
}

// String renders the canonical form m/1852'/1815'/a'/c/i.
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('m')
	for _, idx := range p {
		b.WriteByte('/')
		if idx >= hardenedOffset {
			fmt.Fprintf(&b, "%d'", idx-hardenedOffset)
		} else {
			fmt.Fprintf(&b, "%d", idx)
		}
	}
	return b.String()
}

// CIP-1852 purpose and coin-type constants for Cardano derivation.
const (
	Purpose1852 = hardenedOffset | 1852
	CoinType1815 = hardenedOffset | 1815

	// External/internal/staking chain indices (spec.md §4.4: only the
	// external chain, index 0, is searched by the ownership prover).
	ChainExternal = 0
	ChainInternal = 1
	ChainStaking  = 2
)

// AccountPath builds m/1852'/1815'/account'.
func AccountPath(account uint32) Path {
	return Path{Purpose1852, CoinType1815, hardenedOffset | account}
}

// AddressPath builds m/1852'/1815'/account'/chain/index.
func AddressPath(account, chain, index uint32) Path {
	return Path{Purpose1852, CoinType1815, hardenedOffset | account, chain, index}
}

// DeriveKey walks path left-to-right from the root XPrv, applying the V2
// derivation step at each index. Rejection at any step fails the whole
// operation; it never silently skips to the next index (spec.md §4.3).
func DeriveKey(root *XPrv, path Path) (*XPrv, error) {
	cur := root
	for _, idx := range path {
		next, err := cur.Derive(idx)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
