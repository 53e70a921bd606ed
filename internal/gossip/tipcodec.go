package gossip

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dledger/dlnode/internal/record"
)

// ErrNotSyncName is returned when a name does not carry either SYNC
// encoding's prefix.
var ErrNotSyncName = errors.New("gossip: not a SYNC interest name")

// ErrMalformedTips is returned when a SYNC name's tip encoding cannot
// be decoded.
var ErrMalformedTips = errors.New("gossip: malformed tip encoding")

const (
	syncV1Suffix = "/SYNC"
	syncV2Suffix = "/SYNCV2"
)

// EncodeTipsV1 builds the bit-exact stride-3 SYNC name from spec §6,
// delegating to record.SyncName.
func EncodeTipsV1(mcPrefix string, tips []string) string {
	return record.SyncName(mcPrefix, tips)
}

// DecodeTipsV1 decodes a stride-3 SYNC name, chunking trailing path
// components into windows of three. Grounded on the OnInterest SYNC
// branch in ndn-peer.cpp, which assumes every tip contributes exactly
// three components.
func DecodeTipsV1(mcPrefix, name string) ([]string, error) {
	prefix := strings.TrimSuffix(mcPrefix, "/") + syncV1Suffix
	if !strings.HasPrefix(name, prefix) {
		return nil, ErrNotSyncName
	}
	// "/SYNC" is itself a prefix of "/SYNCV2"; reject so a V2 name
	// is never misdecoded as stride-3.
	if strings.HasPrefix(name, strings.TrimSuffix(mcPrefix, "/")+syncV2Suffix) {
		return nil, ErrNotSyncName
	}
	rest := strings.TrimPrefix(name[len(prefix):], "/")
	if rest == "" {
		return nil, nil
	}
	comps := strings.Split(rest, "/")
	if len(comps)%3 != 0 {
		return nil, ErrMalformedTips
	}
	tips := make([]string, 0, len(comps)/3)
	for i := 0; i < len(comps); i += 3 {
		tips = append(tips, "/"+strings.Join(comps[i:i+3], "/"))
	}
	return tips, nil
}

// EncodeTipsV2 builds a length-prefixed SYNC name, immune to the
// stride-3 decoder's brittleness under component-count drift (spec §9,
// "Open question — tip ordering in SYNC").
func EncodeTipsV2(mcPrefix string, tips []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(mcPrefix, "/"))
	b.WriteString(syncV2Suffix)
	for _, t := range tips {
		b.WriteString("/")
		b.WriteString(strconv.Itoa(len(t)))
		b.WriteString(t)
	}
	return b.String()
}

// DecodeTipsV2 decodes a length-prefixed SYNC name produced by
// EncodeTipsV2.
func DecodeTipsV2(mcPrefix, name string) ([]string, error) {
	prefix := strings.TrimSuffix(mcPrefix, "/") + syncV2Suffix
	if !strings.HasPrefix(name, prefix) {
		return nil, ErrNotSyncName
	}
	rest := name[len(prefix):]

	var tips []string
	for len(rest) > 0 {
		if rest[0] != '/' {
			return nil, ErrMalformedTips
		}
		rest = rest[1:]

		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 0 {
			return nil, ErrMalformedTips
		}
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return nil, ErrMalformedTips
		}
		rest = rest[i:]
		if len(rest) < n {
			return nil, ErrMalformedTips
		}
		tips = append(tips, rest[:n])
		rest = rest[n:]
	}
	return tips, nil
}

// IsSyncName reports whether name carries either SYNC encoding.
func IsSyncName(mcPrefix, name string) bool {
	base := strings.TrimSuffix(mcPrefix, "/")
	return strings.HasPrefix(name, base+syncV2Suffix) || strings.HasPrefix(name, base+syncV1Suffix)
}
