// Package record implements the DAG record type: name/content/signature,
// the sentinel-delimited content grammar, and digest computation.
package record

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Sentinel separates the parent list from the creator-specific suffix in
// a record's content. See spec §6, "Content grammar".
const Sentinel = "***"

// ErrMalformedContent is returned when content cannot be parsed at all
// (missing sentinel). Individual malformed parent components are not an
// error — they are silently dropped as padding per spec §6.
var ErrMalformedContent = errors.New("record: content missing sentinel separator")

// Record is an immutable, signed, content-addressed ledger entry.
type Record struct {
	// Name is "{creator-prefix}/{digest}" for ordinary records, or
	// "{mcPrefix}/genesis/genesis{i}" for seeded genesis records.
	Name string
	// Content is the literal sentinel-delimited body (see Build/Parse).
	Content string
	// Signature is produced by the creator's signing oracle over Content.
	Signature []byte
	// Digest is the lowercase hex SHA-256 of Content; empty for genesis.
	Digest string
}

// CreatorSubPrefix returns the second path component of a record name,
// i.e. the node sub-prefix under the multicast prefix
// ("/dledger/node3/<digest>" -> "node3"). Used for the intake blacklist
// check and NOTIF name construction.
func CreatorSubPrefix(name string) string {
	parts := Components(name)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// CreatorPrefix returns the first two path components of a record name
// joined back together ("/dledger/node3/<digest>" -> "/dledger/node3").
// This is the identity the interlock rule compares against.
func CreatorPrefix(name string) string {
	parts := Components(name)
	if len(parts) < 2 {
		return name
	}
	return "/" + strings.Join(parts[:2], "/")
}

// Components splits a path-like name into its ordered components,
// dropping the empty leading component produced by a leading slash.
// Per the design notes (§9), string splitting on "/" is acceptable as
// long as it is consistent everywhere names are sliced.
func Components(name string) []string {
	trimmed := strings.TrimPrefix(name, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Digest returns the lowercase hex SHA-256 digest of content.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Build composes record content from an ordered list of selected parent
// names and a creator-specific suffix, per spec §6's content grammar:
// (":" ParentName)+ "***" Suffix. Grounded on Peer::BuildRecordContent.
func Build(parents []string, suffix string) string {
	var b strings.Builder
	for _, p := range parents {
		b.WriteString(":")
		b.WriteString(p)
	}
	b.WriteString(Sentinel)
	b.WriteString(suffix)
	return b.String()
}

// Parse extracts the ordered parent-name list and the creator-specific
// suffix from record content. Parent name candidates that split into
// fewer than two path components are discarded as padding (spec §6).
// Grounded on Peer::GetApprovedBlocks, generalized from the original's
// hand-rolled character scan to a split/filter over Components.
func Parse(content string) (parents []string, suffix string, err error) {
	idx := strings.Index(content, Sentinel)
	if idx < 0 {
		return nil, "", fmt.Errorf("%w: %q", ErrMalformedContent, content)
	}
	body, suffix := content[:idx], content[idx+len(Sentinel):]
	for _, candidate := range strings.Split(body, ":") {
		if candidate == "" {
			continue
		}
		if len(Components(candidate)) < 2 {
			continue
		}
		parents = append(parents, candidate)
	}
	return parents, suffix, nil
}

// Name builds a record's name from its routable (creator) prefix and the
// digest of its content: "{routablePrefix}/{digest}".
func Name(routablePrefix, digest string) string {
	return strings.TrimSuffix(routablePrefix, "/") + "/" + digest
}

// GenesisName builds the name of the i-th genesis record under the
// multicast prefix: "{mcPrefix}/genesis/genesis{i}".
func GenesisName(mcPrefix string, i int) string {
	return strings.TrimSuffix(mcPrefix, "/") + fmt.Sprintf("/genesis/genesis%d", i)
}

// NotifName builds the NOTIF request name for advertising a freshly
// created record: "{mcPrefix}/NOTIF/{creatorSubPrefix}/{digest}".
func NotifName(mcPrefix, creatorSubPrefix, digest string) string {
	return strings.TrimSuffix(mcPrefix, "/") + "/NOTIF/" + creatorSubPrefix + "/" + digest
}

// SyncName builds the SYNC request name carrying the local tip set in
// insertion order: "{mcPrefix}/SYNC/{tip1}/{tip2}/...".
func SyncName(mcPrefix string, tips []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(mcPrefix, "/"))
	b.WriteString("/SYNC")
	for _, t := range tips {
		b.WriteString(t)
	}
	return b.String()
}
