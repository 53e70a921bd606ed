package ledger

import (
	"context"
	"errors"

	"github.com/dledger/dlnode/internal/storage/database"
	pebbledb "github.com/dledger/dlnode/internal/storage/database/pebble"
	"github.com/ugorji/go/codec"
)

// Key layout for the durable backing store: entries live under the "e:"
// prefix keyed by record name, with a lone "t" key for the tip-set blob
// and a lone "b" key for the blacklist blob. Grounded on the teacher's
// namespaced-key convention in internal/storage/nodestore.
var (
	entryKeyPrefix      = []byte("e:")
	entryKeyUpperBound  = []byte("e;") // ';' immediately follows ':' in ASCII
	tipsKey             = []byte("t")
	blacklistKey        = []byte("b")
)

func entryKey(name string) []byte {
	return append(append([]byte{}, entryKeyPrefix...), name...)
}

func (s *Store) persistEntryLocked(e *Entry) error {
	if s.db == nil {
		return nil
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return s.db.Write(context.Background(), entryKey(e.Record.Name), data)
}

func (s *Store) persistTipsLocked() error {
	if s.db == nil {
		return nil
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(s.tips); err != nil {
		return err
	}
	return s.db.Write(context.Background(), tipsKey, out)
}

func (s *Store) persistBlacklistLocked() error {
	if s.db == nil {
		return nil
	}
	names := make([]string, 0, len(s.blacklist))
	for n := range s.blacklist {
		names = append(names, n)
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(names); err != nil {
		return err
	}
	return s.db.Write(context.Background(), blacklistKey, out)
}

func (s *Store) loadTips(ctx context.Context) ([]string, error) {
	data, err := s.db.Read(ctx, tipsKey)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var tips []string
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&tips); err != nil {
		return nil, err
	}
	return tips, nil
}

func (s *Store) loadBlacklist(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	data, err := s.db.Read(ctx, blacklistKey)
	if err != nil {
		if isNotFound(err) {
			return out, nil
		}
		return nil, err
	}
	var names []string
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&names); err != nil {
		return nil, err
	}
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrKeyNotFound) || errors.Is(err, pebbledb.ErrKeyNotFound)
}
