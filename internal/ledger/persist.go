package ledger

import (
	"time"

	"github.com/dledger/dlnode/internal/record"
	"github.com/ugorji/go/codec"
)

// persistedEntry is the on-disk shape of an Entry, grounded on the
// teacher's habit (internal/storage/nodestore) of keeping wire/storage
// encodings as small plain structs separate from the live domain type.
type persistedEntry struct {
	Name          string
	Content       string
	Signature     []byte
	Digest        string
	Weight        int
	ApproverNames []string
	Entropy       int
	IsArchived    bool
	CreationTime  int64 // unix nanos; avoids codec/time.Time portability edge cases
}

var msgpackHandle = &codec.MsgpackHandle{}

func encodeEntry(e *Entry) ([]byte, error) {
	approvers := make([]string, 0, len(e.ApproverNames))
	for a := range e.ApproverNames {
		approvers = append(approvers, a)
	}
	p := persistedEntry{
		Name:          e.Record.Name,
		Content:       e.Record.Content,
		Signature:     e.Record.Signature,
		Digest:        e.Record.Digest,
		Weight:        e.Weight,
		ApproverNames: approvers,
		Entropy:       e.Entropy,
		IsArchived:    e.IsArchived,
		CreationTime:  e.CreationTime.UnixNano(),
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(&p); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var p persistedEntry
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	e := &Entry{
		Record: &record.Record{
			Name:      p.Name,
			Content:   p.Content,
			Signature: p.Signature,
			Digest:    p.Digest,
		},
		Weight:        p.Weight,
		ApproverNames: make(map[string]struct{}, len(p.ApproverNames)),
		Entropy:       p.Entropy,
		IsArchived:    p.IsArchived,
		CreationTime:  time.Unix(0, p.CreationTime),
	}
	for _, a := range p.ApproverNames {
		e.ApproverNames[a] = struct{}{}
	}
	return e, nil
}
