package wire

import (
	"fmt"

	"github.com/dledger/dlnode/internal/record"
	"github.com/ugorji/go/codec"
)

var msgpackHandle = &codec.MsgpackHandle{}

// wireRecord is the msgpack shape of a record.Record, kept separate from
// the domain type the way ledger's persistedEntry is.
type wireRecord struct {
	Name      string
	Content   string
	Signature []byte
	Digest    string
}

// EncodeRecord frames rec as a MessageTypeRecord envelope, msgpack-encoding
// it first and then lz4-compressing the result when that is worthwhile.
func EncodeRecord(rec *record.Record) ([]byte, error) {
	payload, err := marshalRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding record %s: %w", rec.Name, err)
	}
	return frame(MessageTypeRecord, payload)
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(buf []byte) (*record.Record, error) {
	payload, err := unframe(buf)
	if err != nil {
		return nil, err
	}
	return unmarshalRecord(payload)
}

// EncodeInterest frames a bare interest name (NOTIF or SYNC) as an
// envelope of the matching MessageType, compressing long SYNC tip
// listings the same way a RECORD payload would be.
func EncodeInterest(msgType MessageType, name string) ([]byte, error) {
	if msgType != MessageTypeNotif && msgType != MessageTypeSync {
		return nil, fmt.Errorf("wire: %d is not an interest message type", msgType)
	}
	return frame(msgType, []byte(name))
}

// DecodeInterest reverses EncodeInterest.
func DecodeInterest(buf []byte) (MessageType, string, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return 0, "", err
	}
	payload, err := unframe(buf)
	if err != nil {
		return 0, "", err
	}
	return h.MessageType, string(payload), nil
}

func frame(msgType MessageType, payload []byte) ([]byte, error) {
	compressed, err := compressLZ4(payload)
	if err != nil {
		return nil, err
	}
	if compressed == nil {
		return WriteFrame(msgType, payload, AlgorithmNone, 0)
	}
	return WriteFrame(msgType, compressed, AlgorithmLZ4, uint32(len(payload)))
}

func unframe(buf []byte) ([]byte, error) {
	h, payload, err := ReadFrame(buf)
	if err != nil {
		return nil, err
	}
	if !h.Compressed {
		return payload, nil
	}
	return decompressLZ4(payload, int(h.UncompressedSize))
}

func marshalRecord(rec *record.Record) ([]byte, error) {
	wr := wireRecord{Name: rec.Name, Content: rec.Content, Signature: rec.Signature, Digest: rec.Digest}
	var out []byte
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(&wr); err != nil {
		return nil, err
	}
	return out, nil
}

func unmarshalRecord(data []byte) (*record.Record, error) {
	var wr wireRecord
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&wr); err != nil {
		return nil, fmt.Errorf("wire: decoding record: %w", err)
	}
	return &record.Record{Name: wr.Name, Content: wr.Content, Signature: wr.Signature, Digest: wr.Digest}, nil
}
