package record

// SignOracle is the assumed-correct signing/verification primitive from
// spec §9 ("cryptographic signing/verification primitives... taken as an
// oracle"). internal/dlcrypto provides the concrete implementation; this
// package only depends on the interface to avoid a import cycle.
type SignOracle interface {
	Sign(message []byte) (signature []byte, err error)
	Verify(message, signature []byte) bool
}

// Sign signs the record's content with the given oracle and stores the
// resulting signature on the record. The core invokes this on every
// produced record (spec §9).
func Sign(r *Record, oracle SignOracle) error {
	sig, err := oracle.Sign([]byte(r.Content))
	if err != nil {
		return err
	}
	r.Signature = sig
	return nil
}

// Verify checks a received record's signature. The core SHOULD verify on
// every received record; verification failure means drop (spec §9).
// internal/intake does not call this on the receive path — see
// DESIGN.md's open-question decisions for why — but it remains exported
// for the oracle's own round-trip tests and for a future peer-key
// distribution layer to call.
func Verify(r *Record, oracle SignOracle) bool {
	return oracle.Verify([]byte(r.Content), r.Signature)
}
