package dlcrypto

import "math/big"

// Canonicality represents the canonicality status of a DER-encoded ECDSA
// signature over secp256k1.
type Canonicality int

const (
	// CanonicityNone means the signature is malformed or out of range.
	CanonicityNone Canonicality = iota
	// CanonicityCanonical means valid but not low-S.
	CanonicityCanonical
	// CanonicityFullyCanonical means S <= order/2 (low-S, non-malleable).
	CanonicityFullyCanonical
)

var (
	secp256k1Order = func() *big.Int {
		n, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
		return n
	}()
	secp256k1HalfOrder = new(big.Int).Rsh(secp256k1Order, 1)
)

// ECDSACanonicality checks a DER-encoded signature for canonicality.
func ECDSACanonicality(sig []byte) Canonicality {
	if len(sig) < 8 || len(sig) > 72 {
		return CanonicityNone
	}
	if sig[0] != 0x30 || int(sig[1]) != len(sig)-2 {
		return CanonicityNone
	}
	rSlice, remaining, ok := parseDERInteger(sig[2:])
	if !ok {
		return CanonicityNone
	}
	sSlice, remaining, ok := parseDERInteger(remaining)
	if !ok || len(remaining) != 0 {
		return CanonicityNone
	}

	r := new(big.Int).SetBytes(rSlice)
	s := new(big.Int).SetBytes(sSlice)
	if r.Sign() <= 0 || r.Cmp(secp256k1Order) >= 0 {
		return CanonicityNone
	}
	if s.Sign() <= 0 || s.Cmp(secp256k1Order) >= 0 {
		return CanonicityNone
	}
	if s.Cmp(secp256k1HalfOrder) <= 0 {
		return CanonicityFullyCanonical
	}
	return CanonicityCanonical
}

func parseDERInteger(data []byte) (intBytes, remaining []byte, ok bool) {
	if len(data) < 2 || data[0] != 0x02 {
		return nil, nil, false
	}
	length := int(data[1])
	if length < 1 || length > 33 || len(data) < 2+length {
		return nil, nil, false
	}
	intBytes = data[2 : 2+length]
	if intBytes[0]&0x80 != 0 {
		return nil, nil, false
	}
	if intBytes[0] == 0 {
		if length == 1 || intBytes[1]&0x80 == 0 {
			return nil, nil, false
		}
	}
	return intBytes, data[2+length:], true
}

// MakeSignatureCanonical returns a fully canonical version of sig,
// replacing S with order-S when necessary. Returns nil if sig is invalid.
func MakeSignatureCanonical(sig []byte) []byte {
	switch ECDSACanonicality(sig) {
	case CanonicityNone:
		return nil
	case CanonicityFullyCanonical:
		out := make([]byte, len(sig))
		copy(out, sig)
		return out
	}

	rSlice, remaining, ok := parseDERInteger(sig[2:])
	if !ok {
		return nil
	}
	sSlice, _, ok := parseDERInteger(remaining)
	if !ok {
		return nil
	}
	s := new(big.Int).SetBytes(sSlice)
	newS := new(big.Int).Sub(secp256k1Order, s)
	return encodeDERSignature(new(big.Int).SetBytes(rSlice), newS)
}

func encodeDERSignature(r, s *big.Int) []byte {
	rBytes := r.Bytes()
	sBytes := s.Bytes()
	if len(rBytes) == 0 {
		rBytes = []byte{0x00}
	} else if rBytes[0]&0x80 != 0 {
		rBytes = append([]byte{0x00}, rBytes...)
	}
	if len(sBytes) == 0 {
		sBytes = []byte{0x00}
	} else if sBytes[0]&0x80 != 0 {
		sBytes = append([]byte{0x00}, sBytes...)
	}

	totalLen := 2 + len(rBytes) + 2 + len(sBytes)
	result := make([]byte, 2+totalLen)
	result[0] = 0x30
	result[1] = byte(totalLen)
	offset := 2
	result[offset] = 0x02
	result[offset+1] = byte(len(rBytes))
	copy(result[offset+2:], rBytes)
	offset += 2 + len(rBytes)
	result[offset] = 0x02
	result[offset+1] = byte(len(sBytes))
	copy(result[offset+2:], sBytes)
	return result
}
