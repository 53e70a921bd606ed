// Package dlcrypto provides the concrete sign/verify oracle and node
// identifier derivation that the ledger core treats as an assumed-correct
// primitive (spec §9). It backs the record.SignOracle interface.
package dlcrypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/crypto/ripemd160"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// NodeIDSize is the size, in bytes, of a derived node identifier.
const NodeIDSize = 20

var (
	// ErrInvalidPrivateKey is returned for a malformed private key.
	ErrInvalidPrivateKey = errors.New("dlcrypto: invalid private key")
	// ErrInvalidSignature is returned for a malformed or non-canonical signature.
	ErrInvalidSignature = errors.New("dlcrypto: invalid signature")
)

// Identity is a peer's secp256k1 keypair and the node identifier derived
// from its public key.
type Identity struct {
	PrivateKey []byte
	PublicKey  []byte
	NodeID     [NodeIDSize]byte
}

// GenerateIdentity derives a new identity from a non-empty seed of any
// length, folded to a valid scalar by deriveScalarBytes. Grounded
// on the teacher's SECP256K1CryptoAlgorithm.DeriveKeypair, simplified to
// drop the XRPL "validator vs. account" key-derivation branch (the core
// here only ever needs one keypair per peer).
func GenerateIdentity(seed []byte) (*Identity, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidPrivateKey
	}
	priv, pub := btcec.PrivKeyFromBytes(deriveScalarBytes(seed))
	id := &Identity{
		PrivateKey: priv.Serialize(),
		PublicKey:  pub.SerializeCompressed(),
	}
	id.NodeID = DeriveNodeID(id.PublicKey)
	return id, nil
}

// deriveScalarBytes folds an arbitrary-length seed down to a 32-byte
// scalar in range via repeated SHA-512 hashing, as the teacher's
// deriveScalar does with big.Int arithmetic against the curve order.
func deriveScalarBytes(seed []byte) []byte {
	for i := 0; i <= 0xffffffff; i++ {
		h := sha512.New()
		h.Write(seed)
		h.Write([]byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)})
		sum := h.Sum(nil)[:32]
		var key secp256k1.ModNScalar
		overflow := key.SetByteSlice(sum)
		if !overflow && !key.IsZero() {
			return sum
		}
	}
	panic("dlcrypto: could not derive a valid scalar from seed")
}

// Oracle is the SignOracle implementation bound to one identity. It
// satisfies internal/record.SignOracle.
type Oracle struct {
	identity *Identity
}

// NewOracle returns a signing oracle bound to identity.
func NewOracle(identity *Identity) *Oracle {
	return &Oracle{identity: identity}
}

// Sign signs message with the bound private key, returning a fully
// canonical (low-S) DER-encoded ECDSA signature.
func (o *Oracle) Sign(message []byte) ([]byte, error) {
	return Sign(message, o.identity.PrivateKey)
}

// Verify verifies signature against message using the bound public key.
func (o *Oracle) Verify(message, signature []byte) bool {
	return Verify(message, o.identity.PublicKey, signature)
}

// Sign signs message with privKey (32 bytes), returning a fully canonical
// DER-encoded ECDSA signature over the first 32 bytes of the SHA-512
// digest of the message (sha512Half).
func Sign(message, privKey []byte) ([]byte, error) {
	if len(privKey) != 32 {
		return nil, ErrInvalidPrivateKey
	}
	secpPriv := secp256k1.PrivKeyFromBytes(privKey)
	hash := sha512Half(message)
	sig := ecdsa.Sign(secpPriv, hash[:])
	der := sig.Serialize()
	canonical := MakeSignatureCanonical(der)
	if canonical == nil {
		return nil, ErrInvalidSignature
	}
	return canonical, nil
}

// Verify verifies a DER-encoded, fully canonical signature over message
// against pubKey (compressed secp256k1 public key).
func Verify(message, pubKey, signature []byte) bool {
	if ECDSACanonicality(signature) != CanonicityFullyCanonical {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	key, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	hash := sha512Half(message)
	return sig.Verify(hash[:], key)
}

func sha512Half(msg []byte) [32]byte {
	h := sha512.Sum512(msg)
	var out [32]byte
	copy(out[:], h[:32])
	return out
}

// DeriveNodeID computes a node identifier from a public key as
// RIPEMD160(SHA256(publicKey)), the same scheme the teacher uses for
// XRPL account/node IDs (internal/crypto/ids.go: CalcAccountID).
func DeriveNodeID(publicKey []byte) [NodeIDSize]byte {
	shaSum := sha256.Sum256(publicKey)
	h := ripemd160.New()
	h.Write(shaSum[:])
	digest := h.Sum(nil)
	var out [NodeIDSize]byte
	copy(out[:], digest)
	return out
}

// NodeIDString returns the lowercase hex encoding of a node identifier.
func NodeIDString(id [NodeIDSize]byte) string {
	return hex.EncodeToString(id[:])
}
