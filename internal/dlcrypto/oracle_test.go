package dlcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdentityProducesUsableKeypair(t *testing.T) {
	id, err := GenerateIdentity([]byte("a deterministic seed for node3"))
	require.NoError(t, err)
	assert.Len(t, id.PrivateKey, 32)
	assert.Len(t, id.PublicKey, 33) // compressed secp256k1 point
	assert.Equal(t, DeriveNodeID(id.PublicKey), id.NodeID)
}

func TestGenerateIdentityRejectsEmptySeed(t *testing.T) {
	_, err := GenerateIdentity(nil)
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestGenerateIdentityIsDeterministic(t *testing.T) {
	seed := []byte("same seed, twice")
	id1, err := GenerateIdentity(seed)
	require.NoError(t, err)
	id2, err := GenerateIdentity(seed)
	require.NoError(t, err)
	assert.Equal(t, id1.PrivateKey, id2.PrivateKey)
	assert.Equal(t, id1.PublicKey, id2.PublicKey)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	id, err := GenerateIdentity([]byte("node7 seed"))
	require.NoError(t, err)

	msg := []byte(":parent1:parent2***node7/suffix")
	sig, err := Sign(msg, id.PrivateKey)
	require.NoError(t, err)
	assert.True(t, Verify(msg, id.PublicKey, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	id, err := GenerateIdentity([]byte("node8 seed"))
	require.NoError(t, err)

	sig, err := Sign([]byte("original"), id.PrivateKey)
	require.NoError(t, err)
	assert.False(t, Verify([]byte("tampered"), id.PublicKey, sig))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	idA, err := GenerateIdentity([]byte("node A"))
	require.NoError(t, err)
	idB, err := GenerateIdentity([]byte("node B"))
	require.NoError(t, err)

	msg := []byte("hello")
	sig, err := Sign(msg, idA.PrivateKey)
	require.NoError(t, err)
	assert.False(t, Verify(msg, idB.PublicKey, sig))
}

func TestSignRejectsBadPrivateKeyLength(t *testing.T) {
	_, err := Sign([]byte("msg"), []byte("too short"))
	assert.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestOracleBindsIdentity(t *testing.T) {
	id, err := GenerateIdentity([]byte("oracle seed"))
	require.NoError(t, err)
	o := NewOracle(id)

	sig, err := o.Sign([]byte("content"))
	require.NoError(t, err)
	assert.True(t, o.Verify([]byte("content"), sig))
	assert.False(t, o.Verify([]byte("other content"), sig))
}

func TestSignProducesFullyCanonicalSignature(t *testing.T) {
	id, err := GenerateIdentity([]byte("canonicality seed"))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		msg := []byte{byte(i), byte(i * 7), byte(i * 13)}
		sig, err := Sign(msg, id.PrivateKey)
		require.NoError(t, err)
		assert.Equal(t, CanonicityFullyCanonical, ECDSACanonicality(sig))
	}
}

func TestDeriveNodeIDIsDeterministicAndSized(t *testing.T) {
	id, err := GenerateIdentity([]byte("node id seed"))
	require.NoError(t, err)

	nodeID := DeriveNodeID(id.PublicKey)
	assert.Equal(t, id.NodeID, nodeID)
	assert.Len(t, NodeIDString(nodeID), NodeIDSize*2)
}

func TestDeriveNodeIDDiffersAcrossKeys(t *testing.T) {
	idA, err := GenerateIdentity([]byte("key A"))
	require.NoError(t, err)
	idB, err := GenerateIdentity([]byte("key B"))
	require.NoError(t, err)
	assert.NotEqual(t, idA.NodeID, idB.NodeID)
}
