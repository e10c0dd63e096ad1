package envelope

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lazizjon-web-dev/medchain/cryptoutils"
	"github.com/Lazizjon-web-dev/medchain/interfaces"
)

func TestSealOpenAllRecipients(t *testing.T) {
	content := []byte("blood panel results, 2026-08-12")

	var pairs []interfaces.KeyPair
	var pubs []interfaces.PublicKey
	for i := 0; i < 3; i++ {
		pair, err := cryptoutils.GenerateKeyPair()
		require.NoError(t, err)
		pairs = append(pairs, pair)
		pubs = append(pubs, pair.Public)
	}

	sealed, err := Seal(content, pubs)
	require.NoError(t, err)
	require.Len(t, sealed.WrappedKeys, 3)
	require.Equal(t, interfaces.AES128GCM, sealed.Algorithm)

	// Every recipient opens the same plaintext through the same path.
	for _, pair := range pairs {
		keyID, err := interfaces.NewKeyID(pair.Public)
		require.NoError(t, err)

		wrap, ok := sealed.WrappedKeys[keyID]
		require.True(t, ok)

		opened, err := Open(sealed.Ciphertext, sealed.Nonce, wrap, pair.Private)
		require.NoError(t, err)
		require.Equal(t, content, opened)
	}
}

func TestSealRequiresRecipients(t *testing.T) {
	_, err := Seal([]byte("unreachable"), nil)
	require.ErrorIs(t, err, ErrEnvelope)
}

func TestOpenWrongPrivateKey(t *testing.T) {
	pair, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	other, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	sealed, err := Seal([]byte("secret"), []interfaces.PublicKey{pair.Public})
	require.NoError(t, err)

	keyID, err := interfaces.NewKeyID(pair.Public)
	require.NoError(t, err)

	_, err = Open(sealed.Ciphertext, sealed.Nonce, sealed.WrappedKeys[keyID], other.Private)
	require.ErrorIs(t, err, ErrEnvelope)
	require.ErrorIs(t, err, cryptoutils.ErrAsymmetricCrypto)
}

func TestStaleWrappedKeyFailsAuthentication(t *testing.T) {
	pair, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	keyID, err := interfaces.NewKeyID(pair.Public)
	require.NoError(t, err)

	content := []byte("hello")

	first, err := Seal(content, []interfaces.PublicKey{pair.Public})
	require.NoError(t, err)
	second, err := Seal(content, []interfaces.PublicKey{pair.Public})
	require.NoError(t, err)

	// A wrapped key from a previous generation unwraps to the old DEK,
	// which must fail the new ciphertext's integrity check rather than
	// silently succeed.
	_, err = Open(second.Ciphertext, second.Nonce, first.WrappedKeys[keyID], pair.Private)
	require.ErrorIs(t, err, ErrEnvelope)
	require.ErrorIs(t, err, cryptoutils.ErrAuthentication)

	// The matching generation still opens fine.
	opened, err := Open(second.Ciphertext, second.Nonce, second.WrappedKeys[keyID], pair.Private)
	require.NoError(t, err)
	require.Equal(t, content, opened)
}

func TestSealFreshCiphertextPerGeneration(t *testing.T) {
	pair, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	content := []byte("unchanged content")
	first, err := Seal(content, []interfaces.PublicKey{pair.Public})
	require.NoError(t, err)
	second, err := Seal(content, []interfaces.PublicKey{pair.Public})
	require.NoError(t, err)

	require.NotEqual(t, first.Nonce, second.Nonce)
	require.NotEqual(t, first.Ciphertext, second.Ciphertext)
}
