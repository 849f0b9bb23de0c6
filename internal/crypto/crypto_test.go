package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// well-known test vector key, never fund it
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestRelayAuth_HeadersAtIsDeterministic(t *testing.T) {
	auth := &RelayAuth{Key: "key-1", Secret: "c2VjcmV0"} // "secret"

	h1 := auth.HeadersAt("POST", "/bundles", `{"a":1}`, 1_700_000_000)
	h2 := auth.HeadersAt("POST", "/bundles", `{"a":1}`, 1_700_000_000)

	assert.Equal(t, "key-1", h1["X-RELAY-API-KEY"])
	assert.Equal(t, "1700000000", h1["X-RELAY-TIMESTAMP"])
	require.NotEmpty(t, h1["X-RELAY-SIGNATURE"])
	assert.Equal(t, h1, h2)
}

func TestRelayAuth_SignatureCoversEveryInput(t *testing.T) {
	auth := &RelayAuth{Key: "key-1", Secret: "c2VjcmV0"}
	base := auth.HeadersAt("POST", "/bundles", "body", 100)["X-RELAY-SIGNATURE"]

	assert.NotEqual(t, base, auth.HeadersAt("GET", "/bundles", "body", 100)["X-RELAY-SIGNATURE"])
	assert.NotEqual(t, base, auth.HeadersAt("POST", "/slot", "body", 100)["X-RELAY-SIGNATURE"])
	assert.NotEqual(t, base, auth.HeadersAt("POST", "/bundles", "other", 100)["X-RELAY-SIGNATURE"])
	assert.NotEqual(t, base, auth.HeadersAt("POST", "/bundles", "body", 101)["X-RELAY-SIGNATURE"])
}

func TestRelayAuth_StringRedactsCredentials(t *testing.T) {
	auth := &RelayAuth{Key: "key-12345", Secret: "supersecret"}
	s := auth.String()
	assert.NotContains(t, s, "12345")
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "key-")
}

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptKey_WrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptKey_RejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKey("not-hex", "hunter2")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "hunter2")
	assert.Error(t, err, "wrong key length")
}

func TestLoadKey_RawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKey_EncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKey_NoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no private key source")
}

func TestSigner_SignatureRecoversAddress(t *testing.T) {
	s, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	// address of the test vector key
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), s.Address())

	payload := []byte(`{"opportunity_id":"opp-1"}`)
	sig, err := s.Sign(payload)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	// recover with v mapped back to {0,1}
	recSig := make([]byte, 65)
	copy(recSig, sig)
	recSig[64] -= 27

	pub, err := ethcrypto.SigToPub(ethcrypto.Keccak256(payload), recSig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestNewSigner_InvalidKey(t *testing.T) {
	_, err := NewSigner("zz")
	require.Error(t, err)
}
