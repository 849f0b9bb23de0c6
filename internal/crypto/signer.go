package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs bundle payloads with a secp256k1 key. The relay verifies the
// signature against the registered submitter address before accepting a
// bundle, so the key here must match the one enrolled with the relay.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key
// (with or without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the submitter address derived from the signer's key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign hashes the payload with keccak256 and signs the digest, returning a
// 65-byte r || s || v signature with v in {27,28}.
func (s *Signer) Sign(payload []byte) ([]byte, error) {
	digest := ethcrypto.Keccak256(payload)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: signing: %w", err)
	}

	// go-ethereum returns v in {0,1}; the relay expects v in {27,28}.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return sig, nil
}
