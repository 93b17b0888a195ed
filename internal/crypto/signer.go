package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrBadSignature is returned when a signature does not recover to the
// claimed address.
var ErrBadSignature = errors.New("crypto: signature does not match address")

// SessionMessage is the text a wallet signs to open a session.
func SessionMessage(address common.Address, chainID int64, issuedAt time.Time) string {
	var b strings.Builder
	b.WriteString("OpinionMarketCap wants you to sign in with your wallet.\n\n")
	b.WriteString("Address: " + address.Hex() + "\n")
	b.WriteString("Chain ID: " + strconv.FormatInt(chainID, 10) + "\n")
	b.WriteString("Issued At: " + issuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// Signer signs EIP-191 personal messages with a local key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

func (s *Signer) Address() common.Address { return s.address }

// SignPersonal returns a 65-byte 0x-hex signature with v in {27,28}.
func (s *Signer) SignPersonal(msg string) (string, error) {
	sig, err := ethcrypto.Sign(accounts.TextHash([]byte(msg)), s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: sign: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}

// VerifyPersonal checks that sigHex over msg was produced by address.
// Both v conventions ({0,1} and {27,28}) are accepted.
func VerifyPersonal(address common.Address, msg, sigHex string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sig) != 65 {
		return fmt.Errorf("crypto: signature must be 65 bytes, got %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := ethcrypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return fmt.Errorf("crypto: recover: %w", err)
	}
	if ethcrypto.PubkeyToAddress(*pub) != address {
		return ErrBadSignature
	}
	return nil
}
