// Package keys derives and holds the operator key. One secp256k1 scalar,
// derived from a mnemonic over the Ethereum BIP-44 path, controls both the
// EVM account (keccak-256 address) and the Cosmos account (the same 20 bytes
// re-encoded as bech32).
package keys

import (
	"crypto/ecdsa"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	evmhd "github.com/cosmos/evm/crypto/hd"
	"github.com/cosmos/evm/crypto/ethsecp256k1"
	bip39 "github.com/cosmos/go-bip39"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// OperatorHDPath is the BIP-44 derivation path shared by both interfaces.
// Coin type 60 keeps the Cosmos account on the Ethereum address scheme.
const OperatorHDPath = "m/44'/60'/0'/0/0"

// OperatorKeys owns the operator key material for the process lifetime.
// Derivation happens once; afterwards the struct is read-only and safe for
// concurrent signing.
type OperatorKeys struct {
	privKey *ethsecp256k1.PrivKey
	ecdsa   *ecdsa.PrivateKey
	evmAddr ethcommon.Address
}

// NewOperatorKeys validates the mnemonic against the BIP-39 wordlist and
// derives the key at OperatorHDPath. Fails fatally on an invalid mnemonic;
// the caller is expected to abort startup.
func NewOperatorKeys(mnemonic string) (*OperatorKeys, error) {
	if mnemonic == "" {
		return nil, errors.New("operator mnemonic is empty (set FAUCET_MNEMONIC)")
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("operator mnemonic failed BIP-39 checksum validation")
	}

	secret, err := evmhd.EthSecp256k1.Derive()(mnemonic, "", OperatorHDPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive operator key")
	}

	privKey := &ethsecp256k1.PrivKey{Key: secret}

	ecdsaKey, err := ethcrypto.ToECDSA(privKey.Key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert operator key to ECDSA")
	}

	return &OperatorKeys{
		privKey: privKey,
		ecdsa:   ecdsaKey,
		evmAddr: ethcommon.BytesToAddress(privKey.PubKey().Address().Bytes()),
	}, nil
}

// EvmAddress returns the operator's 20-byte EVM address.
func (k *OperatorKeys) EvmAddress() ethcommon.Address {
	return k.evmAddr
}

// CosmosAddress returns the operator address as bech32 under the given HRP.
// The payload is identical to the EVM address bytes.
func (k *OperatorKeys) CosmosAddress(hrp string) (string, error) {
	return bech32.ConvertAndEncode(hrp, k.evmAddr.Bytes())
}

// PubKeyBytes returns the 33-byte compressed public key, as emitted in the
// Cosmos AuthInfo.
func (k *OperatorKeys) PubKeyBytes() []byte {
	return k.privKey.PubKey().Bytes()
}

// ECDSA exposes the key in the form the go-ethereum signer needs.
func (k *OperatorKeys) ECDSA() *ecdsa.PrivateKey {
	return k.ecdsa
}

// SignCosmosTx signs SIGN_MODE_DIRECT sign bytes. The key type keccak-hashes
// the payload; the chain expects the 64-byte r||s form, so the recovery byte
// is dropped.
func (k *OperatorKeys) SignCosmosTx(signDocBytes []byte) ([]byte, error) {
	sig, err := k.privKey.Sign(signDocBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign cosmos tx")
	}
	if len(sig) == 65 {
		sig = sig[:64]
	}
	return sig, nil
}

// Zero wipes the secret scalar. The struct must not be used afterwards.
func (k *OperatorKeys) Zero() {
	if k.privKey != nil {
		for i := range k.privKey.Key {
			k.privKey.Key[i] = 0
		}
	}
	if k.ecdsa != nil && k.ecdsa.D != nil {
		k.ecdsa.D.SetInt64(0)
	}
}
