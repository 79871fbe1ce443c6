// Package address classifies recipient strings and converts between the two
// on-chain representations. A recipient is one 20-byte account that happens
// to have two spellings: 0x-hex on the EVM interface and bech32 on the
// Cosmos interface. All conversions in the faucet go through this package so
// the 20-byte identity invariant is enforced in one place.
package address

import (
	"regexp"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Kind is the recipient classification.
type Kind int

const (
	KindInvalid Kind = iota
	KindEvm
	KindCosmos
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindEvm:
		return "evm"
	case KindCosmos:
		return "cosmos"
	default:
		return "invalid"
	}
}

var hexAddrRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Recipient is a classified recipient address. Created per request.
type Recipient struct {
	Raw    string
	Kind   Kind
	Hex    ethcommon.Address // canonical 20-byte form
	Bech32 string            // bech32 projection under the classifier HRP
}

// Classifier parses recipient strings against a configured bech32 HRP.
type Classifier struct {
	hrp string
}

// NewClassifier creates a classifier for the given HRP.
func NewClassifier(hrp string) *Classifier {
	return &Classifier{hrp: hrp}
}

// Classify parses s into a Recipient. EVM addresses presenting a mixed-case
// checksum must pass EIP-55; all-lower and all-upper hex is accepted as-is.
// Bech32 strings must carry the configured HRP and a 20-byte payload.
func (c *Classifier) Classify(s string) Recipient {
	s = strings.TrimSpace(s)

	if hexAddrRe.MatchString(s) {
		if hasMixedCaseHex(s) && ethcommon.HexToAddress(s).Hex() != s {
			return Recipient{Raw: s, Kind: KindInvalid}
		}
		addr := ethcommon.HexToAddress(s)
		b32, err := c.ToBech32(addr)
		if err != nil {
			return Recipient{Raw: s, Kind: KindInvalid}
		}
		return Recipient{Raw: s, Kind: KindEvm, Hex: addr, Bech32: b32}
	}

	hrp, payload, err := bech32.DecodeAndConvert(s)
	if err == nil && hrp == c.hrp && len(payload) == 20 {
		return Recipient{
			Raw:    s,
			Kind:   KindCosmos,
			Hex:    ethcommon.BytesToAddress(payload),
			Bech32: s,
		}
	}

	return Recipient{Raw: s, Kind: KindInvalid}
}

// ToBech32 encodes the raw 20-byte payload under the classifier HRP. No
// extra hashing: the payload is the address.
func (c *Classifier) ToBech32(addr ethcommon.Address) (string, error) {
	return bech32.ConvertAndEncode(c.hrp, addr.Bytes())
}

// ToHex20 decodes a bech32 string into its canonical 20-byte form.
func (c *Classifier) ToHex20(b32 string) (ethcommon.Address, error) {
	hrp, payload, err := bech32.DecodeAndConvert(b32)
	if err != nil {
		return ethcommon.Address{}, errors.Wrap(err, "invalid bech32 address")
	}
	if hrp != c.hrp {
		return ethcommon.Address{}, errors.Errorf("bech32 prefix %q does not match configured %q", hrp, c.hrp)
	}
	if len(payload) != 20 {
		return ethcommon.Address{}, errors.Errorf("bech32 payload is %d bytes, want 20", len(payload))
	}
	return ethcommon.BytesToAddress(payload), nil
}

// hasMixedCaseHex reports whether the hex digits of s carry both cases,
// which signals an EIP-55 checksum intent.
func hasMixedCaseHex(s string) bool {
	digits := s[2:]
	return strings.ToLower(digits) != digits && strings.ToUpper(digits) != digits
}
