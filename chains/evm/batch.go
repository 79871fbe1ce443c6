package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// batchABIJSON is the atomic-batch contract interface. The contract pulls
// ERC-20 amounts via pre-granted allowances and forwards native value from
// msg.value; address(0) marks a native line item. It reverts on any item
// failure, which is what gives a dispense its all-or-nothing property.
const batchABIJSON = `[
	{"inputs":[
		{"name":"recipient","type":"address"},
		{"components":[
			{"name":"token","type":"address"},
			{"name":"amount","type":"uint256"}
		],"name":"transfers","type":"tuple[]"}
	],"name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}
]`

var batchABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(batchABIJSON))
	if err != nil {
		panic(errors.Wrap(err, "invalid embedded batch ABI"))
	}
	batchABI = parsed
}

// BatchItem is one transfer line inside a multiSend call. A zero token
// address denotes the native transfer accounted from msg.value.
type BatchItem struct {
	Token  ethcommon.Address
	Amount *big.Int
}

// PackMultiSend encodes the multiSend calldata and returns the native value
// the transaction must carry (the sum of zero-address line items).
func PackMultiSend(recipient ethcommon.Address, items []BatchItem) ([]byte, *big.Int, error) {
	if len(items) == 0 {
		return nil, nil, errors.New("empty batch")
	}

	value := new(big.Int)
	for _, item := range items {
		if item.Amount == nil || item.Amount.Sign() <= 0 {
			return nil, nil, errors.Errorf("non-positive amount for token %s", item.Token.Hex())
		}
		if item.Token == (ethcommon.Address{}) {
			value.Add(value, item.Amount)
		}
	}

	data, err := batchABI.Pack("multiSend", recipient, items)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to pack multiSend calldata")
	}
	return data, value, nil
}
