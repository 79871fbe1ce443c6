package cosmos

import (
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/pkg/errors"

	"github.com/testnetops/faucetd/keys"
)

// SignParams is everything beyond the messages a SIGN_MODE_DIRECT signature
// covers. Acquired fresh per attempt.
type SignParams struct {
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
	GasLimit      uint64
	Fee           sdk.Coin
	PubKeyTypeURL string
	Memo          string
}

// buildTxDocuments assembles the TxBody and AuthInfo byte forms. The pubkey
// Any carries the configured type URL over the standard single-field
// compressed-key encoding; ethermint-family chains only diverge on the URL.
func buildTxDocuments(msgs []*banktypes.MsgSend, pubKey []byte, p SignParams) (bodyBytes, authInfoBytes []byte, err error) {
	anys := make([]*codectypes.Any, 0, len(msgs))
	for _, msg := range msgs {
		msgAny, err := codectypes.NewAnyWithValue(msg)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to pack MsgSend")
		}
		anys = append(anys, msgAny)
	}

	body := &sdktx.TxBody{Messages: anys, Memo: p.Memo}
	bodyBytes, err = proto.Marshal(body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal TxBody")
	}

	pkValue, err := proto.Marshal(&secp256k1.PubKey{Key: pubKey})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal operator pubkey")
	}
	pkAny := &codectypes.Any{TypeUrl: p.PubKeyTypeURL, Value: pkValue}

	authInfo := &sdktx.AuthInfo{
		SignerInfos: []*sdktx.SignerInfo{{
			PublicKey: pkAny,
			ModeInfo: &sdktx.ModeInfo{
				Sum: &sdktx.ModeInfo_Single_{
					Single: &sdktx.ModeInfo_Single{Mode: signing.SignMode_SIGN_MODE_DIRECT},
				},
			},
			Sequence: p.Sequence,
		}},
		Fee: &sdktx.Fee{
			Amount:   sdk.NewCoins(p.Fee),
			GasLimit: p.GasLimit,
		},
	}
	authInfoBytes, err = proto.Marshal(authInfo)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal AuthInfo")
	}

	return bodyBytes, authInfoBytes, nil
}

// BuildUnsigned produces TxRaw bytes with an empty signature, suitable for
// gas simulation.
func BuildUnsigned(msgs []*banktypes.MsgSend, pubKey []byte, p SignParams) ([]byte, error) {
	bodyBytes, authInfoBytes, err := buildTxDocuments(msgs, pubKey, p)
	if err != nil {
		return nil, err
	}
	raw := &sdktx.TxRaw{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		Signatures:    [][]byte{{}},
	}
	out, err := proto.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal unsigned TxRaw")
	}
	return out, nil
}

// BuildAndSign assembles the SignDoc, signs it with the operator key
// (keccak-256 over the sign bytes, 64-byte r||s signature), and returns the
// broadcastable TxRaw bytes.
func BuildAndSign(operator *keys.OperatorKeys, msgs []*banktypes.MsgSend, p SignParams) ([]byte, error) {
	bodyBytes, authInfoBytes, err := buildTxDocuments(msgs, operator.PubKeyBytes(), p)
	if err != nil {
		return nil, err
	}

	signDoc := &sdktx.SignDoc{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		ChainId:       p.ChainID,
		AccountNumber: p.AccountNumber,
	}
	signBytes, err := proto.Marshal(signDoc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal SignDoc")
	}

	sig, err := operator.SignCosmosTx(signBytes)
	if err != nil {
		return nil, err
	}

	raw := &sdktx.TxRaw{
		BodyBytes:     bodyBytes,
		AuthInfoBytes: authInfoBytes,
		Signatures:    [][]byte{sig},
	}
	out, err := proto.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal TxRaw")
	}
	return out, nil
}

// ComputeFee prices a gas limit with a decimal gas price like "0.08utoken",
// rounding the fee amount up.
func ComputeFee(gasPrice string, gasLimit uint64) (sdk.Coin, error) {
	decCoin, err := sdk.ParseDecCoin(gasPrice)
	if err != nil {
		return sdk.Coin{}, errors.Wrapf(err, "invalid cosmos gas price %q", gasPrice)
	}
	amount := decCoin.Amount.MulInt64(int64(gasLimit)).Ceil().TruncateInt()
	return sdk.NewCoin(decCoin.Denom, amount), nil
}
