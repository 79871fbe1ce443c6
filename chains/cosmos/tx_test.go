package cosmos

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	sdktx "github.com/cosmos/cosmos-sdk/types/tx"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/cosmos/gogoproto/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fauceterrors "github.com/testnetops/faucetd/errors"
	"github.com/testnetops/faucetd/keys"
)

const testMnemonic = "test test test test test test test test test test test junk"

func testMsgs(t *testing.T, operator *keys.OperatorKeys) []*banktypes.MsgSend {
	t.Helper()
	from, err := operator.CosmosAddress("cosmos")
	require.NoError(t, err)
	return []*banktypes.MsgSend{{
		FromAddress: from,
		ToAddress:   "cosmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5lzv7xu",
		Amount:      sdk.Coins{sdk.Coin{Denom: "uatom", Amount: sdkmath.NewInt(1_000_000)}},
	}}
}

func testParams() SignParams {
	return SignParams{
		ChainID:       "testchain_4221-1",
		AccountNumber: 7,
		Sequence:      3,
		GasLimit:      240_000,
		Fee:           sdk.Coin{Denom: "uatom", Amount: sdkmath.NewInt(19_200)},
		PubKeyTypeURL: "/cosmos.evm.crypto.v1.ethsecp256k1.PubKey",
	}
}

func TestBuildAndSignProducesValidTxRaw(t *testing.T) {
	operator, err := keys.NewOperatorKeys(testMnemonic)
	require.NoError(t, err)

	txBytes, err := BuildAndSign(operator, testMsgs(t, operator), testParams())
	require.NoError(t, err)

	var raw sdktx.TxRaw
	require.NoError(t, proto.Unmarshal(txBytes, &raw))
	require.Len(t, raw.Signatures, 1)
	assert.Len(t, raw.Signatures[0], 64, "chain expects r||s without recovery byte")

	var body sdktx.TxBody
	require.NoError(t, proto.Unmarshal(raw.BodyBytes, &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, "/cosmos.bank.v1beta1.MsgSend", body.Messages[0].TypeUrl)
}

// The pubkey type URL is configuration; the bytes inside the Any stay the
// standard compressed-key encoding either way.
func TestPubKeyTypeURLIsConfigurable(t *testing.T) {
	operator, err := keys.NewOperatorKeys(testMnemonic)
	require.NoError(t, err)
	msgs := testMsgs(t, operator)

	for _, url := range []string{
		"/cosmos.evm.crypto.v1.ethsecp256k1.PubKey",
		"/ethermint.crypto.v1.ethsecp256k1.PubKey",
	} {
		p := testParams()
		p.PubKeyTypeURL = url

		txBytes, err := BuildAndSign(operator, msgs, p)
		require.NoError(t, err)

		var raw sdktx.TxRaw
		require.NoError(t, proto.Unmarshal(txBytes, &raw))
		var authInfo sdktx.AuthInfo
		require.NoError(t, proto.Unmarshal(raw.AuthInfoBytes, &authInfo))

		require.Len(t, authInfo.SignerInfos, 1)
		assert.Equal(t, url, authInfo.SignerInfos[0].PublicKey.TypeUrl)
		assert.Equal(t, p.Sequence, authInfo.SignerInfos[0].Sequence)
	}
}

func TestBuildUnsignedCarriesEmptySignature(t *testing.T) {
	operator, err := keys.NewOperatorKeys(testMnemonic)
	require.NoError(t, err)

	txBytes, err := BuildUnsigned(testMsgs(t, operator), operator.PubKeyBytes(), testParams())
	require.NoError(t, err)

	var raw sdktx.TxRaw
	require.NoError(t, proto.Unmarshal(txBytes, &raw))
	require.Len(t, raw.Signatures, 1)
	assert.Empty(t, raw.Signatures[0])
}

// Changing any signed field must change the signature.
func TestSignatureCoversChainIDAndAccountNumber(t *testing.T) {
	operator, err := keys.NewOperatorKeys(testMnemonic)
	require.NoError(t, err)
	msgs := testMsgs(t, operator)

	sigOf := func(p SignParams) []byte {
		txBytes, err := BuildAndSign(operator, msgs, p)
		require.NoError(t, err)
		var raw sdktx.TxRaw
		require.NoError(t, proto.Unmarshal(txBytes, &raw))
		return raw.Signatures[0]
	}

	base := sigOf(testParams())

	p := testParams()
	p.ChainID = "otherchain_1-1"
	assert.NotEqual(t, base, sigOf(p))

	p = testParams()
	p.AccountNumber++
	assert.NotEqual(t, base, sigOf(p))
}

func TestComputeFee(t *testing.T) {
	fee, err := ComputeFee("0.08uatom", 250_000)
	require.NoError(t, err)
	assert.Equal(t, "uatom", fee.Denom)
	assert.Equal(t, sdkmath.NewInt(20_000), fee.Amount)

	// Fractional results round up so the fee never underpays.
	fee, err = ComputeFee("0.025uatom", 100_001)
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(2_501), fee.Amount)

	_, err = ComputeFee("not-a-coin", 1)
	assert.Error(t, err)
}

func TestClassifyTxError(t *testing.T) {
	assert.True(t, fauceterrors.IsKind(classifyTxError(32, "account sequence mismatch, expected 5, got 4"), fauceterrors.KindNonceDrift))
	assert.True(t, fauceterrors.IsKind(classifyTxError(111, "account sequence mismatch"), fauceterrors.KindNonceDrift))
	assert.True(t, fauceterrors.IsKind(classifyTxError(4, "signature verification failed"), fauceterrors.KindSignatureRejected))
	assert.True(t, fauceterrors.IsKind(classifyTxError(5, "insufficient funds"), fauceterrors.KindOperatorUnderfunded))

	err := classifyTxError(2, "tx parse error")
	assert.True(t, fauceterrors.IsKind(err, fauceterrors.KindChainReverted))
	assert.Equal(t, "tx parse error", fauceterrors.AsDispense(err).RevertReason)
}
