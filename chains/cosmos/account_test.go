package cosmos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBaseAccount(t *testing.T) {
	body := []byte(`{
		"account": {
			"@type": "/cosmos.auth.v1beta1.BaseAccount",
			"address": "cosmos1abc",
			"pub_key": null,
			"account_number": "42",
			"sequence": "7"
		}
	}`)

	info, err := parseAccountResponse(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), info.AccountNumber)
	assert.Equal(t, uint64(7), info.Sequence)
}

func TestParseEthAccount(t *testing.T) {
	body := []byte(`{
		"account": {
			"@type": "/cosmos.evm.types.v1.EthAccount",
			"base_account": {
				"address": "cosmos1abc",
				"pub_key": null,
				"account_number": "13",
				"sequence": "99"
			},
			"code_hash": "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"
		}
	}`)

	info, err := parseAccountResponse(body)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), info.AccountNumber)
	assert.Equal(t, uint64(99), info.Sequence)
}

func TestParseEthermintAccount(t *testing.T) {
	body := []byte(`{
		"account": {
			"@type": "/ethermint.types.v1.EthAccount",
			"base_account": {
				"address": "cosmos1abc",
				"account_number": "0",
				"sequence": "0"
			},
			"code_hash": ""
		}
	}`)

	info, err := parseAccountResponse(body)
	require.NoError(t, err)
	assert.Zero(t, info.AccountNumber)
	assert.Zero(t, info.Sequence)
}

func TestParseAccountErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing account", `{}`},
		{"unknown flat type", `{"account": {"@type": "/cosmos.vesting.v1beta1.Unknown"}}`},
		{"bad sequence", `{"account": {"@type": "/cosmos.auth.v1beta1.BaseAccount", "address": "a", "account_number": "1", "sequence": "x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAccountResponse([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}
