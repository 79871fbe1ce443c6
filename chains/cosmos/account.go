package cosmos

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// AccountInfo is the operator account state needed to sign.
type AccountInfo struct {
	AccountNumber uint64
	Sequence      uint64
}

// The auth endpoint returns a tagged union: a plain BaseAccount, or an
// ethermint-family EthAccount that nests the same fields under
// "base_account". Parse the tag and pick the shape; the fields are not
// optional within their variant.
type accountEnvelope struct {
	Account json.RawMessage `json:"account"`
}

type baseAccountJSON struct {
	Type          string `json:"@type"`
	Address       string `json:"address"`
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
}

type ethAccountJSON struct {
	Type        string          `json:"@type"`
	BaseAccount baseAccountJSON `json:"base_account"`
	CodeHash    string          `json:"code_hash"`
}

// parseAccountResponse decodes the /cosmos/auth/v1beta1/accounts/{addr}
// response body.
func parseAccountResponse(body []byte) (*AccountInfo, error) {
	var envelope accountEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "failed to decode account envelope")
	}
	if len(envelope.Account) == 0 {
		return nil, errors.New("account response carries no account")
	}

	var tag struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(envelope.Account, &tag); err != nil {
		return nil, errors.Wrap(err, "failed to read account type tag")
	}

	var base baseAccountJSON
	switch tag.Type {
	case "/cosmos.auth.v1beta1.BaseAccount":
		if err := json.Unmarshal(envelope.Account, &base); err != nil {
			return nil, errors.Wrap(err, "failed to decode base account")
		}
	default:
		// Ethermint-family account types (/ethermint.types.v1.EthAccount,
		// /cosmos.evm.types.v1.EthAccount, ...) all nest a base_account.
		var eth ethAccountJSON
		if err := json.Unmarshal(envelope.Account, &eth); err != nil {
			return nil, errors.Wrap(err, "failed to decode eth account")
		}
		if eth.BaseAccount.AccountNumber == "" && eth.BaseAccount.Sequence == "" && eth.BaseAccount.Address == "" {
			return nil, errors.Errorf("unrecognized account type %q", tag.Type)
		}
		base = eth.BaseAccount
	}

	accountNumber, err := cast.ToUint64E(base.AccountNumber)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid account_number %q", base.AccountNumber)
	}
	sequence, err := cast.ToUint64E(base.Sequence)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid sequence %q", base.Sequence)
	}

	return &AccountInfo{AccountNumber: accountNumber, Sequence: sequence}, nil
}
