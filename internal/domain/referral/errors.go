package referral

import "errors"

var (
	// ErrAlreadyRewarded means a commission for this triggering transaction
	// was already paid. The unique index on transaction_id is the structural
	// backstop behind the ledger engine's status check.
	ErrAlreadyRewarded = errors.New("commission already rewarded for this transaction")
)
