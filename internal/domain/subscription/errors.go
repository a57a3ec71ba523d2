package subscription

import "errors"

var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrCannotCancelInactive = errors.New("no active subscription to cancel")
)
