package bank

import (
	"context"
	"time"
)

// Validator implements the client-screening predicates used during
// deposit opening. The predicates are boolean outcomes routed by
// gateways, not errors.
type Validator struct {
	// Repository is the source of the wanted and black lists.
	Repository Repository

	// Now is the clock used for passport validity. time.Now is used when
	// nil.
	Now func() time.Time
}

// IsWantedByPolice reports whether the client appears on the police
// wanted list.
func (v *Validator) IsWantedByPolice(ctx context.Context, c Client) (bool, error) {
	wanted, err := v.Repository.WantedByPolice(ctx)
	if err != nil {
		return false, err
	}
	return matchesAny(wanted, c), nil
}

// IsBlacklisted reports whether the client appears on the bank's black
// list.
func (v *Validator) IsBlacklisted(ctx context.Context, c Client) (bool, error) {
	listed, err := v.Repository.Blacklisted(ctx)
	if err != nil {
		return false, err
	}
	return matchesAny(listed, c), nil
}

// IsPassportValid reports whether the client's passport is currently
// within its validity window.
func (v *Validator) IsPassportValid(c Client) bool {
	if c.Passport == nil {
		return false
	}
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	return c.Passport.ValidFrom.Before(now) && c.Passport.ValidTo.After(now)
}

func matchesAny(list []Client, c Client) bool {
	for _, info := range list {
		if matchesClientInfo(info, c) {
			return true
		}
	}
	return false
}

// matchesClientInfo compares the identity fields the registers are keyed
// by: full name, birth date, and passport number.
func matchesClientInfo(info, c Client) bool {
	if info.Passport == nil || c.Passport == nil {
		return false
	}
	return info.Name == c.Name &&
		info.Surname == c.Surname &&
		info.BirthDate.Equal(c.BirthDate) &&
		info.Passport.IdenticalNumber == c.Passport.IdenticalNumber
}
