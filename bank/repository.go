package bank

import "context"

// Repository exposes the bank's reference data as read-only snapshots.
// Every method returns copies; callers must never see shared mutable
// state. The static implementation below is backed by hardcoded lists and
// is replaceable by a real store without touching the engine.
type Repository interface {
	// Deposits returns the catalog of deposits offered by the bank.
	Deposits(ctx context.Context) ([]Deposit, error)

	// ExistingClientPassports returns the passports of people who already
	// hold an account.
	ExistingClientPassports(ctx context.Context) ([]Passport, error)

	// WantedByPolice returns the police wanted list.
	WantedByPolice(ctx context.Context) ([]Client, error)

	// Blacklisted returns the bank's own black list.
	Blacklisted(ctx context.Context) ([]Client, error)
}

// Directory resolves clients by ID. It is used by the intake API to
// attach a client to a freshly started saga.
type Directory interface {
	// ClientByID returns the client with the given ID, or ok == false.
	ClientByID(ctx context.Context, id string) (Client, bool, error)
}
