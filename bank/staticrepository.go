package bank

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StaticRepository is a Repository and Directory backed by fixed lists.
// It stands in for the bank's reference database.
type StaticRepository struct {
	deposits  []Deposit
	clients   []Client
	passports []Passport
	wanted    []Client
	blacklist []Client
}

// NewStaticRepository returns the reference data set: a three-entry
// deposit catalog and four known clients, one of whom is both wanted by
// the police and blacklisted.
func NewStaticRepository() *StaticRepository {
	ria := Client{
		ID:          "1",
		Name:        "Ria",
		Surname:     "Maluta",
		Address:     "Lapwing",
		PhoneNumber: "+27632873563",
		BirthDate:   date(2000, 3, 20),
		Wallet:      &Wallet{MoneyCount: dec("100.20")},
		Passport: &Passport{
			IdenticalNumber: "KH123H123",
			Name:            "Ria",
			Surname:         "Maluta",
			Address:         "Lapwing",
			BirthDate:       date(2000, 3, 20),
			ValidFrom:       date(2021, 11, 11),
			ValidTo:         date(2031, 11, 11),
		},
	}

	roozey := Client{
		ID:          "2",
		Name:        "Roozey",
		Surname:     "Mudau",
		Address:     "Hops",
		PhoneNumber: "+2763756656563",
		BirthDate:   date(1996, 9, 17),
		Wallet:      &Wallet{MoneyCount: dec("500.22")},
		Passport: &Passport{
			IdenticalNumber: "K123H246",
			Name:            "Roozey",
			Surname:         "Mudau",
			Address:         "Hops",
			BirthDate:       date(1996, 9, 17),
			ValidFrom:       date(2021, 11, 11),
			ValidTo:         date(2031, 11, 11),
		},
	}

	dakie := Client{
		ID:          "3",
		Name:        "Dakie",
		Surname:     "Maluta",
		Address:     "Square",
		PhoneNumber: "+2763297896887",
		BirthDate:   date(2007, 2, 15),
		Wallet:      &Wallet{MoneyCount: dec("20.20")},
		Passport: &Passport{
			IdenticalNumber: "K1232565",
			Name:            "Dakie",
			Surname:         "Maluta",
			Address:         "Square",
			BirthDate:       date(2007, 2, 15),
			ValidFrom:       date(2021, 11, 11),
			ValidTo:         date(2031, 11, 11),
		},
	}

	rendy := Client{
		ID:          "4",
		Name:        "Rendy",
		Surname:     "Malts",
		Address:     "Riverside",
		PhoneNumber: "+276326887",
		BirthDate:   date(1996, 10, 18),
		Passport: &Passport{
			IdenticalNumber: "K128965",
			Name:            "Rendy",
			Surname:         "Malts",
			Address:         "Riverside",
			BirthDate:       date(1996, 10, 18),
			ValidFrom:       date(2021, 11, 11),
			ValidTo:         date(2031, 11, 11),
		},
	}

	return &StaticRepository{
		deposits: []Deposit{
			{
				Name:          "Early-Spring",
				Currency:      "ZAR",
				IsCapitalized: true,
				MinimalSum:    dec("50.00"),
				CurrentSum:    dec("10500.00"),
				Percentage:    10.00,
				TermInMonth:   3,
			},
			{
				Name:          "Hot-Summer",
				Currency:      "ZAR",
				IsCapitalized: true,
				MinimalSum:    dec("100.00"),
				Percentage:    15.00,
				TermInMonth:   6,
			},
			{
				Name:          "Hello-Winter",
				Currency:      "ZAR",
				IsCapitalized: false,
				MinimalSum:    dec("50.00"),
				Percentage:    12.00,
				TermInMonth:   9,
			},
		},
		clients:   []Client{ria, roozey, dakie, rendy},
		passports: []Passport{*ria.Passport, *dakie.Passport},
		wanted:    []Client{rendy},
		blacklist: []Client{rendy},
	}
}

// Deposits returns the deposit catalog.
func (r *StaticRepository) Deposits(context.Context) ([]Deposit, error) {
	return append([]Deposit(nil), r.deposits...), nil
}

// ExistingClientPassports returns the passports of account holders.
func (r *StaticRepository) ExistingClientPassports(context.Context) ([]Passport, error) {
	return append([]Passport(nil), r.passports...), nil
}

// WantedByPolice returns the police wanted list.
func (r *StaticRepository) WantedByPolice(context.Context) ([]Client, error) {
	return cloneClients(r.wanted), nil
}

// Blacklisted returns the bank's black list.
func (r *StaticRepository) Blacklisted(context.Context) ([]Client, error) {
	return cloneClients(r.blacklist), nil
}

// ClientByID returns the directory entry with the given ID.
func (r *StaticRepository) ClientByID(_ context.Context, id string) (Client, bool, error) {
	for _, c := range r.clients {
		if c.ID == id {
			return cloneClient(c), true, nil
		}
	}
	return Client{}, false, nil
}

// Clients returns every directory entry.
func (r *StaticRepository) Clients() []Client {
	return cloneClients(r.clients)
}

func cloneClients(clients []Client) []Client {
	out := make([]Client, len(clients))
	for i, c := range clients {
		out[i] = cloneClient(c)
	}
	return out
}

// cloneClient detaches the wallet and passport, so callers cannot
// mutate the reference data through them.
func cloneClient(c Client) Client {
	if c.Wallet != nil {
		w := *c.Wallet
		c.Wallet = &w
	}
	if c.Passport != nil {
		p := *c.Passport
		c.Passport = &p
	}
	return c
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
