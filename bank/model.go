// Package bank holds the domain model shared by the deposit-opening saga
// and its collaborators: clients, passports, wallets, the deposit catalog
// and the contracts drafted from it.
package bank

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet carries a client's spendable balance.
type Wallet struct {
	MoneyCount decimal.Decimal `json:"moneyCount"`
}

// Passport is the identity document presented at the bank.
type Passport struct {
	IdenticalNumber string    `json:"identicalNumber"`
	Name            string    `json:"name"`
	Surname         string    `json:"surname"`
	Address         string    `json:"address"`
	BirthDate       time.Time `json:"birthDate"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
}

// Client is a bank visitor. A client without a wallet cannot pay for
// anything, but may still be checked against the registers.
type Client struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
	Address     string    `json:"address"`
	PhoneNumber string    `json:"phoneNumber"`
	BirthDate   time.Time `json:"birthDate"`
	Wallet      *Wallet   `json:"wallet,omitempty"`
	Passport    *Passport `json:"passport,omitempty"`
}

// Balance returns the wallet balance, treating a missing wallet as zero.
func (c Client) Balance() decimal.Decimal {
	if c.Wallet == nil {
		return decimal.Decimal{}
	}
	return c.Wallet.MoneyCount
}

// Deposit is a catalog entry offered by the bank.
type Deposit struct {
	Name          string          `json:"name"`
	MinimalSum    decimal.Decimal `json:"minimalSum"`
	CurrentSum    decimal.Decimal `json:"currentSum"`
	Percentage    float64         `json:"percentage"`
	IsCapitalized bool            `json:"isCapitalized"`
	Currency      string          `json:"currency"`
	TermInMonth   int             `json:"termInMonth"`
}

// DepositContract is the document drafted for a chosen deposit, ready for
// the client's signature.
type DepositContract struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	MinimalSum        decimal.Decimal `json:"minimalSum"`
	OpenDate          time.Time       `json:"openDate"`
	CloseDate         time.Time       `json:"closeDate"`
	ClientName        string          `json:"clientName"`
	ClientSurname     string          `json:"clientSurname"`
	ClientPhoneNumber string          `json:"clientPhoneNumber"`
}
