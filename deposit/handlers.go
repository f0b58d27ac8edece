// Package deposit wires the deposit-opening saga: the task handlers
// backing each service task, the decision table for the trip home, and
// the process definitions that orchestrate them.
package deposit

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/google/uuid"
	"github.com/meridianbank/depositflow/bank"
	"github.com/meridianbank/depositflow/decision"
	"github.com/meridianbank/depositflow/handler"
	"github.com/meridianbank/depositflow/process"
	"github.com/shopspring/decimal"
)

// ErrUnknownDeposit is returned when a contract is requested for a
// deposit that is not in the catalog. It is fatal to the instance, as
// the chosen name can only come from the catalog itself.
var ErrUnknownDeposit = fmt.Errorf("unknown deposit")

// DefaultTaxiFare is the fare charged for the taxi ride to the bank.
var DefaultTaxiFare = decimal.New(1550, -2)

// Handlers binds the deposit-opening task handlers to their
// collaborators.
type Handlers struct {
	// Repository is the source of the deposit catalog and the client
	// registers.
	Repository bank.Repository

	// Validator screens clients against the registers.
	Validator *bank.Validator

	// Decisions evaluates the transport-to-home decision table.
	Decisions decision.Evaluator

	// Logger is the target for messages produced by the handlers.
	Logger logging.Logger

	// Now is the clock used for contract dates. time.Now is used when
	// nil.
	Now func() time.Time

	// SmsCode produces verification codes. A random four digit code is
	// used when nil.
	SmsCode func() string

	// TaxiFare is the fare for the taxi ride. DefaultTaxiFare is used
	// when zero.
	TaxiFare decimal.Decimal
}

// Registry returns a handler registry populated with every handler of
// the deposit-opening saga.
func (h *Handlers) Registry() *handler.Registry {
	r := handler.NewRegistry()

	r.Register("payTaxi", h.PayTaxi)
	r.Register("providePassport", h.ProvidePassport)
	r.Register("listDeposits", h.ListDeposits)
	r.Register("checkExistingClient", h.CheckExistingClient)
	r.Register("validateClientFull", h.ValidateClientFull)
	r.Register("validateClientParticular", h.ValidateClientParticular)
	r.Register("depositChoosingCount", h.CountDepositChoosing)
	r.Register("prepareDocument", h.PrepareDocument)
	r.Register("depositReplenishment", h.DepositReplenishment)
	r.Register("verifyMoney", h.VerifyMoney)
	r.Register("prepareSms", h.PrepareSms)
	r.Register("smsObtainingByClient", h.SmsObtainingByClient)
	r.Register("validateSms", h.ValidateSms)
	r.Register("notifyFailedVerification", h.NotifyFailedVerification)
	r.Register("callThePolice", h.CallThePolice)
	r.Register("runOutOfTheBank", h.RunOutOfTheBank)
	r.Register("chooseTransportToHome", h.ChooseTransportToHome)
	r.Register("goingHomePrint", h.GoingHomePrint)
	r.Register("congratulateByEmail", h.CongratulateByEmail)
	r.Register("congratulateBySms", h.CongratulateBySms)

	return r
}

// PayTaxi charges the taxi fare to the client's wallet.
func (h *Handlers) PayTaxi(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	fare := h.TaxiFare
	if fare.IsZero() {
		fare = DefaultTaxiFare
	}

	if c.Balance().LessThan(fare) {
		return nil, process.NewError(
			ErrorNotEnoughMoney,
			"%s %s cannot pay %s for the taxi",
			c.Name, c.Surname, fare,
		)
	}

	c.Wallet = &bank.Wallet{
		MoneyCount: c.Balance().Sub(fare),
	}

	logging.Log(
		h.Logger,
		"%s %s paid %s for the taxi",
		c.Name, c.Surname, fare,
	)

	return process.Variables{VarClient: c}, nil
}

// ProvidePassport verifies the client showed up with a passport.
func (h *Handlers) ProvidePassport(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	if c.Passport == nil {
		return nil, process.NewError(
			ErrorSuddenInterruption,
			"%s %s has no passport to provide",
			c.Name, c.Surname,
		)
	}

	logging.Debug(
		h.Logger,
		"%s %s provided passport %s",
		c.Name, c.Surname, c.Passport.IdenticalNumber,
	)

	return nil, nil
}

// ListDeposits loads the deposit catalog into the instance.
func (h *Handlers) ListDeposits(ctx context.Context, _ process.Variables) (process.Variables, error) {
	deposits, err := h.Repository.Deposits(ctx)
	if err != nil {
		return nil, err
	}

	return process.Variables{VarBankDeposits: deposits}, nil
}

// CheckExistingClient reports whether the client already holds an
// account, by passport number.
func (h *Handlers) CheckExistingClient(ctx context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	existing := false
	if c.Passport != nil {
		passports, err := h.Repository.ExistingClientPassports(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range passports {
			if p.IdenticalNumber == c.Passport.IdenticalNumber {
				existing = true
				break
			}
		}
	}

	return process.Variables{VarIsExistingUser: existing}, nil
}

// ValidateClientFull screens a new client against the police wanted
// list, the bank's black list, and the passport validity window.
func (h *Handlers) ValidateClientFull(ctx context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	wanted, err := h.Validator.IsWantedByPolice(ctx, c)
	if err != nil {
		return nil, err
	}

	listed, err := h.Validator.IsBlacklisted(ctx, c)
	if err != nil {
		return nil, err
	}

	criminal := wanted || listed
	valid := !criminal && h.Validator.IsPassportValid(c)

	return process.Variables{
		VarIsValidUser: valid,
		VarIsCriminal:  criminal,
	}, nil
}

// ValidateClientParticular screens a known client. Only the passport
// validity window is re-checked.
func (h *Handlers) ValidateClientParticular(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	return process.Variables{
		VarIsValidUser: h.Validator.IsPassportValid(c),
		VarIsCriminal:  false,
	}, nil
}

// CountDepositChoosing tracks how many catalog entries the client has
// rejected. Once the whole catalog has been turned down there is
// nothing left to offer.
func (h *Handlers) CountDepositChoosing(ctx context.Context, vars process.Variables) (process.Variables, error) {
	deposits, err := h.Repository.Deposits(ctx)
	if err != nil {
		return nil, err
	}

	count, ok := vars.Int(VarDepositChoosingCount)
	if !ok {
		count = 1
	}

	if count >= len(deposits) {
		return nil, process.NewError(
			ErrorNoMoreDeposits,
			"all %d deposits have been rejected",
			len(deposits),
		)
	}

	return process.Variables{VarDepositChoosingCount: count + 1}, nil
}

// PrepareDocument drafts the contract for the chosen deposit.
func (h *Handlers) PrepareDocument(ctx context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	name := vars.String(VarDepositName)

	deposits, err := h.Repository.Deposits(ctx)
	if err != nil {
		return nil, err
	}

	var chosen *bank.Deposit
	for i, d := range deposits {
		if strings.EqualFold(d.Name, name) {
			chosen = &deposits[i]
			break
		}
	}
	if chosen == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeposit, name)
	}

	open := h.now()
	contract := bank.DepositContract{
		ID:                uuid.New(),
		Name:              chosen.Name,
		MinimalSum:        chosen.MinimalSum,
		OpenDate:          open,
		CloseDate:         open.AddDate(0, chosen.TermInMonth, 0),
		ClientName:        c.Name,
		ClientSurname:     c.Surname,
		ClientPhoneNumber: c.PhoneNumber,
	}

	logging.Log(
		h.Logger,
		"prepared %q contract %s for %s %s",
		contract.Name, contract.ID, c.Name, c.Surname,
	)

	return process.Variables{VarPreparedContract: contract}, nil
}

// DepositReplenishment verifies the client's wallet can cover the
// contract's minimal sum before asking how much to pay in.
func (h *Handlers) DepositReplenishment(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	contract, err := contractVar(vars)
	if err != nil {
		return nil, err
	}

	if c.Balance().LessThan(contract.MinimalSum) {
		return nil, process.NewError(
			ErrorNotEnoughMoney,
			"%s %s has %s but %q requires at least %s",
			c.Name, c.Surname, c.Balance(), contract.Name, contract.MinimalSum,
		)
	}

	return nil, nil
}

// VerifyMoney checks the amount the client chose to pay in against the
// contract's minimal sum, and moves it out of the wallet. Paying
// exactly the minimal sum is accepted.
func (h *Handlers) VerifyMoney(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	contract, err := contractVar(vars)
	if err != nil {
		return nil, err
	}

	paid, ok := vars.Decimal(VarPaidMoney)
	if !ok {
		return nil, process.NewError(
			ErrorSuddenInterruption,
			"no amount was chosen for %q",
			contract.Name,
		)
	}

	if paid.LessThan(contract.MinimalSum) {
		return nil, process.NewError(
			ErrorNotEnoughMoney,
			"%s does not open %q (minimal sum %s)",
			paid, contract.Name, contract.MinimalSum,
		)
	}

	c.Wallet = &bank.Wallet{
		MoneyCount: c.Balance().Sub(paid),
	}

	logging.Log(
		h.Logger,
		"%s %s replenished %q with %s",
		c.Name, c.Surname, contract.Name, paid,
	)

	return process.Variables{VarClient: c}, nil
}

// PrepareSms issues a fresh verification code, counting issuances.
func (h *Handlers) PrepareSms(_ context.Context, vars process.Variables) (process.Variables, error) {
	count, ok := vars.Int(VarSendMobileCodeCount)
	if !ok {
		count = 0
	}

	code := randomSmsCode()
	if h.SmsCode != nil {
		code = h.SmsCode()
	}

	return process.Variables{
		VarSmsCode:             code,
		VarSendMobileCodeCount: count + 1,
	}, nil
}

// SmsObtainingByClient simulates delivery of the code to the client's
// phone.
func (h *Handlers) SmsObtainingByClient(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	if c.PhoneNumber == "" {
		return nil, process.NewError(
			ErrorSmsNotObtained,
			"%s %s has no phone number to receive the code",
			c.Name, c.Surname,
		)
	}

	logging.Debug(
		h.Logger,
		"verification code sent to %s",
		c.PhoneNumber,
	)

	return nil, nil
}

// ValidateSms compares the code the client typed in against the code
// that was sent. The third failed attempt locks verification out.
func (h *Handlers) ValidateSms(_ context.Context, vars process.Variables) (process.Variables, error) {
	sent := vars.String(VarSmsCode)
	received := vars.String(VarReceivedSmsCode)

	if sent != "" && sent == received {
		return process.Variables{VarIsSmsCodeValid: true}, nil
	}

	count, _ := vars.Int(VarSendMobileCodeCount)
	if count >= 3 {
		return nil, process.NewError(
			ErrorSmsAttemptsExceeded,
			"verification code rejected %d times",
			count,
		)
	}

	return process.Variables{VarIsSmsCodeValid: false}, nil
}

// NotifyFailedVerification tells the client why the opening stops.
func (h *Handlers) NotifyFailedVerification(_ context.Context, vars process.Variables) (process.Variables, error) {
	logging.Log(
		h.Logger,
		"sms verification failed, deposit opening is interrupted",
	)
	return nil, nil
}

// CallThePolice reports the criminal at the counter.
func (h *Handlers) CallThePolice(_ context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	logging.Log(
		h.Logger,
		"police called, %s %s is detained",
		c.Name, c.Surname,
	)

	return nil, nil
}

// RunOutOfTheBank is the client's exit after the police were called.
func (h *Handlers) RunOutOfTheBank(_ context.Context, vars process.Variables) (process.Variables, error) {
	logging.Log(h.Logger, "running out of the bank")
	return nil, nil
}

// ChooseTransportToHome picks a transport by what is left in the
// client's wallet.
func (h *Handlers) ChooseTransportToHome(ctx context.Context, vars process.Variables) (process.Variables, error) {
	c, err := clientVar(vars)
	if err != nil {
		return nil, err
	}

	return h.Decisions.Evaluate(
		ctx,
		TransportTableName,
		process.Variables{VarClient: c},
	)
}

// GoingHomePrint announces the chosen transport.
func (h *Handlers) GoingHomePrint(_ context.Context, vars process.Variables) (process.Variables, error) {
	logging.Log(
		h.Logger,
		"going home by %s",
		vars.String(VarTransportToHome),
	)
	return nil, nil
}

// CongratulateByEmail emails the client about the opened deposit.
func (h *Handlers) CongratulateByEmail(_ context.Context, vars process.Variables) (process.Variables, error) {
	return h.congratulate(vars, "email")
}

// CongratulateBySms texts the client about the opened deposit.
func (h *Handlers) CongratulateBySms(_ context.Context, vars process.Variables) (process.Variables, error) {
	return h.congratulate(vars, "sms")
}

func (h *Handlers) congratulate(vars process.Variables, via string) (process.Variables, error) {
	contract, err := contractVar(vars)
	if err != nil {
		return nil, err
	}

	logging.Log(
		h.Logger,
		"congratulations by %s: %q is open for %s %s",
		via, contract.Name, contract.ClientName, contract.ClientSurname,
	)

	return nil, nil
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// clientVar extracts the client from the instance variables. A missing
// client interrupts the operation, as nothing downstream can proceed
// without one.
func clientVar(vars process.Variables) (bank.Client, error) {
	switch c := vars[VarClient].(type) {
	case bank.Client:
		return c, nil
	case *bank.Client:
		if c != nil {
			return *c, nil
		}
	}

	return bank.Client{}, process.NewError(
		ErrorSuddenInterruption,
		"no client is attached to the instance",
	)
}

func contractVar(vars process.Variables) (bank.DepositContract, error) {
	if c, ok := vars[VarPreparedContract].(bank.DepositContract); ok {
		return c, nil
	}

	return bank.DepositContract{}, process.NewError(
		ErrorSuddenInterruption,
		"no contract has been prepared",
	)
}

func randomSmsCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}
