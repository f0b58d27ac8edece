package deposit

import (
	"time"

	"github.com/meridianbank/depositflow/process"
)

// DefaultCongratsDelay is the pause before the congratulation processes
// reach out to the client.
const DefaultCongratsDelay = 10 * time.Second

// Definitions returns every process definition of the deposit-opening
// saga. congratsDelay sets the congratulation timers;
// DefaultCongratsDelay is used when it is not positive.
func Definitions(congratsDelay time.Duration) []*process.Definition {
	if congratsDelay <= 0 {
		congratsDelay = DefaultCongratsDelay
	}

	return []*process.Definition{
		MainProcess(),
		DepositOpeningProcess(),
		SmsVerificationProcess(),
		GoingHomeProcess(),
		congratsProcess(EmailCongratsProcessKey, "congratulateByEmail", congratsDelay),
		congratsProcess(SmsCongratsProcessKey, "congratulateBySms", congratsDelay),
	}
}

// MainProcess is the client's whole trip: getting to the bank, opening
// the deposit, and getting home. Every business failure raised inside
// deposit opening is caught here and routed to its own ending.
func MainProcess() *process.Definition {
	return &process.Definition{
		Key: MainProcessKey,
		Nodes: []process.Node{
			{ID: "Start", Kind: process.Start},
			{ID: "GoingToBank", Kind: process.UserTask, TaskName: "Going to the bank"},
			{ID: "GatewayIsTaxiChosen", Kind: process.ExclusiveGateway},
			{ID: "PayForTheTaxi", Kind: process.Task, Handler: "payTaxi"},
			{ID: "GetTicketInQueueMachine", Kind: process.UserTask, TaskName: "Get a ticket in the queue machine"},
			{
				ID:          "OpenDeposit",
				Kind:        process.CallActivity,
				Definition:  DepositOpeningProcessKey,
				BusinessKey: VarDepositOpeningBusinessKey,
				Inherit:     []string{VarClient, VarCorrelationID},
			},
			{
				ID:         "RoadToHome",
				Kind:       process.CallActivity,
				Definition: GoingHomeProcessKey,
				Inherit:    []string{VarClient},
			},
			{ID: "DepositOpenedEnd", Kind: process.End},

			{ID: "ClientIsCriminalErrorCaught", Kind: process.CatchError},
			{ID: "RunOutOfTheBank", Kind: process.Task, Handler: "runOutOfTheBank"},
			{ID: "ClientIsCriminalEnd", Kind: process.End},

			{ID: "NoMoreDepositsErrorCaught", Kind: process.CatchError},
			{
				ID:         "RoadToHomeAfterNoMoreDeposits",
				Kind:       process.CallActivity,
				Definition: GoingHomeProcessKey,
				Inherit:    []string{VarClient},
			},
			{ID: "NoMoreDepositsEnd", Kind: process.End},

			{ID: "NotEnoughMoneyErrorCaught", Kind: process.CatchError},
			{
				ID:         "RoadToHomeAfterNotEnoughMoney",
				Kind:       process.CallActivity,
				Definition: GoingHomeProcessKey,
				Inherit:    []string{VarClient},
			},
			{ID: "NotEnoughMoneyEnd", Kind: process.End},

			{ID: "InterruptionErrorCaught", Kind: process.CatchError},
			{
				ID:         "RoadToHomeAfterInterruption",
				Kind:       process.CallActivity,
				Definition: GoingHomeProcessKey,
				Inherit:    []string{VarClient},
			},
			{ID: "InterruptionEnd", Kind: process.End},
		},
		Edges: []process.Edge{
			{From: "Start", To: "GoingToBank"},
			{From: "GoingToBank", To: "GatewayIsTaxiChosen"},
			{From: "GatewayIsTaxiChosen", To: "PayForTheTaxi", Guard: process.VarTrue(VarIsTaxiChosen), Name: "taxi"},
			{From: "GatewayIsTaxiChosen", To: "GetTicketInQueueMachine", Guard: process.Otherwise(), Name: "on foot"},
			{From: "PayForTheTaxi", To: "GetTicketInQueueMachine"},
			{From: "GetTicketInQueueMachine", To: "OpenDeposit"},
			{From: "OpenDeposit", To: "RoadToHome"},
			{From: "RoadToHome", To: "DepositOpenedEnd"},

			{From: "ClientIsCriminalErrorCaught", To: "RunOutOfTheBank"},
			{From: "RunOutOfTheBank", To: "ClientIsCriminalEnd"},

			{From: "NoMoreDepositsErrorCaught", To: "RoadToHomeAfterNoMoreDeposits"},
			{From: "RoadToHomeAfterNoMoreDeposits", To: "NoMoreDepositsEnd"},

			{From: "NotEnoughMoneyErrorCaught", To: "RoadToHomeAfterNotEnoughMoney"},
			{From: "RoadToHomeAfterNotEnoughMoney", To: "NotEnoughMoneyEnd"},

			{From: "InterruptionErrorCaught", To: "RoadToHomeAfterInterruption"},
			{From: "RoadToHomeAfterInterruption", To: "InterruptionEnd"},
		},
		ErrorCatches: []process.ErrorCatch{
			{Code: ErrorClientIsCriminal, To: "ClientIsCriminalErrorCaught"},
			{Code: ErrorNoMoreDeposits, To: "NoMoreDepositsErrorCaught"},
			{Code: ErrorNotEnoughMoney, To: "NotEnoughMoneyErrorCaught"},
			{Code: ErrorSuddenInterruption, To: "InterruptionErrorCaught"},
		},
	}
}

// DepositOpeningProcess is the in-bank part of the saga: screening the
// client, choosing a deposit, signing the contract and paying it in.
// Domain failures end the process with an error that the caller's
// boundary catches.
func DepositOpeningProcess() *process.Definition {
	return &process.Definition{
		Key: DepositOpeningProcessKey,
		Nodes: []process.Node{
			{ID: "Start", Kind: process.Start},
			{ID: "PassportProviding", Kind: process.Task, Handler: "providePassport", Async: true},
			{ID: "DepositListProviding", Kind: process.Task, Handler: "listDeposits"},
			{ID: "DepositChoosing", Kind: process.UserTask, TaskName: "Take a look in to deposit list and choose one of them"},
			{ID: "GatewayIsDepositChosen", Kind: process.ExclusiveGateway},
			{ID: "GatewayIsFirstChoice", Kind: process.ExclusiveGateway},

			// Screening runs once, on the first choice only.
			{ID: "ClientExistingChecking", Kind: process.Task, Handler: "checkExistingClient"},
			{ID: "GatewayIsNewClient", Kind: process.ExclusiveGateway},
			{ID: "ClientParticularValidation", Kind: process.Task, Handler: "validateClientParticular"},
			{ID: "ClientFullValidation", Kind: process.Task, Handler: "validateClientFull"},
			{ID: "GatewayMergeValidation", Kind: process.ExclusiveGateway},
			{ID: "GatewayIsValidationSuccessful", Kind: process.ExclusiveGateway},

			{
				ID:      "StartVerificationSms",
				Kind:    process.MessageThrow,
				Message: MessageStartSmsVerification,
				Payload: []string{VarClient, VarCorrelationID},
			},
			{ID: "AwaitVerificationSmsResult", Kind: process.EventGateway},
			{ID: "VerificationSmsSucceeded", Kind: process.MessageCatch, Message: MessageSuccessSmsVerification},
			{ID: "VerificationSmsFailed", Kind: process.MessageCatch, Message: MessageFailedSmsVerification},
			{ID: "NotifyFailedVerification", Kind: process.Task, Handler: "notifyFailedVerification"},
			{ID: "FailedVerificationError", Kind: process.ErrorEnd, Error: ErrorSuddenInterruption},

			{ID: "GatewayIsClientCriminal", Kind: process.ExclusiveGateway},
			{ID: "CallThePolice", Kind: process.Task, Handler: "callThePolice"},
			{ID: "ClientIsCriminalError", Kind: process.ErrorEnd, Error: ErrorClientIsCriminal},
			{ID: "ClientIsNotValidError", Kind: process.ErrorEnd, Error: ErrorSuddenInterruption},

			{ID: "DepositChoosingCountEndLink", Kind: process.Task, Async: true},
			{ID: "DocumentsPreparation", Kind: process.Task, Handler: "prepareDocument"},
			{ID: "ReadAndSignContract", Kind: process.UserTask, TaskName: "Read and sign contract"},
			{ID: "GatewayIsContractSigned", Kind: process.ExclusiveGateway},
			{ID: "DepositChoosingCount", Kind: process.Task, Handler: "depositChoosingCount"},

			{ID: "DepositReplenishment", Kind: process.Task, Handler: "depositReplenishment"},
			{ID: "CountOfMoneyToReplenish", Kind: process.UserTask, TaskName: "Choose how much money you want to replenish"},
			{ID: "MoneyCountVerification", Kind: process.Task, Handler: "verifyMoney"},
			{
				ID:      "FinishDepositSignal",
				Kind:    process.SignalThrow,
				Signal:  SignalDepositOpened,
				Payload: []string{VarClient, VarPreparedContract},
			},
			{ID: "DepositOpeningEnded", Kind: process.End},

			{ID: "NoMoreDepositsCaught", Kind: process.CatchError},
			{ID: "NoMoreDepositsRethrow", Kind: process.ErrorEnd, Error: ErrorNoMoreDeposits},
			{ID: "NotEnoughMoneyCaught", Kind: process.CatchError},
			{ID: "NotEnoughMoneyRethrow", Kind: process.ErrorEnd, Error: ErrorNotEnoughMoney},
		},
		Edges: []process.Edge{
			{From: "Start", To: "PassportProviding"},
			{From: "PassportProviding", To: "DepositListProviding"},
			{From: "DepositListProviding", To: "DepositChoosing"},
			{From: "DepositChoosing", To: "GatewayIsDepositChosen"},
			{From: "GatewayIsDepositChosen", To: "GatewayIsFirstChoice", Guard: process.VarExists(VarDepositName), Name: "chosen"},
			{From: "GatewayIsDepositChosen", To: "DepositChoosing", Guard: process.Otherwise(), Name: "choose again"},
			{From: "GatewayIsFirstChoice", To: "DepositChoosingCountEndLink", Guard: process.VarExists(VarIsValidUser), Name: "already validated"},
			{From: "GatewayIsFirstChoice", To: "ClientExistingChecking", Guard: process.Otherwise(), Name: "first choice"},

			{From: "ClientExistingChecking", To: "GatewayIsNewClient"},
			{From: "GatewayIsNewClient", To: "ClientParticularValidation", Guard: process.VarTrue(VarIsExistingUser), Name: "existing client"},
			{From: "GatewayIsNewClient", To: "ClientFullValidation", Guard: process.Otherwise(), Name: "new client"},
			{From: "ClientParticularValidation", To: "GatewayMergeValidation"},
			{From: "ClientFullValidation", To: "GatewayMergeValidation"},
			{From: "GatewayMergeValidation", To: "GatewayIsValidationSuccessful"},
			{From: "GatewayIsValidationSuccessful", To: "StartVerificationSms", Guard: process.VarTrue(VarIsValidUser), Name: "valid"},
			{From: "GatewayIsValidationSuccessful", To: "GatewayIsClientCriminal", Guard: process.Otherwise(), Name: "not valid"},

			{From: "StartVerificationSms", To: "AwaitVerificationSmsResult"},
			{From: "AwaitVerificationSmsResult", To: "VerificationSmsSucceeded"},
			{From: "AwaitVerificationSmsResult", To: "VerificationSmsFailed"},
			{From: "VerificationSmsSucceeded", To: "DepositChoosingCountEndLink"},
			{From: "VerificationSmsFailed", To: "NotifyFailedVerification"},
			{From: "NotifyFailedVerification", To: "FailedVerificationError"},

			{From: "GatewayIsClientCriminal", To: "CallThePolice", Guard: process.VarTrue(VarIsCriminal), Name: "criminal"},
			{From: "GatewayIsClientCriminal", To: "ClientIsNotValidError", Guard: process.Otherwise(), Name: "not valid"},
			{From: "CallThePolice", To: "ClientIsCriminalError"},

			{From: "DepositChoosingCountEndLink", To: "DocumentsPreparation"},
			{From: "DocumentsPreparation", To: "ReadAndSignContract"},
			{From: "ReadAndSignContract", To: "GatewayIsContractSigned"},
			{From: "GatewayIsContractSigned", To: "DepositReplenishment", Guard: process.VarTrue(VarIsContractSigned), Name: "signed"},
			{From: "GatewayIsContractSigned", To: "DepositChoosingCount", Guard: process.Otherwise(), Name: "rejected"},
			{From: "DepositChoosingCount", To: "DepositChoosing"},

			{From: "DepositReplenishment", To: "CountOfMoneyToReplenish"},
			{From: "CountOfMoneyToReplenish", To: "MoneyCountVerification"},
			{From: "MoneyCountVerification", To: "FinishDepositSignal"},
			{From: "FinishDepositSignal", To: "DepositOpeningEnded"},

			{From: "NoMoreDepositsCaught", To: "NoMoreDepositsRethrow"},
			{From: "NotEnoughMoneyCaught", To: "NotEnoughMoneyRethrow"},
		},
		ErrorCatches: []process.ErrorCatch{
			{Code: ErrorNoMoreDeposits, To: "NoMoreDepositsCaught"},
			{Code: ErrorNotEnoughMoney, To: "NotEnoughMoneyCaught"},
		},
	}
}

// SmsVerificationProcess is started by a correlated message and reports
// its outcome back the same way. The client gets three attempts at the
// code before verification locks out.
func SmsVerificationProcess() *process.Definition {
	return &process.Definition{
		Key: SmsVerificationProcessKey,
		Nodes: []process.Node{
			{ID: "VerificationSmsRequested", Kind: process.MessageStart, Message: MessageStartSmsVerification},
			{ID: "PrepareAndSendVerificationSms", Kind: process.Task, Handler: "prepareSms"},
			{ID: "VerificationSmsHandling", Kind: process.Task, Handler: "smsObtainingByClient"},
			{ID: "ProvideSmsValidationCode", Kind: process.UserTask, TaskName: "Provide sms validation code"},
			{ID: "ValidateCodeFromSms", Kind: process.Task, Handler: "validateSms"},
			{ID: "GatewayIsSmsCodeValid", Kind: process.ExclusiveGateway},
			{
				ID:      "SendSuccessVerificationSms",
				Kind:    process.MessageThrow,
				Message: MessageSuccessSmsVerification,
				Async:   true,
			},
			{ID: "SmsVerificationEnded", Kind: process.End},

			{ID: "SmsAttemptsExceededCaught", Kind: process.CatchError},
			{
				ID:      "SendFailedVerificationSms",
				Kind:    process.MessageThrow,
				Message: MessageFailedSmsVerification,
				Async:   true,
			},
			{ID: "SmsVerificationFailedEnded", Kind: process.End},
		},
		Edges: []process.Edge{
			{From: "VerificationSmsRequested", To: "PrepareAndSendVerificationSms"},
			{From: "PrepareAndSendVerificationSms", To: "VerificationSmsHandling"},
			{From: "VerificationSmsHandling", To: "ProvideSmsValidationCode"},
			{From: "ProvideSmsValidationCode", To: "ValidateCodeFromSms"},
			{From: "ValidateCodeFromSms", To: "GatewayIsSmsCodeValid"},
			{From: "GatewayIsSmsCodeValid", To: "SendSuccessVerificationSms", Guard: process.VarTrue(VarIsSmsCodeValid), Name: "valid"},
			{From: "GatewayIsSmsCodeValid", To: "PrepareAndSendVerificationSms", Guard: process.Otherwise(), Name: "retry"},
			{From: "SendSuccessVerificationSms", To: "SmsVerificationEnded"},

			{From: "SmsAttemptsExceededCaught", To: "SendFailedVerificationSms"},
			{From: "SendFailedVerificationSms", To: "SmsVerificationFailedEnded"},
		},
		ErrorCatches: []process.ErrorCatch{
			{Code: ErrorSmsAttemptsExceeded, To: "SmsAttemptsExceededCaught"},
		},
	}
}

// GoingHomeProcess picks a transport by distance and takes the client
// home. It is called from every ending of the main process except the
// criminal one.
func GoingHomeProcess() *process.Definition {
	return &process.Definition{
		Key: GoingHomeProcessKey,
		Nodes: []process.Node{
			{ID: "Start", Kind: process.Start},
			{ID: "ChooseTransportToHome", Kind: process.Task, Handler: "chooseTransportToHome", Async: true},
			{ID: "GoingHomePrint", Kind: process.Task, Handler: "goingHomePrint"},
			{ID: "GoingHomeEnded", Kind: process.End},
		},
		Edges: []process.Edge{
			{From: "Start", To: "ChooseTransportToHome"},
			{From: "ChooseTransportToHome", To: "GoingHomePrint"},
			{From: "GoingHomePrint", To: "GoingHomeEnded"},
		},
	}
}

func congratsProcess(key, handler string, delay time.Duration) *process.Definition {
	return &process.Definition{
		Key: key,
		Nodes: []process.Node{
			{ID: "DepositOpenedSignal", Kind: process.SignalStart, Signal: SignalDepositOpened},
			{ID: "CongratulationDelay", Kind: process.Timer, Delay: delay},
			{ID: "Congratulate", Kind: process.Task, Handler: handler},
			{ID: "CongratulationEnded", Kind: process.End},
		},
		Edges: []process.Edge{
			{From: "DepositOpenedSignal", To: "CongratulationDelay"},
			{From: "CongratulationDelay", To: "Congratulate"},
			{From: "Congratulate", To: "CongratulationEnded"},
		},
	}
}
