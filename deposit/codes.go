package deposit

// Error codes raised by the deposit opening handlers and process
// definitions.
const (
	// ErrorSuddenInterruption aborts the current branch for any failure
	// that has no more specific code.
	ErrorSuddenInterruption = "SUDDEN_OPERATION_INTERRUPTION_ERROR"

	// ErrorClientIsCriminal ends deposit opening when the client is on
	// the police wanted list or the bank blacklist.
	ErrorClientIsCriminal = "CLIENT_IS_CRIMINAL"

	// ErrorSmsNotObtained is raised when the verification SMS never
	// reaches the client.
	ErrorSmsNotObtained = "VERIFICATION_SMS_NOT_OBTAINED"

	// ErrorSmsAttemptsExceeded is raised on the third failed SMS code
	// validation.
	ErrorSmsAttemptsExceeded = "LIMIT_OF_VERIFICATION_SMS_ATTEMPTS_EXCEEDED"

	// ErrorNoMoreDeposits is raised when the client has rejected the
	// contract for every deposit in the catalog.
	ErrorNoMoreDeposits = "NO_MORE_DEPOSITS_TO_OPEN"

	// ErrorNotEnoughMoney is raised when the client's wallet cannot
	// cover the chosen deposit's minimal sum.
	ErrorNotEnoughMoney = "NOT_ENOUGH_MONEY"
)

// Message names used for cross-process correlation.
const (
	MessageStartSmsVerification   = "message_start_sms_verification"
	MessageSuccessSmsVerification = "message_success_sms_verification"
	MessageFailedSmsVerification  = "message_failed_sms_verification"
)

// SignalDepositOpened is broadcast when a deposit is successfully
// replenished.
const SignalDepositOpened = "signal_deposit_opened"

// Process definition keys.
const (
	MainProcessKey            = "MainDepositCredit"
	DepositOpeningProcessKey  = "DepositOpening"
	SmsVerificationProcessKey = "SmsVerification"
	GoingHomeProcessKey       = "GoingHome"
	EmailCongratsProcessKey   = "EmailCongrats"
	SmsCongratsProcessKey     = "SmsCongrats"
)

// Variable names shared between handlers and process definitions.
const (
	VarClient                    = "client"
	VarCorrelationID             = "correlationId"
	VarIsTaxiChosen              = "isTaxiChosen"
	VarBankDeposits              = "bankDeposits"
	VarDepositName               = "depositName"
	VarIsExistingUser            = "isExistingUser"
	VarIsValidUser               = "isValidUser"
	VarIsCriminal                = "isCriminal"
	VarPreparedContract          = "preparedDepositContract"
	VarIsContractSigned          = "isContractSigned"
	VarPaidMoney                 = "paidMoney"
	VarDepositChoosingCount      = "depositChoosingCount"
	VarSmsCode                   = "smsCode"
	VarReceivedSmsCode           = "receivedSmsCode"
	VarSendMobileCodeCount       = "sendMobileCodeCount"
	VarIsSmsCodeValid            = "isSmsCodeValid"
	VarTransportToHome           = "transportToHome"
	VarDepositOpeningBusinessKey = "depositOpeningBusinessKey"
)
