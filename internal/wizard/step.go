package wizard

// Step names the single active screen/state of the onboarding wizard.
type Step int

const (
	StepInitializing Step = iota
	StepCheckingIdentity
	StepIdentityConfirmed
	StepAwaitingPhone
	StepSubmittingRegistration
	StepAwaitingCode
	StepVerifyingCode
	StepAwaitingAccount
	StepLinkingAccount
	StepAwaitingPIN
	StepFinalizing
	StepCompleted
	StepFailed
	StepUnsupportedEnv
)

var stepNames = map[Step]string{
	StepInitializing:           "initializing",
	StepCheckingIdentity:       "checking-identity",
	StepIdentityConfirmed:      "identity-confirmed",
	StepAwaitingPhone:          "awaiting-phone",
	StepSubmittingRegistration: "submitting-registration",
	StepAwaitingCode:           "awaiting-code",
	StepVerifyingCode:          "verifying-code",
	StepAwaitingAccount:        "awaiting-account",
	StepLinkingAccount:         "linking-account",
	StepAwaitingPIN:            "awaiting-pin",
	StepFinalizing:             "finalizing",
	StepCompleted:              "completed",
	StepFailed:                 "failed",
	StepUnsupportedEnv:         "unsupported-environment",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// previousStep maps each input step to the screen "back" returns to after a
// failure. Re-entering account details requires re-confirming phone context,
// so awaiting-account goes back to awaiting-phone, not awaiting-code.
var previousStep = map[Step]Step{
	StepAwaitingPhone:   StepIdentityConfirmed,
	StepAwaitingCode:    StepAwaitingPhone,
	StepAwaitingAccount: StepAwaitingPhone,
	StepAwaitingPIN:     StepAwaitingAccount,
}
