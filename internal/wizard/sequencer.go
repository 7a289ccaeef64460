package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/sango-bank/sango_onboard/internal/bridge"
	"github.com/sango-bank/sango_onboard/internal/fingerprint"
	"github.com/sango-bank/sango_onboard/internal/telegram"
)

// Caller issues an authenticated POST against the banking backend.
type Caller interface {
	Send(ctx context.Context, path string, payload any) ([]byte, error)
}

// Collector produces the device fingerprint record for the device/SIM
// verification call.
type Collector interface {
	Collect(ctx context.Context) fingerprint.Record
}

// Presenter renders the current step and relays side-channel messages. The
// sequencer owns all state; the presenter never mutates the session.
type Presenter interface {
	StepChanged(step Step)
	Notify(message string)
}

// Config wires a Sequencer.
type Config struct {
	Client    Caller
	Collector Collector
	Presenter Presenter
	Logger    *slog.Logger
	Sources   telegram.Sources

	// Ready fires when the host platform has finished bootstrapping. Grace
	// bounds how long Mount waits silently before telling the presenter to
	// show a wait screen.
	Ready <-chan struct{}
	Grace time.Duration
}

// Sequencer drives the registration step state machine: one outstanding step
// at a time, response data cached into the session before any dependent call,
// failures anchored to the step they should return to.
type Sequencer struct {
	client    Caller
	collector Collector
	presenter Presenter
	logger    *slog.Logger
	sources   telegram.Sources
	ready     <-chan struct{}
	grace     time.Duration

	mu      sync.Mutex
	mounted bool

	step       Step
	session    Session
	failedStep Step
	lastError  string
}

// New builds a Sequencer at the initializing step.
func New(cfg Config) *Sequencer {
	return &Sequencer{
		client:    cfg.Client,
		collector: cfg.Collector,
		presenter: cfg.Presenter,
		logger:    cfg.Logger,
		sources:   cfg.Sources,
		ready:     cfg.Ready,
		grace:     cfg.Grace,
		step:      StepInitializing,
	}
}

// Step returns the currently active step.
func (s *Sequencer) Step() Step { return s.step }

// Session returns a copy of the accumulated session context.
func (s *Sequencer) Session() Session { return s.session }

// LastError returns the message recorded by the most recent failure.
func (s *Sequencer) LastError() string { return s.lastError }

// FailedStep returns the step that was active when the last failure occurred.
func (s *Sequencer) FailedStep() Step { return s.failedStep }

// Mount performs the one-time bootstrap: wait for the host-ready signal,
// resolve the platform identity, then run the initial identity check. The
// whole body is single-fire; repeated mount signals are no-ops.
func (s *Sequencer) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.mu.Unlock()

	if s.ready != nil {
		err := bridge.WaitReady(ctx, s.ready, s.grace, func() {
			s.notify("waiting for the host platform to become ready")
		})
		if err != nil {
			return err
		}
	}

	user, err := telegram.Resolve(s.sources)
	if err != nil {
		s.logger.Warn("no platform identity", slog.Any("error", err))
		s.setStep(StepUnsupportedEnv)
		return nil
	}
	s.session.User = user
	s.session.InitData = telegram.Token(s.sources)

	return s.CheckIdentity(ctx)
}

// CheckIdentity runs the automatic identity verification call. Mount invokes
// it once; it is also the re-entry point when the user retries a failure at
// this step.
func (s *Sequencer) CheckIdentity(ctx context.Context) error {
	s.setStep(StepCheckingIdentity)

	_, err := s.client.Send(ctx, pathIdentityCheck, identityCheckRequest{
		TelegramID:   s.session.User.ID,
		FirstName:    s.session.User.FirstName,
		LastName:     s.session.User.LastName,
		Username:     s.session.User.Username,
		LanguageCode: s.session.User.LanguageCode,
	})
	if err != nil {
		s.fail(StepCheckingIdentity, err)
		return err
	}

	s.setStep(StepIdentityConfirmed)
	return nil
}

// Continue acknowledges the confirmed identity and opens the phone form.
func (s *Sequencer) Continue() error {
	if s.step != StepIdentityConfirmed {
		return fmt.Errorf("continue is not available at step %s", s.step)
	}
	s.setStep(StepAwaitingPhone)
	return nil
}

// SubmitPhone runs the three-call phone step: share-contact, device session
// start, device/SIM verification. The calls run strictly in sequence; the
// first failure aborts the rest and anchors the failure to awaiting-phone.
func (s *Sequencer) SubmitPhone(ctx context.Context, phone string) error {
	if s.step != StepAwaitingPhone {
		return fmt.Errorf("phone submission is not available at step %s", s.step)
	}
	if err := validatePhone(phone); err != nil {
		s.notify(err.Error())
		return err
	}

	s.session.Phone = phone
	s.setStep(StepSubmittingRegistration)

	if _, err := s.client.Send(ctx, pathShareContact, shareContactRequest{
		TelegramID:  s.session.User.ID,
		PhoneNumber: s.session.Phone,
	}); err != nil {
		s.fail(StepAwaitingPhone, err)
		return err
	}

	body, err := s.client.Send(ctx, pathDeviceSession, deviceSessionRequest{
		TelegramID:  strconv.FormatInt(s.session.User.ID, 10),
		PhoneNumber: s.session.Phone,
	})
	if err != nil {
		s.fail(StepAwaitingPhone, err)
		return err
	}
	var sessionResp deviceSessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil || sessionResp.SessionID == "" {
		err = errors.New("device session response missing session_id")
		s.fail(StepAwaitingPhone, err)
		return err
	}
	// Cached before the verify call below references it by value.
	s.session.SessionID = sessionResp.SessionID

	s.session.Device = s.collector.Collect(ctx)
	if _, err := s.client.Send(ctx, pathDeviceVerify, deviceVerifyRequest{
		TelegramID: strconv.FormatInt(s.session.User.ID, 10),
		SessionID:  s.session.SessionID,
		Record:     s.session.Device,
	}); err != nil {
		s.fail(StepAwaitingPhone, err)
		return err
	}

	s.setStep(StepAwaitingCode)
	return nil
}

// SubmitCode verifies the one-time code.
func (s *Sequencer) SubmitCode(ctx context.Context, code string) error {
	if s.step != StepAwaitingCode {
		return fmt.Errorf("code submission is not available at step %s", s.step)
	}
	if err := validateCode(code); err != nil {
		s.notify(err.Error())
		return err
	}

	s.session.Code = code
	s.setStep(StepVerifyingCode)

	if _, err := s.client.Send(ctx, pathVerifyCode, codeVerifyRequest{
		TelegramID: s.session.User.ID,
		SessionID:  s.session.SessionID,
		Code:       s.session.Code,
	}); err != nil {
		s.fail(StepAwaitingCode, err)
		return err
	}

	s.setStep(StepAwaitingAccount)
	return nil
}

// ResendCode asks the backend to send a fresh code. It is only offered while
// awaiting a code, never changes the step on success, and reports failure to
// the user without entering the failed step.
func (s *Sequencer) ResendCode(ctx context.Context) error {
	if s.step != StepAwaitingCode {
		return fmt.Errorf("resend is not available at step %s", s.step)
	}

	if _, err := s.client.Send(ctx, pathResendCode, resendCodeRequest{
		TelegramID: s.session.User.ID,
		SessionID:  s.session.SessionID,
	}); err != nil {
		s.notify(err.Error())
		return err
	}

	s.notify("a new code has been sent")
	return nil
}

// SubmitAccount runs the two-call account step: customer verification, then
// product validation with the identifiers the first call produced.
func (s *Sequencer) SubmitAccount(ctx context.Context, account string) error {
	if s.step != StepAwaitingAccount {
		return fmt.Errorf("account submission is not available at step %s", s.step)
	}
	if err := validateAccountNumber(account); err != nil {
		s.notify(err.Error())
		return err
	}

	s.session.AccountNumber = account
	s.setStep(StepLinkingAccount)

	body, err := s.client.Send(ctx, pathVerifyCustomer, customerVerifyRequest{
		TelegramID:    strconv.FormatInt(s.session.User.ID, 10),
		AccountNumber: s.session.AccountNumber,
	})
	if err != nil {
		s.fail(StepAwaitingAccount, err)
		return err
	}
	var customerResp customerVerifyResponse
	if err := json.Unmarshal(body, &customerResp); err != nil || customerResp.CustomerID == "" {
		err = errors.New("customer verification response missing customer_id")
		s.fail(StepAwaitingAccount, err)
		return err
	}
	s.session.CustomerID = customerResp.CustomerID
	s.session.ProductCode = customerResp.ProductCode

	if _, err := s.client.Send(ctx, pathValidateProduct, productValidateRequest{
		CustomerID:  s.session.CustomerID,
		ProductCode: s.session.ProductCode,
	}); err != nil {
		s.fail(StepAwaitingAccount, err)
		return err
	}

	s.setStep(StepAwaitingPIN)
	return nil
}

// SubmitPIN finalizes the registration.
func (s *Sequencer) SubmitPIN(ctx context.Context, pin string) error {
	if s.step != StepAwaitingPIN {
		return fmt.Errorf("PIN submission is not available at step %s", s.step)
	}
	if err := validatePIN(pin); err != nil {
		s.notify(err.Error())
		return err
	}

	s.session.PIN = pin
	s.setStep(StepFinalizing)

	if _, err := s.client.Send(ctx, pathComplete, completeRequest{
		TelegramID: strconv.FormatInt(s.session.User.ID, 10),
		CustomerID: s.session.CustomerID,
		SessionID:  s.session.SessionID,
		PIN:        s.session.PIN,
	}); err != nil {
		s.fail(StepAwaitingPIN, err)
		return err
	}

	s.setStep(StepCompleted)
	return nil
}

// Retry re-enters the exact step recorded at failure time.
func (s *Sequencer) Retry() error {
	if s.step != StepFailed {
		return fmt.Errorf("retry is not available at step %s", s.step)
	}
	s.setStep(s.failedStep)
	return nil
}

// Back enters the step logically preceding the remembered one.
func (s *Sequencer) Back() error {
	if s.step != StepFailed {
		return fmt.Errorf("back is not available at step %s", s.step)
	}
	prev, ok := previousStep[s.failedStep]
	if !ok {
		prev = s.failedStep
	}
	s.setStep(prev)
	return nil
}

// Restart discards the session and re-arms the mount guard.
func (s *Sequencer) Restart() {
	s.mu.Lock()
	s.mounted = false
	s.mu.Unlock()

	s.session = Session{}
	s.failedStep = StepInitializing
	s.lastError = ""
	s.setStep(StepInitializing)
}

func (s *Sequencer) setStep(step Step) {
	s.step = step
	s.logger.Info("step changed", slog.String("step", step.String()))
	if s.presenter != nil {
		s.presenter.StepChanged(step)
	}
}

func (s *Sequencer) fail(anchor Step, err error) {
	s.lastError = err.Error()
	s.failedStep = anchor
	s.logger.Warn("step failed",
		slog.String("step", anchor.String()),
		slog.String("error", s.lastError),
	)
	s.setStep(StepFailed)
}

func (s *Sequencer) notify(message string) {
	if s.presenter != nil {
		s.presenter.Notify(message)
	}
}
