package wizard

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/sango-bank/sango_onboard/internal/backend"
	"github.com/sango-bank/sango_onboard/internal/fingerprint"
	"github.com/sango-bank/sango_onboard/internal/logging"
	"github.com/sango-bank/sango_onboard/internal/telegram"
)

type fakeClient struct {
	calls     []string
	payloads  []any
	responses map[string]string
	errs      map[string]error
}

func (f *fakeClient) Send(_ context.Context, path string, payload any) ([]byte, error) {
	f.calls = append(f.calls, path)
	f.payloads = append(f.payloads, payload)
	if err := f.errs[path]; err != nil {
		return nil, err
	}
	if body, ok := f.responses[path]; ok {
		return []byte(body), nil
	}
	return []byte(`{"status":"ok"}`), nil
}

type fakeCollector struct {
	record fingerprint.Record
}

func (f *fakeCollector) Collect(_ context.Context) fingerprint.Record {
	return f.record
}

type recordingPresenter struct {
	steps    []Step
	messages []string
}

func (p *recordingPresenter) StepChanged(step Step) { p.steps = append(p.steps, step) }
func (p *recordingPresenter) Notify(msg string)     { p.messages = append(p.messages, msg) }

func testSources() telegram.Sources {
	return telegram.Sources{
		LaunchParams: "user=" + url.QueryEscape(`{"id":42,"first_name":"Aline"}`) + "&auth_date=1&hash=h",
	}
}

func readyChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func newTestSequencer(client *fakeClient) (*Sequencer, *recordingPresenter) {
	if client.responses == nil {
		client.responses = map[string]string{}
	}
	client.responses[pathDeviceSession] = `{"session_id":"sess-1"}`
	client.responses[pathVerifyCustomer] = `{"customer_id":"cus-9","product_code":"SAV01"}`

	presenter := &recordingPresenter{}
	seq := New(Config{
		Client:    client,
		Collector: &fakeCollector{record: fingerprint.Record{DeviceID: "dev-1", Fingerprint: "fp"}},
		Presenter: presenter,
		Logger:    logging.Discard(),
		Sources:   testSources(),
		Ready:     readyChan(),
		Grace:     10 * time.Millisecond,
	})
	return seq, presenter
}

func runHappyPathToStep(t *testing.T, seq *Sequencer, target Step) {
	t.Helper()
	ctx := context.Background()

	if err := seq.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if target == StepIdentityConfirmed {
		return
	}
	if err := seq.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if target == StepAwaitingPhone {
		return
	}
	if err := seq.SubmitPhone(ctx, "+10000000"); err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	if target == StepAwaitingCode {
		return
	}
	if err := seq.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if target == StepAwaitingAccount {
		return
	}
	if err := seq.SubmitAccount(ctx, "1000111"); err != nil {
		t.Fatalf("submit account: %v", err)
	}
	if target == StepAwaitingPIN {
		return
	}
	if err := seq.SubmitPIN(ctx, "1234"); err != nil {
		t.Fatalf("submit pin: %v", err)
	}
}

func TestHappyPathCallOrder(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepCompleted)

	if seq.Step() != StepCompleted {
		t.Fatalf("expected completed, got %s", seq.Step())
	}

	want := []string{
		pathIdentityCheck,
		pathShareContact,
		pathDeviceSession,
		pathDeviceVerify,
		pathVerifyCode,
		pathVerifyCustomer,
		pathValidateProduct,
		pathComplete,
	}
	if len(client.calls) != len(want) {
		t.Fatalf("expected %d calls, got %d: %v", len(want), len(client.calls), client.calls)
	}
	for i, path := range want {
		if client.calls[i] != path {
			t.Fatalf("call %d: expected %s, got %s", i, path, client.calls[i])
		}
	}
}

func TestHappyPathThreadsSessionData(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepCompleted)

	session := seq.Session()
	if session.SessionID != "sess-1" {
		t.Fatalf("session id not cached: %q", session.SessionID)
	}
	if session.CustomerID != "cus-9" || session.ProductCode != "SAV01" {
		t.Fatalf("customer data not cached: %+v", session)
	}

	// The device verify call must reference the cached session id by value.
	verify := client.payloads[3].(deviceVerifyRequest)
	if verify.SessionID != "sess-1" {
		t.Fatalf("device verify used session id %q", verify.SessionID)
	}
	if verify.TelegramID != "42" {
		t.Fatalf("device verify must carry a string telegram id, got %q", verify.TelegramID)
	}
	if verify.DeviceID != "dev-1" {
		t.Fatalf("fingerprint record not attached: %+v", verify)
	}

	// Product validation reuses the identifiers customer verification produced.
	validate := client.payloads[6].(productValidateRequest)
	if validate.CustomerID != "cus-9" || validate.ProductCode != "SAV01" {
		t.Fatalf("product validation payload: %+v", validate)
	}

	// The share-contact call carries a numeric telegram id.
	share := client.payloads[1].(shareContactRequest)
	if share.TelegramID != 42 || share.PhoneNumber != "+10000000" {
		t.Fatalf("share contact payload: %+v", share)
	}

	finalize := client.payloads[7].(completeRequest)
	if finalize.TelegramID != "42" || finalize.CustomerID != "cus-9" || finalize.PIN != "1234" {
		t.Fatalf("finalize payload: %+v", finalize)
	}
}

func TestDeviceVerifyFailureAbortsPhoneStep(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			pathDeviceVerify: &backend.RequestError{
				StatusCode:    403,
				StatusText:    "403 Forbidden",
				ServerMessage: "SIM change detected",
			},
		},
	}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingPhone)
	err := seq.SubmitPhone(context.Background(), "+10000000")
	if err == nil {
		t.Fatal("expected failure")
	}

	if seq.Step() != StepFailed {
		t.Fatalf("expected failed, got %s", seq.Step())
	}
	if seq.FailedStep() != StepAwaitingPhone {
		t.Fatalf("expected remembered step awaiting-phone, got %s", seq.FailedStep())
	}
	if seq.LastError() != "SIM change detected" {
		t.Fatalf("expected server message, got %q", seq.LastError())
	}

	for _, path := range client.calls {
		if path == pathVerifyCode {
			t.Fatal("code verification must not run after a device verify failure")
		}
	}
}

func TestFailureFallsBackToStatusText(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			pathShareContact: &backend.RequestError{StatusCode: 502, StatusText: "502 Bad Gateway"},
		},
	}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingPhone)
	if err := seq.SubmitPhone(context.Background(), "+10000000"); err == nil {
		t.Fatal("expected failure")
	}
	if seq.LastError() != "502 Bad Gateway" {
		t.Fatalf("expected status text, got %q", seq.LastError())
	}
}

func TestRetryReentersRememberedStep(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			pathVerifyCode: &backend.RequestError{StatusCode: 400, StatusText: "400 Bad Request", ServerMessage: "wrong code"},
		},
	}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingCode)
	if err := seq.SubmitCode(context.Background(), "000000"); err == nil {
		t.Fatal("expected failure")
	}
	if seq.Step() != StepFailed {
		t.Fatalf("expected failed, got %s", seq.Step())
	}

	if err := seq.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if seq.Step() != StepAwaitingCode {
		t.Fatalf("retry must re-enter awaiting-code, got %s", seq.Step())
	}

	// The step is live again: a corrected code goes through.
	delete(client.errs, pathVerifyCode)
	if err := seq.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit corrected code: %v", err)
	}
	if seq.Step() != StepAwaitingAccount {
		t.Fatalf("expected awaiting-account, got %s", seq.Step())
	}
}

func TestBackEntersPrecedingStep(t *testing.T) {
	cases := []struct {
		name     string
		failPath string
		drive    Step
		submit   func(*Sequencer) error
		wantBack Step
	}{
		{
			name:     "account failure goes back to phone",
			failPath: pathVerifyCustomer,
			drive:    StepAwaitingAccount,
			submit: func(seq *Sequencer) error {
				return seq.SubmitAccount(context.Background(), "1000111")
			},
			wantBack: StepAwaitingPhone,
		},
		{
			name:     "phone failure goes back to identity confirmation",
			failPath: pathShareContact,
			drive:    StepAwaitingPhone,
			submit: func(seq *Sequencer) error {
				return seq.SubmitPhone(context.Background(), "+10000000")
			},
			wantBack: StepIdentityConfirmed,
		},
		{
			name:     "pin failure goes back to account",
			failPath: pathComplete,
			drive:    StepAwaitingPIN,
			submit: func(seq *Sequencer) error {
				return seq.SubmitPIN(context.Background(), "1234")
			},
			wantBack: StepAwaitingAccount,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{
				errs: map[string]error{
					tc.failPath: &backend.RequestError{StatusCode: 500, StatusText: "500 Internal Server Error"},
				},
			}
			seq, _ := newTestSequencer(client)

			runHappyPathToStep(t, seq, tc.drive)
			if err := tc.submit(seq); err == nil {
				t.Fatal("expected failure")
			}
			if err := seq.Back(); err != nil {
				t.Fatalf("back: %v", err)
			}
			if seq.Step() != tc.wantBack {
				t.Fatalf("expected %s, got %s", tc.wantBack, seq.Step())
			}
		})
	}
}

func TestMountFiresIdentityCheckOnce(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)
	ctx := context.Background()

	if err := seq.Mount(ctx); err != nil {
		t.Fatalf("first mount: %v", err)
	}
	if err := seq.Mount(ctx); err != nil {
		t.Fatalf("second mount: %v", err)
	}

	checks := 0
	for _, path := range client.calls {
		if path == pathIdentityCheck {
			checks++
		}
	}
	if checks != 1 {
		t.Fatalf("expected exactly one identity check, observed %d", checks)
	}
}

func TestMountWithoutIdentity(t *testing.T) {
	client := &fakeClient{}
	presenter := &recordingPresenter{}
	seq := New(Config{
		Client:    client,
		Collector: &fakeCollector{},
		Presenter: presenter,
		Logger:    logging.Discard(),
		Sources:   telegram.Sources{LaunchParams: "hash=only"},
		Ready:     readyChan(),
		Grace:     10 * time.Millisecond,
	})

	if err := seq.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if seq.Step() != StepUnsupportedEnv {
		t.Fatalf("expected unsupported-environment, got %s", seq.Step())
	}
	if len(client.calls) != 0 {
		t.Fatalf("no backend call may run without an identity, got %v", client.calls)
	}
}

func TestValidationRejectionsKeepStepState(t *testing.T) {
	client := &fakeClient{}
	seq, presenter := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingPhone)
	callsBefore := len(client.calls)

	if err := seq.SubmitPhone(context.Background(), "+123"); err == nil {
		t.Fatal("expected validation error for short phone")
	}
	if seq.Step() != StepAwaitingPhone {
		t.Fatalf("validation must not change step, got %s", seq.Step())
	}
	if len(client.calls) != callsBefore {
		t.Fatal("validation rejection must not send a request")
	}
	if len(presenter.messages) == 0 {
		t.Fatal("expected the rejection to be surfaced to the user")
	}

	if err := seq.SubmitPhone(context.Background(), "+10000000"); err != nil {
		t.Fatalf("submit phone: %v", err)
	}
	if err := seq.SubmitCode(context.Background(), "12"); err == nil {
		t.Fatal("expected validation error for short code")
	}
	if seq.Step() != StepAwaitingCode {
		t.Fatalf("validation must not change step, got %s", seq.Step())
	}

	if err := seq.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if err := seq.SubmitAccount(context.Background(), "1000111"); err != nil {
		t.Fatalf("submit account: %v", err)
	}
	if err := seq.SubmitPIN(context.Background(), "12345"); err == nil {
		t.Fatal("expected validation error for 5-digit PIN")
	}
	if seq.Step() != StepAwaitingPIN {
		t.Fatalf("validation must not change step, got %s", seq.Step())
	}
}

func TestResendCodeKeepsStep(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingCode)
	if err := seq.ResendCode(context.Background()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if seq.Step() != StepAwaitingCode {
		t.Fatalf("resend must not change step, got %s", seq.Step())
	}
	if client.calls[len(client.calls)-1] != pathResendCode {
		t.Fatalf("expected resend call, got %v", client.calls)
	}
}

func TestResendCodeFailureDoesNotEnterFailedStep(t *testing.T) {
	client := &fakeClient{}
	seq, presenter := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingCode)

	client.errs = map[string]error{
		pathResendCode: &backend.RequestError{StatusCode: 429, StatusText: "429 Too Many Requests", ServerMessage: "slow down"},
	}
	if err := seq.ResendCode(context.Background()); err == nil {
		t.Fatal("expected resend failure")
	}
	if seq.Step() != StepAwaitingCode {
		t.Fatalf("resend failure must keep awaiting-code, got %s", seq.Step())
	}

	found := false
	for _, msg := range presenter.messages {
		if msg == "slow down" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the resend error surfaced to the user, got %v", presenter.messages)
	}
}

func TestResendCodeUnavailableElsewhere(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingPhone)
	if err := seq.ResendCode(context.Background()); err == nil {
		t.Fatal("resend must only be offered while awaiting a code")
	}
}

func TestRestartDiscardsSession(t *testing.T) {
	client := &fakeClient{}
	seq, _ := newTestSequencer(client)

	runHappyPathToStep(t, seq, StepAwaitingCode)
	if seq.Session().Phone == "" {
		t.Fatal("precondition: session should hold the phone")
	}

	seq.Restart()
	if seq.Step() != StepInitializing {
		t.Fatalf("expected initializing after restart, got %s", seq.Step())
	}
	if seq.Session().Phone != "" || seq.Session().SessionID != "" {
		t.Fatalf("restart must discard the session: %+v", seq.Session())
	}

	// The mount guard is re-armed: mounting again runs a fresh identity check.
	before := len(client.calls)
	if err := seq.Mount(context.Background()); err != nil {
		t.Fatalf("mount after restart: %v", err)
	}
	if len(client.calls) != before+1 {
		t.Fatal("expected a fresh identity check after restart")
	}
}

func TestMountWaitsForHostReady(t *testing.T) {
	client := &fakeClient{}
	presenter := &recordingPresenter{}
	ready := make(chan struct{})
	seq := New(Config{
		Client:    client,
		Collector: &fakeCollector{},
		Presenter: presenter,
		Logger:    logging.Discard(),
		Sources:   testSources(),
		Ready:     ready,
		Grace:     5 * time.Millisecond,
	})

	go func() {
		time.Sleep(30 * time.Millisecond)
		close(ready)
	}()

	if err := seq.Mount(context.Background()); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if seq.Step() != StepIdentityConfirmed {
		t.Fatalf("expected identity-confirmed after late host ready, got %s", seq.Step())
	}

	waited := false
	for _, msg := range presenter.messages {
		if msg == "waiting for the host platform to become ready" {
			waited = true
		}
	}
	if !waited {
		t.Fatal("expected a wait-screen notification after the grace period")
	}
}
