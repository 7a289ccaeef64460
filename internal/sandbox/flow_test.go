package sandbox

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sango-bank/sango_onboard/internal/backend"
	"github.com/sango-bank/sango_onboard/internal/fingerprint"
	"github.com/sango-bank/sango_onboard/internal/logging"
	"github.com/sango-bank/sango_onboard/internal/telegram"
	"github.com/sango-bank/sango_onboard/internal/wizard"
)

// appTransport routes the wizard's HTTP calls straight into the Fiber app,
// no listener involved.
type appTransport struct {
	app *fiber.App
}

func (t appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.app.Test(req, -1)
}

type silentPresenter struct{}

func (silentPresenter) StepChanged(wizard.Step) {}
func (silentPresenter) Notify(string)           {}

func TestWizardAgainstSandboxEndToEnd(t *testing.T) {
	app, mr, cleanup := setupTestApp(t)
	defer cleanup()

	logger := logging.Discard()
	client := backend.New("http://sandbox.local", "TELEGRAM_MINIAPP", "1.4.2",
		"user=raw&hash=h", logger,
		backend.WithHTTPClient(&http.Client{Transport: appTransport{app}}))

	collector := fingerprint.New(fingerprint.Environment{
		DeviceID:     "dev-e2e",
		UserAgent:    "sango-wizard-test",
		ScreenWidth:  390,
		ScreenHeight: 844,
		Timezone:     "Africa/Brazzaville",
	}, "", 0, logger)

	ready := make(chan struct{})
	close(ready)

	seq := wizard.New(wizard.Config{
		Client:    client,
		Collector: collector,
		Presenter: silentPresenter{},
		Logger:    logger,
		Sources: telegram.Sources{
			LaunchParams: "user=" + url.QueryEscape(`{"id":42,"first_name":"Aline"}`) + "&auth_date=1&hash=h",
		},
		Ready: ready,
		Grace: 10 * time.Millisecond,
	})

	ctx := context.Background()
	if err := seq.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := seq.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if err := seq.SubmitPhone(ctx, "+10000000"); err != nil {
		t.Fatalf("submit phone: %v", err)
	}

	sessionID := seq.Session().SessionID
	if sessionID == "" {
		t.Fatal("session id not cached from device session start")
	}
	code := storedCode(t, mr, sessionID)

	if err := seq.SubmitCode(ctx, code); err != nil {
		t.Fatalf("submit code: %v", err)
	}
	if err := seq.SubmitAccount(ctx, "1000111"); err != nil {
		t.Fatalf("submit account: %v", err)
	}
	if session := seq.Session(); session.CustomerID != "cus-1000111" || session.ProductCode != "SAV01" {
		t.Fatalf("customer data not threaded: %+v", session)
	}
	if err := seq.SubmitPIN(ctx, "1234"); err != nil {
		t.Fatalf("submit pin: %v", err)
	}

	if seq.Step() != wizard.StepCompleted {
		t.Fatalf("expected completed, got %s", seq.Step())
	}
}

func TestWizardSurfacesSandboxMessages(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	logger := logging.Discard()
	client := backend.New("http://sandbox.local", "TELEGRAM_MINIAPP", "1.4.2", "", logger,
		backend.WithHTTPClient(&http.Client{Transport: appTransport{app}}))

	collector := fingerprint.New(fingerprint.Environment{DeviceID: "dev-e2e"}, "", 0, logger)
	ready := make(chan struct{})
	close(ready)

	seq := wizard.New(wizard.Config{
		Client:    client,
		Collector: collector,
		Presenter: silentPresenter{},
		Logger:    logger,
		Sources: telegram.Sources{
			LaunchParams: "user=" + url.QueryEscape(`{"id":43,"first_name":"Didier"}`) + "&auth_date=1&hash=h",
		},
		Ready: ready,
		Grace: 10 * time.Millisecond,
	})

	ctx := context.Background()
	if err := seq.Mount(ctx); err != nil {
		t.Fatalf("mount: %v", err)
	}
	if err := seq.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if err := seq.SubmitPhone(ctx, "+10000001"); err != nil {
		t.Fatalf("submit phone: %v", err)
	}

	// Wrong code: the sandbox's message must reach the failure record.
	if err := seq.SubmitCode(ctx, "000000"); err == nil {
		t.Fatal("expected code rejection")
	}
	if seq.Step() != wizard.StepFailed {
		t.Fatalf("expected failed, got %s", seq.Step())
	}
	if seq.LastError() != "invalid or expired code" {
		t.Fatalf("expected sandbox message, got %q", seq.LastError())
	}
	if seq.FailedStep() != wizard.StepAwaitingCode {
		t.Fatalf("expected awaiting-code remembered, got %s", seq.FailedStep())
	}

	if err := seq.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if seq.Step() != wizard.StepAwaitingCode {
		t.Fatalf("retry must re-enter awaiting-code, got %s", seq.Step())
	}
}
