package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sango-bank/sango_onboard/internal/backend"
	"github.com/sango-bank/sango_onboard/internal/config"
	"github.com/sango-bank/sango_onboard/internal/fingerprint"
	"github.com/sango-bank/sango_onboard/internal/logging"
	"github.com/sango-bank/sango_onboard/internal/telegram"
	"github.com/sango-bank/sango_onboard/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	sources := telegram.Sources{
		LaunchParams: cfg.WebAppData,
		HostObject:   cfg.WebAppHostObject,
		PageURL:      cfg.WebAppURL,
	}

	client := backend.New(cfg.BackendURL, cfg.Channel, cfg.ClientVersion,
		telegram.Token(sources), logger)

	collector := fingerprint.New(fingerprint.Environment{
		DeviceID:     os.Getenv("DEVICE_ID"),
		UserAgent:    "sango-onboard-wizard/" + cfg.ClientVersion,
		ScreenWidth:  envInt("SCREEN_WIDTH", 390),
		ScreenHeight: envInt("SCREEN_HEIGHT", 844),
		TouchSupport: os.Getenv("TOUCH_SUPPORT") == "true",
	}, cfg.GeoLookupURL, cfg.GeoTimeout, logger)

	// The terminal host is ready as soon as the process runs.
	ready := make(chan struct{})
	close(ready)

	term := &termPresenter{out: os.Stdout}
	seq := wizard.New(wizard.Config{
		Client:    client,
		Collector: collector,
		Presenter: term,
		Logger:    logger,
		Sources:   sources,
		Ready:     ready,
		Grace:     cfg.HostReadyGrace,
	})

	ctx := context.Background()
	if err := seq.Mount(ctx); err != nil {
		// Request failures land in the failed step and stay recoverable
		// through the loop below.
		logger.Warn("mount", "error", err)
	}

	runLoop(ctx, seq, term)
}

// termPresenter renders steps as terminal prompts. It never touches the
// sequencer's session; it only reflects state changes.
type termPresenter struct {
	out *os.File
}

func (p *termPresenter) StepChanged(step wizard.Step) {
	fmt.Fprintf(p.out, "\n[%s]\n", step)
}

func (p *termPresenter) Notify(message string) {
	fmt.Fprintf(p.out, "! %s\n", message)
}

func runLoop(ctx context.Context, seq *wizard.Sequencer, term *termPresenter) {
	in := bufio.NewScanner(os.Stdin)

	for {
		switch seq.Step() {
		case wizard.StepCheckingIdentity:
			// Re-entered via retry; Mount drives the first pass itself.
			_ = seq.CheckIdentity(ctx)

		case wizard.StepIdentityConfirmed:
			prompt(term, in, "identity confirmed, press enter to continue")
			_ = seq.Continue()

		case wizard.StepAwaitingPhone:
			phone := prompt(term, in, "phone number")
			_ = seq.SubmitPhone(ctx, phone)

		case wizard.StepAwaitingCode:
			answer := prompt(term, in, "verification code (or 'resend')")
			if strings.EqualFold(answer, "resend") {
				_ = seq.ResendCode(ctx)
				continue
			}
			_ = seq.SubmitCode(ctx, answer)

		case wizard.StepAwaitingAccount:
			account := prompt(term, in, "account number")
			_ = seq.SubmitAccount(ctx, account)

		case wizard.StepAwaitingPIN:
			pin := prompt(term, in, "choose a 4-digit PIN")
			_ = seq.SubmitPIN(ctx, pin)

		case wizard.StepFailed:
			term.Notify(seq.LastError())
			answer := prompt(term, in, "'retry', 'back' or 'quit'")
			switch strings.ToLower(answer) {
			case "retry":
				_ = seq.Retry()
			case "back":
				_ = seq.Back()
			case "quit":
				return
			}

		case wizard.StepCompleted:
			term.Notify("registration completed, welcome aboard")
			return

		case wizard.StepUnsupportedEnv:
			term.Notify("this application must be opened from the messaging app")
			return

		default:
			return
		}
	}
}

func prompt(term *termPresenter, in *bufio.Scanner, label string) string {
	fmt.Fprintf(term.out, "%s> ", label)
	if !in.Scan() {
		return ""
	}
	return strings.TrimSpace(in.Text())
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
