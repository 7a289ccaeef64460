package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sango-bank/sango_onboard/internal/config"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	Cache  *redis.Client
	Logger *slog.Logger
}

// ErrorHandler renders every handler error as the wire-contract error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}
	return c.Status(code).JSON(fiber.Map{"message": err.Error()})
}

// NewApp builds the Fiber application with the sandbox error handler.
func NewApp(cfg config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: ErrorHandler,
	})
}

// Setup configures middlewares and all onboarding routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(RequestID())
	app.Use(Audit(d.Logger))

	codes := NewCodeStore(d.Cache, d.Cfg.OTPTTL)
	sessions := NewSessionStore()
	directory := NewDirectory()
	registry := NewRegistry()
	sender := NewLoggerSender(d.Logger)

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1/onboarding")
	registerOnboardingRoutes(api, d, codes, sessions, directory, registry, sender)

	return nil
}

func registerOnboardingRoutes(r fiber.Router, d Deps, codes *CodeStore, sessions *SessionStore, directory *Directory, registry *Registry, sender Sender) {
	r.Post("/identity/check", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID   int64  `json:"telegram_id"`
			FirstName    string `json:"first_name"`
			LastName     string `json:"last_name"`
			Username     string `json:"username"`
			LanguageCode string `json:"language_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.TelegramID <= 0 {
			return fiber.NewError(http.StatusBadRequest, "unknown telegram user")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/contact/share", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID  int64  `json:"telegram_id"`
			PhoneNumber string `json:"phone_number"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.TelegramID <= 0 || req.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "telegram_id and phone_number are required")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/device/session", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID  string `json:"telegram_id"`
			PhoneNumber string `json:"phone_number"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if req.TelegramID == "" || req.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "telegram_id and phone_number are required")
		}

		session := DeviceSession{
			ID:         uuid.NewString(),
			TelegramID: req.TelegramID,
			Phone:      req.PhoneNumber,
		}
		sessions.Create(session)

		code, err := codes.Issue(c.UserContext(), session.ID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "could not issue verification code")
		}
		if err := sender.Send(c.UserContext(), req.PhoneNumber, code); err != nil {
			d.Logger.Warn("sms delivery failed", slog.String("session_id", session.ID), slog.Any("error", err))
		}

		return c.JSON(fiber.Map{"session_id": session.ID})
	})

	r.Post("/device/verify", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID  string `json:"telegram_id"`
			SessionID   string `json:"session_id"`
			DeviceID    string `json:"device_id"`
			Fingerprint string `json:"fingerprint"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		session, err := sessions.Get(req.SessionID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		if session.TelegramID != req.TelegramID {
			return fiber.NewError(http.StatusForbidden, "session does not belong to this user")
		}
		if req.DeviceID == "" || req.Fingerprint == "" {
			return fiber.NewError(http.StatusUnprocessableEntity, "device could not be verified")
		}
		if err := sessions.MarkVerified(req.SessionID); err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}

		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/otp/verify", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID int64  `json:"telegram_id"`
			SessionID  string `json:"session_id"`
			Code       string `json:"code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if _, err := sessions.Get(req.SessionID); err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		if err := codes.Verify(c.UserContext(), req.SessionID, req.Code); err != nil {
			if errors.Is(err, ErrCodeMismatch) {
				return fiber.NewError(http.StatusBadRequest, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, "code verification unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/otp/resend", ResendRateLimit(d.Cache, 3), func(c *fiber.Ctx) error {
		var req struct {
			TelegramID int64  `json:"telegram_id"`
			SessionID  string `json:"session_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		session, err := sessions.Get(req.SessionID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		code, err := codes.Issue(c.UserContext(), session.ID)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "could not issue verification code")
		}
		if err := sender.Send(c.UserContext(), session.Phone, code); err != nil {
			d.Logger.Warn("sms delivery failed", slog.String("session_id", session.ID), slog.Any("error", err))
		}

		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/customer/verify", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID    string `json:"telegram_id"`
			AccountNumber string `json:"account_number"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		rec, err := directory.Lookup(req.AccountNumber)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return c.JSON(fiber.Map{
			"customer_id":  rec.CustomerID,
			"product_code": rec.ProductCode,
		})
	})

	r.Post("/product/validate", func(c *fiber.Ctx) error {
		var req struct {
			CustomerID  string `json:"customer_id"`
			ProductCode string `json:"product_code"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if !directory.ValidatePair(req.CustomerID, req.ProductCode) {
			return fiber.NewError(http.StatusUnprocessableEntity, "product is not eligible for miniapp onboarding")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.Post("/complete", func(c *fiber.Ctx) error {
		var req struct {
			TelegramID string `json:"telegram_id"`
			CustomerID string `json:"customer_id"`
			SessionID  string `json:"session_id"`
			PIN        string `json:"pin"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}

		session, err := sessions.Get(req.SessionID)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		if !session.Verified {
			return fiber.NewError(http.StatusConflict, "device has not been verified for this session")
		}
		if len(req.PIN) != 4 {
			return fiber.NewError(http.StatusBadRequest, "pin must be 4 digits")
		}

		reg, err := registry.Complete(c.UserContext(), req.TelegramID, req.CustomerID, req.PIN)
		if err != nil {
			if errors.Is(err, errAlreadyRegistered) {
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		d.Logger.Info("registration completed",
			slog.String("telegram_id", reg.TelegramID),
			slog.String("customer_id", reg.CustomerID),
		)
		return c.JSON(fiber.Map{"status": "registered"})
	})
}

// RegisterHealthRoutes adds a liveness endpoint reporting Redis status.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		redisStatus := "ok"
		if d.Cache != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				redisStatus = err.Error()
			}
		} else {
			redisStatus = "not configured"
		}
		status := http.StatusOK
		if redisStatus != "ok" && redisStatus != "not configured" {
			status = http.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"redis": redisStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
