package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const unknownLocation = "unknown"

// Record is the fixed-shape device attribute set attached to the device/SIM
// verification call.
type Record struct {
	DeviceID     string `json:"device_id"`
	Country      string `json:"country"`
	City         string `json:"city"`
	UserAgent    string `json:"user_agent"`
	ScreenWidth  int    `json:"screen_width"`
	ScreenHeight int    `json:"screen_height"`
	Timezone     string `json:"timezone"`
	TouchSupport bool   `json:"touch_support"`
	Fingerprint  string `json:"fingerprint"`
}

// Environment supplies the locally observable device attributes. The terminal
// front end fills this from its own process environment.
type Environment struct {
	DeviceID     string
	UserAgent    string
	ScreenWidth  int
	ScreenHeight int
	Timezone     string
	TouchSupport bool
}

// Collector assembles a Record, optionally enriching it with a coarse
// geolocation lookup. The lookup runs under its own short timeout and is
// strictly best-effort: collection never fails because of it.
type Collector struct {
	env        Environment
	geoURL     string
	geoTimeout time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New builds a Collector. geoURL may be empty to skip enrichment entirely.
func New(env Environment, geoURL string, geoTimeout time.Duration, logger *slog.Logger) *Collector {
	if env.DeviceID == "" {
		env.DeviceID = uuid.NewString()
	}
	if env.Timezone == "" {
		env.Timezone = time.Now().Location().String()
	}
	if geoTimeout <= 0 {
		geoTimeout = 2 * time.Second
	}
	return &Collector{
		env:        env,
		geoURL:     geoURL,
		geoTimeout: geoTimeout,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
}

// WithHTTPClient substitutes the lookup transport. Used in tests.
func (c *Collector) WithHTTPClient(hc *http.Client) *Collector {
	c.httpClient = hc
	return c
}

// Collect produces the full record. Geolocation fields default to "unknown"
// when the lookup is disabled, times out, or fails.
func (c *Collector) Collect(ctx context.Context) Record {
	rec := Record{
		DeviceID:     c.env.DeviceID,
		Country:      unknownLocation,
		City:         unknownLocation,
		UserAgent:    c.env.UserAgent,
		ScreenWidth:  c.env.ScreenWidth,
		ScreenHeight: c.env.ScreenHeight,
		Timezone:     c.env.Timezone,
		TouchSupport: c.env.TouchSupport,
	}

	if c.geoURL != "" {
		if country, city, err := c.lookupGeo(ctx); err != nil {
			c.logger.Warn("geo lookup failed, using defaults", slog.Any("error", err))
		} else {
			if country != "" {
				rec.Country = country
			}
			if city != "" {
				rec.City = city
			}
		}
	}

	rec.Fingerprint = derive(rec)
	return rec
}

func (c *Collector) lookupGeo(ctx context.Context) (country, city string, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.geoTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geoURL, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("geo lookup status %d", resp.StatusCode)
	}

	var body struct {
		Country string `json:"country"`
		City    string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", "", err
	}
	return body.Country, body.City, nil
}

// derive hashes the attribute values into the stable fingerprint string.
func derive(rec Record) string {
	joined := strings.Join([]string{
		rec.DeviceID,
		rec.Country,
		rec.City,
		rec.UserAgent,
		fmt.Sprintf("%dx%d", rec.ScreenWidth, rec.ScreenHeight),
		rec.Timezone,
		fmt.Sprintf("%t", rec.TouchSupport),
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
