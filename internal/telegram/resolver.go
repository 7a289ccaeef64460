package telegram

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// ErrNoIdentity reports that none of the candidate sources produced a usable
// user id. The wizard maps this to its unsupported-environment screen.
var ErrNoIdentity = errors.New("no telegram identity available")

const fragmentParam = "tgWebAppData"

// Resolve walks the candidate sources in fixed order and returns the first
// usable identity. Malformed data in a source is treated the same as an
// absent source: resolution falls through silently.
func Resolve(src Sources) (User, error) {
	if user, ok := fromInitData(src.LaunchParams); ok {
		return user, nil
	}
	if user, ok := fromHostObject(src.HostObject); ok {
		return user, nil
	}
	if user, ok := fromInitData(fragmentData(src.PageURL)); ok {
		return user, nil
	}
	return User{}, ErrNoIdentity
}

// Token extracts the raw init-data string used for request authentication,
// following the same fallback order as Resolve. It is captured independently
// of whether an identity was found; an empty return means no token.
func Token(src Sources) string {
	if strings.TrimSpace(src.LaunchParams) != "" {
		return src.LaunchParams
	}
	if raw := hostObjectInitData(src.HostObject); raw != "" {
		return raw
	}
	return fragmentData(src.PageURL)
}

// fromInitData parses a tgWebAppData query string ("user=%7B...%7D&auth_date=...")
// and decodes the embedded user JSON.
func fromInitData(raw string) (User, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return User{}, false
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return User{}, false
	}
	encoded := values.Get("user")
	if encoded == "" {
		return User{}, false
	}
	var user User
	if err := json.Unmarshal([]byte(encoded), &user); err != nil {
		return User{}, false
	}
	if user.ID <= 0 {
		return User{}, false
	}
	return user, true
}

// hostObject mirrors the shape the wrapper script dumps from the WebApp
// global. Some wrapper builds emit camelCase keys, so both spellings are
// accepted and normalized.
type hostObject struct {
	InitData       string `json:"initData"`
	InitDataUnsafe struct {
		User hostUser `json:"user"`
	} `json:"initDataUnsafe"`
}

type hostUser struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	FirstNameCamel string `json:"firstName"`
	LastName       string `json:"last_name"`
	LastNameCamel  string `json:"lastName"`
	Username       string `json:"username"`
	LanguageCode   string `json:"language_code"`
	LangCodeCamel  string `json:"languageCode"`
	IsPremium      bool   `json:"is_premium"`
	IsPremiumCamel bool   `json:"isPremium"`
}

func fromHostObject(raw string) (User, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return User{}, false
	}
	var obj hostObject
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return User{}, false
	}
	hu := obj.InitDataUnsafe.User
	if hu.ID <= 0 {
		return User{}, false
	}
	return User{
		ID:           hu.ID,
		FirstName:    coalesce(hu.FirstName, hu.FirstNameCamel),
		LastName:     coalesce(hu.LastName, hu.LastNameCamel),
		Username:     hu.Username,
		LanguageCode: coalesce(hu.LanguageCode, hu.LangCodeCamel),
		IsPremium:    hu.IsPremium || hu.IsPremiumCamel,
	}, true
}

func hostObjectInitData(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	var obj hostObject
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return ""
	}
	return obj.InitData
}

// fragmentData pulls the tgWebAppData parameter out of the page URL fragment
// and returns it decoded to the same query-string form as launch parameters.
func fragmentData(pageURL string) string {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return ""
	}
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Fragment == "" {
		return ""
	}
	// Parse the escaped form so the embedded query string is decoded exactly
	// once, by ParseQuery, not twice.
	values, err := url.ParseQuery(parsed.EscapedFragment())
	if err != nil {
		return ""
	}
	return values.Get(fragmentParam)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
