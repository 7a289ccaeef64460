package telegram

// User is the normalized mini-app identity record. Only ID is required;
// a source without a positive id is treated as absent.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// Sources carries the three candidate identity carriers in resolution order:
// the launch parameters handed to the process, the host-provided WebApp
// object, and the page URL whose fragment may embed the same data.
type Sources struct {
	LaunchParams string
	HostObject   string
	PageURL      string
}
