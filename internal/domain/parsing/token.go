package parsing

import "time"

// Token holds a user's data-source credentials registered with the parsing
// service. The client never interprets these values; it passes them through
// to the service's token endpoints.
type Token struct {
	ID        int64     `json:"id"`
	APIID     string    `json:"api_id"`
	APIHash   string    `json:"api_hash"`
	Phone     string    `json:"phone,omitempty"`
	BotToken  string    `json:"bot_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenInput is the payload for registering a new token.
type TokenInput struct {
	APIID    string `json:"api_id"`
	APIHash  string `json:"api_hash"`
	Phone    string `json:"phone,omitempty"`
	BotToken string `json:"bot_token,omitempty"`
}
