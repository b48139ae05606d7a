package smtp_client

// HeaderOverrides replaces the server list's default sender headers for a
// single send.
type HeaderOverrides struct {
	From      string   `json:"from"`
	Sender    string   `json:"sender"`
	ReplyTo   []string `json:"replyTo"`
	NoReplyTo bool     `json:"noReplyTo"`
}
