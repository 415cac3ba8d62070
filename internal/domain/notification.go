package domain

// Notification is a message addressed to a person's contact channel.
type Notification struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
