package variables

import "strings"

// Links builds the static deep-link URLs exposed as template variables.
type Links struct {
	// BaseURL is the portal root, e.g. "https://app.example.com".
	BaseURL string
}

func (l Links) Booking() string {
	return l.join("/book")
}

func (l Links) Review() string {
	return l.join("/review")
}

func (l Links) Payment(invoiceID string) string {
	if invoiceID == "" {
		return ""
	}

	return l.join("/pay/" + invoiceID)
}

func (l Links) join(path string) string {
	if l.BaseURL == "" {
		return ""
	}

	return strings.TrimSuffix(l.BaseURL, "/") + path
}
