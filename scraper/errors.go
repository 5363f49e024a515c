package scraper

import "fmt"

// ErrInvalidURL indicates a URL that can never be scraped: wrong scheme,
// missing host, or not a URL at all. It is never retried.
type ErrInvalidURL struct {
	URL    string
	Reason string
}

func (e ErrInvalidURL) Error() string {
	return fmt.Sprintf("invalid url %q: %s", e.URL, e.Reason)
}
