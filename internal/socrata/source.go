// Package socrata talks to the Socrata open-data API: it parses dataset
// page URLs into (domain, id) pairs, fetches dataset metadata, probes
// row counts, and opens the streamed CSV row export.
package socrata

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Dataset page URLs look like
// https://data.edmonton.ca/Urban-Planning-Economy/General-Building-Permits/24uj-dj8v
// where the last path element is the dataset id.
var idPattern = regexp.MustCompile(`^\w{4}-\w{4}$`)

// Source identifies one importable dataset on a Socrata domain.
type Source struct {
	Domain string
	ID     string
}

// ParseError reports a malformed dataset reference. It is surfaced
// synchronously to the caller before any import state is written.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

// ParseSourceURL extracts the domain and dataset id from a dataset page
// URL. Returns a *ParseError when the host is missing or the final path
// element is not a valid dataset id.
func ParseSourceURL(raw string) (Source, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return Source{}, &ParseError{Reason: "Missing domain"}
	}

	parts := strings.Split(u.Path, "/")
	candidate := parts[len(parts)-1]
	// .json suffixes from API-style URLs are not dataset page URLs
	if !idPattern.MatchString(candidate) {
		return Source{}, &ParseError{Reason: "Last element of path was not a valid ID"}
	}

	return Source{Domain: u.Host, ID: candidate}, nil
}

// TableName derives the destination table name for a dataset:
// a fixed prefix plus the id with separator characters normalized.
func (s Source) TableName() string {
	return TableNameForID(s.ID)
}

// TableNameForID returns "socrata_" + id with "-" replaced by "_".
func TableNameForID(id string) string {
	return fmt.Sprintf("socrata_%s", strings.ReplaceAll(id, "-", "_"))
}
