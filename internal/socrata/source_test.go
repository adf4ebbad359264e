package socrata

import (
	"errors"
	"testing"
)

func TestParseSourceURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDomain string
		wantID     string
		wantErr    string
	}{
		{
			name:       "dataset page URL",
			url:        "https://data.edmonton.ca/Urban-Planning-Economy/General-Building-Permits/24uj-dj8v",
			wantDomain: "data.edmonton.ca",
			wantID:     "24uj-dj8v",
		},
		{
			name:       "bare id path",
			url:        "https://data.example.com/abcd-1234",
			wantDomain: "data.example.com",
			wantID:     "abcd-1234",
		},
		{
			name:    "missing domain",
			url:     "htt",
			wantErr: "Missing domain",
		},
		{
			name:    "empty",
			url:     "",
			wantErr: "Missing domain",
		},
		{
			name:    "api style url is not a dataset page",
			url:     "https://data.edmonton.ca/api/views/24uj-dj8.json",
			wantErr: "Last element of path was not a valid ID",
		},
		{
			name:    "id too short",
			url:     "https://data.edmonton.ca/abc-1234",
			wantErr: "Last element of path was not a valid ID",
		},
		{
			name:    "trailing slash",
			url:     "https://data.edmonton.ca/24uj-dj8v/",
			wantErr: "Last element of path was not a valid ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := ParseSourceURL(tt.url)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseSourceURL(%q) expected error", tt.url)
				}
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("error type = %T, want *ParseError", err)
				}
				if err.Error() != tt.wantErr {
					t.Errorf("error = %q, want %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSourceURL(%q) error = %v", tt.url, err)
			}
			if src.Domain != tt.wantDomain {
				t.Errorf("Domain = %q, want %q", src.Domain, tt.wantDomain)
			}
			if src.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", src.ID, tt.wantID)
			}
		})
	}
}

func TestTableName(t *testing.T) {
	src := Source{Domain: "data.edmonton.ca", ID: "24uj-dj8v"}
	if got := src.TableName(); got != "socrata_24uj_dj8v" {
		t.Errorf("TableName() = %q, want %q", got, "socrata_24uj_dj8v")
	}
}
