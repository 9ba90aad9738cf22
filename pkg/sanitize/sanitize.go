// Package sanitize normalizes and validates contact field values by declared
// field kind before they are diffed or persisted.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chuckfinca/image-collector/pkg/fields"
	"github.com/chuckfinca/image-collector/pkg/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// FieldResult is the outcome for one sanitized field
type FieldResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Result is the outcome of sanitizing a snapshot. Fields holds the cleaned
// values for every field that was present in the input; fields absent from
// the input are left untouched (nil). Valid is the AND of all per-field
// results.
type Result struct {
	Fields       models.ContactFields
	FieldResults map[string]FieldResult
	Valid        bool
}

// InvalidFields returns the ids of fields that failed validation, with their
// messages, for error reporting.
func (r Result) InvalidFields() map[string][]string {
	out := map[string][]string{}
	for id, fr := range r.FieldResults {
		if !fr.Valid {
			out[id] = fr.Errors
		}
	}
	return out
}

// Scalar trims a scalar string value. An empty string after trimming is
// valid: it represents "unset".
func Scalar(value string) string {
	return strings.TrimSpace(value)
}

// StringArray trims every entry, drops blank entries, and validates the
// remainder by kind. Entries that fail validation are dropped from the
// returned slice but recorded as errors, so the caller still sees the
// cleaned subset while knowing the input was not fully valid.
func StringArray(values []string, kind fields.StringKind) ([]string, FieldResult) {
	result := FieldResult{Valid: true}
	cleaned := make([]string, 0, len(values))

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}

		if err := validateEntry(v, kind); err != "" {
			result.Valid = false
			result.Errors = append(result.Errors, err)
			continue
		}

		cleaned = append(cleaned, v)
	}

	return cleaned, result
}

func validateEntry(value string, kind fields.StringKind) string {
	switch kind {
	case fields.StringEmail:
		if !emailPattern.MatchString(value) {
			return fmt.Sprintf("invalid email address: %s", value)
		}
	case fields.StringURL:
		if !validURL(value) {
			return fmt.Sprintf("invalid url: %s", value)
		}
	case fields.StringPhone:
		if !validPhone(value) {
			return fmt.Sprintf("invalid phone number: %s", value)
		}
	}
	return ""
}

func validURL(value string) bool {
	var rest string
	switch {
	case strings.HasPrefix(value, "http://"):
		rest = value[len("http://"):]
	case strings.HasPrefix(value, "https://"):
		rest = value[len("https://"):]
	default:
		return false
	}

	if rest == "" {
		return false
	}
	return !strings.ContainsAny(rest, " \t\n\r")
}

func validPhone(value string) bool {
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return true
}

// Addresses trims every sub-field of every entry and drops entries whose
// sub-fields are all blank. Address entries carry no per-entry validation.
func Addresses(addrs []models.PostalAddress) []models.PostalAddress {
	cleaned := make([]models.PostalAddress, 0, len(addrs))
	for _, a := range addrs {
		a = models.PostalAddress{
			Street:                strings.TrimSpace(a.Street),
			SubLocality:           strings.TrimSpace(a.SubLocality),
			City:                  strings.TrimSpace(a.City),
			SubAdministrativeArea: strings.TrimSpace(a.SubAdministrativeArea),
			State:                 strings.TrimSpace(a.State),
			PostalCode:            strings.TrimSpace(a.PostalCode),
			Country:               strings.TrimSpace(a.Country),
			ISOCountryCode:        strings.TrimSpace(a.ISOCountryCode),
		}
		if a.IsEmpty() {
			continue
		}
		cleaned = append(cleaned, a)
	}
	return cleaned
}

// Profiles trims every sub-field of every entry and drops entries whose
// sub-fields are all blank.
func Profiles(profiles []models.SocialProfile) []models.SocialProfile {
	cleaned := make([]models.SocialProfile, 0, len(profiles))
	for _, p := range profiles {
		p = models.SocialProfile{
			Service:  strings.TrimSpace(p.Service),
			Username: strings.TrimSpace(p.Username),
			URL:      strings.TrimSpace(p.URL),
		}
		if p.IsEmpty() {
			continue
		}
		cleaned = append(cleaned, p)
	}
	return cleaned
}

// Snapshot sanitizes every field present in the input. A nil pointer or nil
// slice means the field is not being touched and is left absent in the
// output, which keeps the operation partial-update friendly.
func Snapshot(in models.ContactFields) Result {
	out := Result{
		FieldResults: map[string]FieldResult{},
		Valid:        true,
	}

	for _, f := range fields.All {
		switch f.Kind {
		case fields.KindScalar:
			if v := in.Scalar(f.ID); v != nil {
				cleaned := Scalar(*v)
				out.Fields.SetScalar(f.ID, &cleaned)
				out.FieldResults[f.ID] = FieldResult{Valid: true}
			}
		case fields.KindStringArray:
			if v := in.StringArray(f.ID); v != nil {
				cleaned, fr := StringArray(v, f.StringKind)
				out.Fields.SetStringArray(f.ID, cleaned)
				out.FieldResults[f.ID] = fr
				if !fr.Valid {
					out.Valid = false
				}
			}
		case fields.KindAddresses:
			if in.PostalAddresses != nil {
				out.Fields.PostalAddresses = Addresses(in.PostalAddresses)
				out.FieldResults[f.ID] = FieldResult{Valid: true}
			}
		case fields.KindProfiles:
			if in.SocialProfiles != nil {
				out.Fields.SocialProfiles = Profiles(in.SocialProfiles)
				out.FieldResults[f.ID] = FieldResult{Valid: true}
			}
		}
	}

	return out
}
