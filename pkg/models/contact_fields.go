package models

import "github.com/chuckfinca/image-collector/pkg/fields"

// ContactFields holds the structured contact data extracted from a card
// image. Every member is optional: a nil pointer or nil slice means the field
// is not present in this snapshot, which keeps the same struct usable for
// full snapshots and partial updates.
type ContactFields struct {
	// Name
	NamePrefix *string `json:"name_prefix,omitempty"`
	GivenName  *string `json:"given_name,omitempty"`
	MiddleName *string `json:"middle_name,omitempty"`
	FamilyName *string `json:"family_name,omitempty"`
	NameSuffix *string `json:"name_suffix,omitempty"`

	// Work
	JobTitle         *string `json:"job_title,omitempty"`
	Department       *string `json:"department,omitempty"`
	OrganizationName *string `json:"organization_name,omitempty"`

	// Contact
	PhoneNumbers   []string `json:"phone_numbers,omitempty"`
	EmailAddresses []string `json:"email_addresses,omitempty"`
	URLAddresses   []string `json:"url_addresses,omitempty"`

	PostalAddresses []PostalAddress `json:"postal_addresses,omitempty"`
	SocialProfiles  []SocialProfile `json:"social_profiles,omitempty"`
}

// PostalAddress is one structured street address
type PostalAddress struct {
	Street                string `json:"street,omitempty"`
	SubLocality           string `json:"sub_locality,omitempty"`
	City                  string `json:"city,omitempty"`
	SubAdministrativeArea string `json:"sub_administrative_area,omitempty"`
	State                 string `json:"state,omitempty"`
	PostalCode            string `json:"postal_code,omitempty"`
	Country               string `json:"country,omitempty"`
	ISOCountryCode        string `json:"iso_country_code,omitempty"`
}

// IsEmpty reports whether every sub-field is blank
func (a PostalAddress) IsEmpty() bool {
	return a.Street == "" && a.SubLocality == "" && a.City == "" &&
		a.SubAdministrativeArea == "" && a.State == "" && a.PostalCode == "" &&
		a.Country == "" && a.ISOCountryCode == ""
}

// SocialProfile is one social network handle
type SocialProfile struct {
	Service  string `json:"service,omitempty"`
	Username string `json:"username,omitempty"`
	URL      string `json:"url,omitempty"`
}

// IsEmpty reports whether every sub-field is blank
func (p SocialProfile) IsEmpty() bool {
	return p.Service == "" && p.Username == "" && p.URL == ""
}

// Clone returns a deep copy. Mutating the copy never affects the original,
// which is what gives version creation its copy-on-create guarantee.
func (f ContactFields) Clone() ContactFields {
	out := f

	out.NamePrefix = cloneString(f.NamePrefix)
	out.GivenName = cloneString(f.GivenName)
	out.MiddleName = cloneString(f.MiddleName)
	out.FamilyName = cloneString(f.FamilyName)
	out.NameSuffix = cloneString(f.NameSuffix)
	out.JobTitle = cloneString(f.JobTitle)
	out.Department = cloneString(f.Department)
	out.OrganizationName = cloneString(f.OrganizationName)

	if f.PhoneNumbers != nil {
		out.PhoneNumbers = append([]string(nil), f.PhoneNumbers...)
	}
	if f.EmailAddresses != nil {
		out.EmailAddresses = append([]string(nil), f.EmailAddresses...)
	}
	if f.URLAddresses != nil {
		out.URLAddresses = append([]string(nil), f.URLAddresses...)
	}
	if f.PostalAddresses != nil {
		out.PostalAddresses = append([]PostalAddress(nil), f.PostalAddresses...)
	}
	if f.SocialProfiles != nil {
		out.SocialProfiles = append([]SocialProfile(nil), f.SocialProfiles...)
	}

	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Scalar returns the pointer for a scalar field by id, nil when the id is
// not a scalar field.
func (f ContactFields) Scalar(id string) *string {
	switch id {
	case fields.NamePrefix:
		return f.NamePrefix
	case fields.GivenName:
		return f.GivenName
	case fields.MiddleName:
		return f.MiddleName
	case fields.FamilyName:
		return f.FamilyName
	case fields.NameSuffix:
		return f.NameSuffix
	case fields.JobTitle:
		return f.JobTitle
	case fields.Department:
		return f.Department
	case fields.OrganizationName:
		return f.OrganizationName
	}
	return nil
}

// SetScalar assigns a scalar field by id
func (f *ContactFields) SetScalar(id string, v *string) {
	switch id {
	case fields.NamePrefix:
		f.NamePrefix = v
	case fields.GivenName:
		f.GivenName = v
	case fields.MiddleName:
		f.MiddleName = v
	case fields.FamilyName:
		f.FamilyName = v
	case fields.NameSuffix:
		f.NameSuffix = v
	case fields.JobTitle:
		f.JobTitle = v
	case fields.Department:
		f.Department = v
	case fields.OrganizationName:
		f.OrganizationName = v
	}
}

// StringArray returns the slice for a string-array field by id
func (f ContactFields) StringArray(id string) []string {
	switch id {
	case fields.PhoneNumbers:
		return f.PhoneNumbers
	case fields.EmailAddresses:
		return f.EmailAddresses
	case fields.URLAddresses:
		return f.URLAddresses
	}
	return nil
}

// SetStringArray assigns a string-array field by id
func (f *ContactFields) SetStringArray(id string, v []string) {
	switch id {
	case fields.PhoneNumbers:
		f.PhoneNumbers = v
	case fields.EmailAddresses:
		f.EmailAddresses = v
	case fields.URLAddresses:
		f.URLAddresses = v
	}
}
