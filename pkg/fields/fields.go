// Package fields defines the closed schema for contact fields.
//
// Every editable field of a contact snapshot is declared here once, with its
// kind. Components that walk a snapshot (sanitizing, diffing, overlaying)
// switch over the kind instead of matching on field-name conventions, so a
// new field only ever has to be added to this table.
package fields

// Kind is the storage shape of a field
type Kind string

const (
	KindScalar      Kind = "scalar"       // single optional string
	KindStringArray Kind = "string_array" // ordered list of strings
	KindAddresses   Kind = "addresses"    // list of postal addresses
	KindProfiles    Kind = "profiles"     // list of social profiles
)

// StringKind is the validation rule applied to each entry of a string array
type StringKind string

const (
	StringPlain StringKind = "plain"
	StringEmail StringKind = "email"
	StringURL   StringKind = "url"
	StringPhone StringKind = "phone"
)

// Field is one declared contact field
type Field struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Group      string     `json:"group"` // name, work, contact, address, social
	Kind       Kind       `json:"kind"`
	StringKind StringKind `json:"string_kind,omitempty"` // only for KindStringArray
}

// Field IDs. These match the column/JSON names used by the store.
const (
	NamePrefix       = "name_prefix"
	GivenName        = "given_name"
	MiddleName       = "middle_name"
	FamilyName       = "family_name"
	NameSuffix       = "name_suffix"
	JobTitle         = "job_title"
	Department       = "department"
	OrganizationName = "organization_name"
	PhoneNumbers     = "phone_numbers"
	EmailAddresses   = "email_addresses"
	URLAddresses     = "url_addresses"
	PostalAddresses  = "postal_addresses"
	SocialProfiles   = "social_profiles"
)

// All is the full schema in display order
var All = []Field{
	{ID: NamePrefix, Label: "Prefix", Group: "name", Kind: KindScalar},
	{ID: GivenName, Label: "Given Name", Group: "name", Kind: KindScalar},
	{ID: MiddleName, Label: "Middle Name", Group: "name", Kind: KindScalar},
	{ID: FamilyName, Label: "Family Name", Group: "name", Kind: KindScalar},
	{ID: NameSuffix, Label: "Suffix", Group: "name", Kind: KindScalar},
	{ID: JobTitle, Label: "Job Title", Group: "work", Kind: KindScalar},
	{ID: Department, Label: "Department", Group: "work", Kind: KindScalar},
	{ID: OrganizationName, Label: "Organization", Group: "work", Kind: KindScalar},
	{ID: PhoneNumbers, Label: "Phone Numbers", Group: "contact", Kind: KindStringArray, StringKind: StringPhone},
	{ID: EmailAddresses, Label: "Email Addresses", Group: "contact", Kind: KindStringArray, StringKind: StringEmail},
	{ID: URLAddresses, Label: "URLs", Group: "contact", Kind: KindStringArray, StringKind: StringURL},
	{ID: PostalAddresses, Label: "Postal Addresses", Group: "address", Kind: KindAddresses},
	{ID: SocialProfiles, Label: "Social Profiles", Group: "social", Kind: KindProfiles},
}

var byID = func() map[string]Field {
	m := make(map[string]Field, len(All))
	for _, f := range All {
		m[f.ID] = f
	}
	return m
}()

// ByID returns the declared field with the given id
func ByID(id string) (Field, bool) {
	f, ok := byID[id]
	return f, ok
}

// IDs returns every declared field id in schema order
func IDs() []string {
	ids := make([]string, len(All))
	for i, f := range All {
		ids[i] = f.ID
	}
	return ids
}

// ScalarIDs returns the ids of all scalar fields in schema order
func ScalarIDs() []string {
	var ids []string
	for _, f := range All {
		if f.Kind == KindScalar {
			ids = append(ids, f.ID)
		}
	}
	return ids
}
