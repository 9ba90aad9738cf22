// Package diff computes the minimal change-set between a persisted contact
// snapshot and a sanitized candidate. Only the fields that actually differ
// are ever sent to the store.
package diff

import (
	"encoding/json"

	"github.com/chuckfinca/image-collector/pkg/fields"
	"github.com/chuckfinca/image-collector/pkg/models"
)

// Changes holds the fields whose sanitized candidate value differs from the
// original. Fields carries only the changed members; ChangedFields lists
// their ids in schema order.
type Changes struct {
	Fields        models.ContactFields
	ChangedFields []string
}

// HasChanges reports whether anything differed
func (c Changes) HasChanges() bool {
	return len(c.ChangedFields) > 0
}

// Fields compares original against candidate over the given field ids.
// Fields absent from the candidate, or not listed in check, are never
// reported as changed. The candidate is expected to be sanitized already;
// changed fields carry the candidate value as-is.
func Fields(original, candidate models.ContactFields, check []string) Changes {
	checked := make(map[string]bool, len(check))
	for _, id := range check {
		checked[id] = true
	}

	var out Changes
	for _, f := range fields.All {
		if !checked[f.ID] {
			continue
		}

		switch f.Kind {
		case fields.KindScalar:
			v := candidate.Scalar(f.ID)
			if v == nil {
				continue
			}
			if scalarString(original.Scalar(f.ID)) != *v {
				out.Fields.SetScalar(f.ID, v)
				out.ChangedFields = append(out.ChangedFields, f.ID)
			}
		case fields.KindStringArray:
			v := candidate.StringArray(f.ID)
			if v == nil {
				continue
			}
			if !stringArraysEqual(original.StringArray(f.ID), v) {
				out.Fields.SetStringArray(f.ID, v)
				out.ChangedFields = append(out.ChangedFields, f.ID)
			}
		case fields.KindAddresses:
			if candidate.PostalAddresses == nil {
				continue
			}
			if !addressesEqual(original.PostalAddresses, candidate.PostalAddresses) {
				out.Fields.PostalAddresses = candidate.PostalAddresses
				out.ChangedFields = append(out.ChangedFields, f.ID)
			}
		case fields.KindProfiles:
			if candidate.SocialProfiles == nil {
				continue
			}
			if !profilesEqual(original.SocialProfiles, candidate.SocialProfiles) {
				out.Fields.SocialProfiles = candidate.SocialProfiles
				out.ChangedFields = append(out.ChangedFields, f.ID)
			}
		}
	}

	return out
}

func scalarString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// stringArraysEqual compares by JSON serialization: order-sensitive, no
// deduplication. A nil original is comparable to an empty candidate.
func stringArraysEqual(a, b []string) bool {
	if a == nil {
		a = []string{}
	}
	if b == nil {
		b = []string{}
	}

	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// addressesEqual compares positionally over the full address sub-field set.
// Two missing or empty containers are equal regardless of nil-vs-empty
// representation.
func addressesEqual(a, b []models.PostalAddress) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func profilesEqual(a, b []models.SocialProfile) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
