// Package normalize canonicalizes user-supplied strings before they are
// stored or compared.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email lowercases and trims an email address.
func Email(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Name trims a display name and collapses runs of whitespace. Case is kept.
func Name(s string) string { return strings.Join(strings.Fields(s), " ") }

// Role lowercases and trims a role name.
func Role(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Status lowercases and trims an account or request status.
func Status(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// AuthMethod lowercases and trims an auth method.
func AuthMethod(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// QueryParam trims a query-string value, preserving case.
func QueryParam(s string) string { return strings.TrimSpace(s) }

// BloodGroup uppercases a blood group and strips spaces, so " ab + " becomes "AB+".
func BloodGroup(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// Place normalizes a district or upazila name for display.
func Place(s string) string { return Name(s) }

// Fold returns the case/diacritic-insensitive key used for *_ci fields.
func Fold(s string) string { return text.Fold(Name(s)) }
