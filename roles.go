package sheetsql

import "strings"

// RoleMapping names the candidate columns that can play a semantic role in
// a report. Candidates are matched against the live table schema on every
// request, never cached.
type RoleMapping struct {
	Role string
	// Exact candidates are tried in order, first case-sensitively, then
	// case-insensitively.
	Exact []string
	// Tokens are lowercase substrings tried in order when no exact candidate matches.
	Tokens []string
}

// Roles used by the dynamic strategies.
var (
	VisaRole = RoleMapping{
		Role:   "visa",
		Exact:  []string{"visa_status", "visa_type", "visa"},
		Tokens: []string{"visa"},
	}
	ExpiryRole = RoleMapping{
		Role:   "expiry",
		Exact:  []string{"offer_expiry_date", "expiry_date", "offer_expiry", "expiry"},
		Tokens: []string{"expiry", "expire"},
	}
	DeferredRole = RoleMapping{
		Role:   "deferred",
		Exact:  []string{"is_deferred", "deferred", "deferral"},
		Tokens: []string{"defer"},
	}
	IntakeRole = RoleMapping{
		Role:   "intake",
		Exact:  []string{"previous_offer_intake", "intake", "term"},
		Tokens: []string{"intake", "term"},
	}
)

// ResolveRole picks the column of columns that plays mapping's role.
// Exact names win over case-insensitive names, which win over token matches.
// Ties within a stage go to the earlier candidate, then the earlier column.
func ResolveRole(columns []string, mapping RoleMapping) (string, bool) {
	for _, candidate := range mapping.Exact {
		for _, col := range columns {
			if col == candidate {
				return col, true
			}
		}
	}
	for _, candidate := range mapping.Exact {
		for _, col := range columns {
			if strings.EqualFold(col, candidate) {
				return col, true
			}
		}
	}
	for _, token := range mapping.Tokens {
		token = strings.ToLower(token)
		for _, col := range columns {
			if strings.Contains(strings.ToLower(col), token) {
				return col, true
			}
		}
	}
	return "", false
}
