package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/model"
)

// Capability names a privileged operation.
type Capability string

const (
	ManageEvents          Capability = "manage_events"
	ManageRegistrations   Capability = "manage_registrations"
	ViewAnalytics         Capability = "view_analytics"
	ExportRegistrations   Capability = "export_registrations"
	CancelAnyRegistration Capability = "cancel_any_registration"
)

// Policy grants capabilities by role. Roles listed in AdminRoles hold every
// capability; Grants adds narrower per-role grants.
type Policy struct {
	AdminRoles []string
	Grants     map[string][]Capability
}

var knownCapabilities = map[Capability]bool{
	ManageEvents:          true,
	ManageRegistrations:   true,
	ViewAnalytics:         true,
	ExportRegistrations:   true,
	CancelAnyRegistration: true,
}

// NewPolicy returns a Policy whose admin roles are adminRoles.
func NewPolicy(adminRoles []string) Policy {
	return Policy{AdminRoles: adminRoles}
}

// WithGrants returns a copy of p that also grants the named capabilities
// per role. Unknown capability names are rejected.
func (p Policy) WithGrants(grants map[string][]string) (Policy, error) {
	merged := make(map[string][]Capability, len(p.Grants)+len(grants))
	for role, caps := range p.Grants {
		merged[role] = append([]Capability(nil), caps...)
	}
	for role, names := range grants {
		for _, name := range names {
			c := Capability(strings.ToLower(name))
			if !knownCapabilities[c] {
				return Policy{}, fmt.Errorf("role %s: unknown capability %q", role, name)
			}
			merged[role] = append(merged[role], c)
		}
	}
	p.Grants = merged
	return p, nil
}

// Allows reports whether claims hold capability c.
func (p Policy) Allows(claims *Claims, c Capability) bool {
	if claims == nil || claims.Role == "" {
		return false
	}
	for _, role := range p.AdminRoles {
		if strings.EqualFold(role, claims.Role) {
			return true
		}
	}
	for role, caps := range p.Grants {
		if !strings.EqualFold(role, claims.Role) {
			continue
		}
		for _, granted := range caps {
			if granted == c {
				return true
			}
		}
	}
	return false
}

// Actor builds the service-level caller for claims, privileged when the
// caller may act on other users' registrations.
func (p Policy) Actor(claims *Claims) model.Actor {
	if claims == nil {
		return model.Actor{}
	}
	return model.Actor{UserID: claims.UserID, Privileged: p.Allows(claims, CancelAnyRegistration)}
}

// Require rejects authenticated callers that lack capability c. It must run
// after Authenticate.
func (p Policy) Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !p.Allows(claims, c) {
				writeError(w, http.StatusForbidden, "missing capability "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
