// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/bloodhub/internal/app/store/audit"
)

// listItem represents a single audit event row.
type listItem struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Category   string            `json:"category"`
	EventType  string            `json:"event_type"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorName  string            `json:"actor_name,omitempty"` // Resolved from ActorID
	TargetID   string            `json:"target_id,omitempty"`
	TargetName string            `json:"target_name,omitempty"` // Resolved from UserID
	RequestID  string            `json:"request_id,omitempty"`
	IP         string            `json:"ip"`
	Success    bool              `json:"success"`
	Reason     string            `json:"failure_reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// categoryOption represents a category for the client's filter dropdown.
type categoryOption struct {
	Value      string   `json:"value"`
	Label      string   `json:"label"`
	EventTypes []string `json:"event_types"`
}

// allCategories returns the available categories for filtering.
func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Authentication", EventTypes: eventTypesForCategory(audit.CategoryAuth)},
		{Value: audit.CategoryAdmin, Label: "Administration", EventTypes: eventTypesForCategory(audit.CategoryAdmin)},
		{Value: audit.CategoryRequest, Label: "Donation requests", EventTypes: eventTypesForCategory(audit.CategoryRequest)},
	}
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginFailedRateLimit,
		audit.EventLogout,
		audit.EventRegistered,
	}

	adminEvents := []string{
		audit.EventUserRoleChanged,
		audit.EventUserStatusChanged,
		audit.EventSettingsUpdated,
		audit.EventFundingStatusChanged,
	}

	requestEvents := []string{
		audit.EventRequestCreated,
		audit.EventRequestUpdated,
		audit.EventRequestDeleted,
		audit.EventRequestStatusChanged,
		audit.EventRequestDonorAssigned,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case audit.CategoryRequest:
		return requestEvents
	case "":
		all := make([]string, 0, len(authEvents)+len(adminEvents)+len(requestEvents))
		all = append(all, authEvents...)
		all = append(all, adminEvents...)
		all = append(all, requestEvents...)
		return all
	default:
		return nil
	}
}
