// Package participant maintains the registry of federation
// participants with reputation scoring and status transitions.
package participant

import (
	"time"

	"github.com/fedmesh/fedmesh/node"
	"github.com/fedmesh/fedmesh/pkg/privacy"
)

// Status is the participation state. Blacklisted is terminal; there is
// no automatic reactivation from it.
type Status string

const (
	Active      Status = "active"
	Suspended   Status = "suspended"
	Blacklisted Status = "blacklisted"
)

func (s Status) Valid() bool {
	switch s {
	case Active, Suspended, Blacklisted:
		return true
	default:
		return false
	}
}

// Participant is a federation member eligible for aggregation rounds.
// Reputation stays within [0, 1] and is mutated only through the
// manager.
type Participant struct {
	NodeID            string            `json:"node_id"`
	ReputationScore   float64           `json:"reputation_score"`
	ContributionCount uint64            `json:"contribution_count"`
	LastContribution  time.Time         `json:"last_contribution,omitzero"`
	PrivacyBudget     privacy.Budget    `json:"privacy_budget"`
	Capabilities      []node.Capability `json:"capabilities,omitempty"`
	Status            Status            `json:"status"`
	RegisteredAt      time.Time         `json:"registered_at"`
}

// Page is a paginated participant listing.
type Page struct {
	Offset       uint64        `json:"offset"`
	Limit        uint64        `json:"limit"`
	Total        uint64        `json:"total"`
	Participants []Participant `json:"participants"`
}
