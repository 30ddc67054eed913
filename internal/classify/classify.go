// Package classify maps event types to their notification routing. It is
// the single authoritative table: adding a new event type means adding one
// row here, nowhere else.
package classify

// Priority is the operational severity of an event type.
type Priority string

const (
	Critical Priority = "critical"
	Routine  Priority = "routine"
)

// Channel identifies an output channel.
type Channel string

const (
	Chat  Channel = "chat"
	Email Channel = "email"
)

// Classification is a pure function of event type: how loud the
// notification is and where it goes.
type Classification struct {
	Priority   Priority
	MentionAll bool
	Channels   []Channel
}

// Has reports whether ch is in the classification's channel set.
func (c Classification) Has(ch Channel) bool {
	for _, have := range c.Channels {
		if have == ch {
			return true
		}
	}
	return false
}

var table = map[string]Classification{
	"LeaseRequested":         {Priority: Routine, Channels: []Channel{Chat}},
	"LeaseApproved":          {Priority: Routine, Channels: []Channel{Chat, Email}},
	"LeaseDenied":            {Priority: Routine, Channels: []Channel{Chat, Email}},
	"LeaseExpiring":          {Priority: Routine, Channels: []Channel{Email}},
	"LeaseExpired":           {Priority: Routine, Channels: []Channel{Chat}},
	"BudgetThresholdReached": {Priority: Routine, Channels: []Channel{Chat}},
	"BudgetExceeded":         {Priority: Critical, MentionAll: true, Channels: []Channel{Chat, Email}},
	"AccountQuarantined":     {Priority: Critical, MentionAll: true, Channels: []Channel{Chat, Email}},
	"SandboxProvisionFailed": {Priority: Critical, MentionAll: true, Channels: []Channel{Chat}},
}

// Classify resolves an event type to its classification. A type not in the
// table resolves to a quiet chat-only routine notification, never critical:
// an unrecognized event still produces a note someone can act on, without
// paging anyone.
func Classify(eventType string) Classification {
	if c, ok := table[eventType]; ok {
		return c
	}
	return Classification{Priority: Routine, MentionAll: false, Channels: []Channel{Chat}}
}

// Types returns all event types present in the table.
func Types() []string {
	out := make([]string, 0, len(table))
	for t := range table {
		out = append(out, t)
	}
	return out
}
