package domain

import (
	"strings"

	"github.com/google/uuid"
)

// IncidentPrefix prefixes every leakage incident id.
const IncidentPrefix = "inc_"

// LeakedRow identifies a backend row outside the requested subtree.
type LeakedRow struct {
	ID        string
	TopicPath string
}

// LeakageIncident records a boundary breach by the search backend.
// It exists only on the error path and is never part of a successful response.
type LeakageIncident struct {
	IncidentID string
	Root       string
	Query      string
	Offending  []LeakedRow
	Returned   int
}

// NewLeakageIncident creates an incident with a fresh id.
func NewLeakageIncident(root, query string, offending []LeakedRow, returned int) LeakageIncident {
	return LeakageIncident{
		IncidentID: NewIncidentID(),
		Root:       root,
		Query:      query,
		Offending:  offending,
		Returned:   returned,
	}
}

// NewIncidentID returns "inc_" followed by a random UUID without dashes.
func NewIncidentID() string {
	return IncidentPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// OffendingIDs returns the ids of the offending rows.
func (l *LeakageIncident) OffendingIDs() []string {
	ids := make([]string, len(l.Offending))
	for i, r := range l.Offending {
		ids[i] = r.ID
	}
	return ids
}

// OffendingPaths returns the topic paths of the offending rows.
func (l *LeakageIncident) OffendingPaths() []string {
	paths := make([]string, len(l.Offending))
	for i, r := range l.Offending {
		paths[i] = r.TopicPath
	}
	return paths
}
