// Package strategy implements the chain of name-resolution strategies —
// Exact, Fuzzy, Phonetic, SchoolDisambiguation — each attempting to map
// one free-text target name to a roster person for one requester.
package strategy

import (
	"context"

	"github.com/camp/kindred/internal/bunking/model"
)

// AttendeeInfo is the pre-loaded per-person enrollment shape the batch
// resolve path consumes, keyed by person cm_id.
type AttendeeInfo struct {
	SessionCMID int
	School      string
	Grade       *int
	City        string
	State       string
}

// Strategy is the contract every resolution strategy implements.
type Strategy interface {
	// Name identifies the strategy for logging and ResolutionResult.Method.
	Name() string

	// Resolve attempts to resolve name against live repositories, with no
	// pre-loaded batch context.
	Resolve(ctx context.Context, name string, requesterCMID int, sessionCMID *int, year *int) (model.ResolutionResult, error)

	// ResolveWithContext is the batch-optimized path: candidates is the
	// shortlist the pipeline pre-filtered for this name; attendeeInfo maps
	// cm_id to enrollment info for every relevant person; allPersons is
	// the full year-filtered pool used as a phonetic/parent-surname
	// fallback scan when candidates is empty. A nil candidates slice
	// means "not pre-filtered"; an empty-but-non-nil slice must still
	// fall back to allPersons rather than a single-row query.
	ResolveWithContext(ctx context.Context, name string, requesterCMID int, sessionCMID, year *int,
		candidates []model.Person, attendeeInfo map[int]AttendeeInfo, allPersons []model.Person) (model.ResolutionResult, error)
}

// filterSelfReferences drops the requester from a candidate list; every
// strategy must never resolve a request to the requester themselves.
func filterSelfReferences(matches []model.Person, requesterCMID int) []model.Person {
	out := make([]model.Person, 0, len(matches))
	for _, m := range matches {
		if m.CMID != requesterCMID {
			out = append(out, m)
		}
	}
	return out
}
