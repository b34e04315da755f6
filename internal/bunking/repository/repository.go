// Package repository defines the external collaborator interfaces the
// resolution core depends on for roster data: persons, their per-year
// enrollment, and sessions. Implementations live in sibling packages
// (memstore, sqlitestore, pgstore); the resolution strategies, pipeline,
// and social graph depend only on these interfaces.
package repository

import (
	"context"

	"github.com/camp/kindred/internal/bunking/model"
)

// PersonRepository answers the name- and id-based lookups the
// resolution strategies need to build candidate shortlists.
type PersonRepository interface {
	// FindByCMID returns the person with the given id, or false if none
	// exists.
	FindByCMID(ctx context.Context, cmID int) (model.Person, bool, error)

	// FindByName returns every person whose first and last name match
	// exactly (case/whitespace/punctuation-normalized by the caller).
	FindByName(ctx context.Context, firstName, lastName string, year int) ([]model.Person, error)

	// FindByFirstName returns every person with the given first name,
	// for single-token searches and nickname/phonetic fan-out.
	FindByFirstName(ctx context.Context, firstName string, year int) ([]model.Person, error)

	// FindByNormalizedName returns every person whose normalized full
	// name equals the given normalized string.
	FindByNormalizedName(ctx context.Context, normalized string, year int) ([]model.Person, error)

	// FindByFirstAndParentSurname returns persons with the given first
	// name whose parent_names include the given surname, for the
	// parent-surname disambiguation fallback.
	FindByFirstAndParentSurname(ctx context.Context, firstName, parentSurname string, year int) ([]model.Person, error)

	// GetAllForPhoneticMatching returns the full year-filtered candidate
	// pool used as the phonetic strategies' fallback scan set.
	GetAllForPhoneticMatching(ctx context.Context, year int) ([]model.Person, error)

	// BulkFindByCMIDs returns a map of cm_id -> Person for every id in
	// ids that exists, for callers scoring an AI-provided candidate
	// shortlist without a round trip per candidate.
	BulkFindByCMIDs(ctx context.Context, ids []int) (map[int]model.Person, error)
}

// AttendeeRepository answers per-year enrollment lookups.
type AttendeeRepository interface {
	// GetByPersonAndYear returns the enrollment record for one person in
	// one year, or false if the person wasn't enrolled that year.
	GetByPersonAndYear(ctx context.Context, personCMID, year int) (model.Attendee, bool, error)

	// BulkGetSessionsForPersons returns a map of person cm_id -> session
	// cm_id for every id present in ids that has an enrollment in year.
	// Ids absent from the result were not enrolled.
	BulkGetSessionsForPersons(ctx context.Context, ids []int, year int) (map[int]int, error)

	// ListByYear returns every enrollment record for the given year, the
	// full attendee collection a session's social graph is built from.
	ListByYear(ctx context.Context, year int) ([]model.Attendee, error)

	// ListBunkAssignmentsBefore returns every historical bunk assignment
	// for the given persons in years strictly before year. Callers chunk
	// ids to bound filter length.
	ListBunkAssignmentsBefore(ctx context.Context, ids []int, beforeYear int) ([]model.BunkAssignment, error)

	// FindPriorYearBunkmates returns the other persons sharing personCMID's
	// bunk assignment in year-1, and that bunk's id. ok is false if
	// personCMID has no recorded bunk assignment in year-1. sessionCMID is
	// accepted for interface parity with callers that scope the lookup to
	// a session family; this repository's bunk_assignment records aren't
	// session-scoped, so implementations ignore it.
	FindPriorYearBunkmates(ctx context.Context, personCMID, sessionCMID, year int) (model.PriorBunkmates, bool, error)
}

// SessionRepository answers session-forest lookups.
type SessionRepository interface {
	// FindByCMID returns the session with the given id, or false if none
	// exists.
	FindByCMID(ctx context.Context, sessionCMID int) (model.Session, bool, error)

	// GetValidBunkingSessionIDs returns the set of session ids considered
	// interchangeable with sessionCMID for bunking purposes: the session
	// itself plus its parent/sibling/child sessions in the forest.
	GetValidBunkingSessionIDs(ctx context.Context, sessionCMID int) ([]int, error)
}
