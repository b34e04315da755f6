// Package memstore is a plain in-memory implementation of the
// repository interfaces, used by pipeline/strategy/social tests and as
// a reference for what the SQL-backed stores must honor.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/camp/kindred/internal/bunking/nameutil"
	"github.com/camp/kindred/internal/bunking/model"
)

// Store holds persons, attendees, and sessions in memory, safe for
// concurrent reads and writes.
type Store struct {
	mu              sync.RWMutex
	persons         map[int]model.Person
	attendees       map[attendeeKey]model.Attendee
	sessions        map[int]model.Session
	bunkAssignments []model.BunkAssignment
}

type attendeeKey struct {
	personCMID int
	year       int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		persons:   make(map[int]model.Person),
		attendees: make(map[attendeeKey]model.Attendee),
		sessions:  make(map[int]model.Session),
	}
}

// PutPerson inserts or replaces a person.
func (s *Store) PutPerson(p model.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.CMID] = p
}

// PutAttendee inserts or replaces an enrollment record.
func (s *Store) PutAttendee(a model.Attendee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attendees[attendeeKey{a.PersonCMID, a.Year}] = a
}

// PutSession inserts or replaces a session.
func (s *Store) PutSession(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.CMID] = sess
}

// PutBunkAssignment appends a historical bunk assignment record.
func (s *Store) PutBunkAssignment(a model.BunkAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bunkAssignments = append(s.bunkAssignments, a)
}

// ListByYear implements repository.AttendeeRepository.
func (s *Store) ListByYear(_ context.Context, year int) ([]model.Attendee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]attendeeKey, 0)
	for k := range s.attendees {
		if k.year == year {
			ids = append(ids, k)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].personCMID < ids[j].personCMID })

	out := make([]model.Attendee, 0, len(ids))
	for _, k := range ids {
		out = append(out, s.attendees[k])
	}
	return out, nil
}

// ListBunkAssignmentsBefore implements repository.AttendeeRepository.
func (s *Store) ListBunkAssignmentsBefore(_ context.Context, ids []int, beforeYear int) ([]model.BunkAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var out []model.BunkAssignment
	for _, a := range s.bunkAssignments {
		if a.Year < beforeYear && wanted[a.PersonCMID] {
			out = append(out, a)
		}
	}
	return out, nil
}

// FindPriorYearBunkmates implements repository.AttendeeRepository.
func (s *Store) FindPriorYearBunkmates(_ context.Context, personCMID, _ int, year int) (model.PriorBunkmates, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	priorYear := year - 1
	bunkID, ok := 0, false
	for _, a := range s.bunkAssignments {
		if a.PersonCMID == personCMID && a.Year == priorYear {
			bunkID, ok = a.BunkID, true
			break
		}
	}
	if !ok {
		return model.PriorBunkmates{}, false, nil
	}

	var cmids []int
	for _, a := range s.bunkAssignments {
		if a.Year == priorYear && a.BunkID == bunkID && a.PersonCMID != personCMID {
			cmids = append(cmids, a.PersonCMID)
		}
	}
	sort.Ints(cmids)

	return model.PriorBunkmates{CMIDs: cmids, PriorBunkID: bunkID}, true, nil
}

func (s *Store) enrolledIn(personCMID, year int) (model.Attendee, bool) {
	a, ok := s.attendees[attendeeKey{personCMID, year}]
	return a, ok
}

// FindByCMID implements repository.PersonRepository.
func (s *Store) FindByCMID(_ context.Context, cmID int) (model.Person, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[cmID]
	return p, ok, nil
}

// BulkFindByCMIDs implements repository.PersonRepository.
func (s *Store) BulkFindByCMIDs(_ context.Context, ids []int) (map[int]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]model.Person, len(ids))
	for _, id := range ids {
		if p, ok := s.persons[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// FindByName implements repository.PersonRepository.
func (s *Store) FindByName(_ context.Context, firstName, lastName string, year int) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := nameutil.NormalizeName(firstName)
	last := nameutil.NormalizeName(lastName)

	var out []model.Person
	for _, p := range s.sortedPersons() {
		if _, enrolled := s.enrolledIn(p.CMID, year); !enrolled {
			continue
		}
		if nameutil.NormalizeName(p.FirstName) == first && nameutil.NormalizeName(p.LastName) == last {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByFirstName implements repository.PersonRepository.
func (s *Store) FindByFirstName(_ context.Context, firstName string, year int) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := nameutil.NormalizeName(firstName)
	var out []model.Person
	for _, p := range s.sortedPersons() {
		if _, enrolled := s.enrolledIn(p.CMID, year); !enrolled {
			continue
		}
		if nameutil.NormalizeName(p.FirstName) == first {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByNormalizedName implements repository.PersonRepository.
func (s *Store) FindByNormalizedName(_ context.Context, normalized string, year int) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Person
	for _, p := range s.sortedPersons() {
		if _, enrolled := s.enrolledIn(p.CMID, year); !enrolled {
			continue
		}
		full := nameutil.NormalizeName(p.FirstName + " " + p.LastName)
		if full == normalized {
			out = append(out, p)
		}
	}
	return out, nil
}

// FindByFirstAndParentSurname implements repository.PersonRepository.
func (s *Store) FindByFirstAndParentSurname(_ context.Context, firstName, parentSurname string, year int) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := nameutil.NormalizeName(firstName)
	var out []model.Person
	for _, p := range s.sortedPersons() {
		if _, enrolled := s.enrolledIn(p.CMID, year); !enrolled {
			continue
		}
		if nameutil.NormalizeName(p.FirstName) != first {
			continue
		}
		for _, surname := range p.ParentLastNames() {
			if nameutil.LastNameMatches(parentSurname, surname) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

// GetAllForPhoneticMatching implements repository.PersonRepository.
func (s *Store) GetAllForPhoneticMatching(_ context.Context, year int) ([]model.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Person
	for _, p := range s.sortedPersons() {
		if _, enrolled := s.enrolledIn(p.CMID, year); enrolled {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetByPersonAndYear implements repository.AttendeeRepository.
func (s *Store) GetByPersonAndYear(_ context.Context, personCMID, year int) (model.Attendee, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.enrolledIn(personCMID, year)
	return a, ok, nil
}

// BulkGetSessionsForPersons implements repository.AttendeeRepository.
func (s *Store) BulkGetSessionsForPersons(_ context.Context, ids []int, year int) (map[int]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]int, len(ids))
	for _, id := range ids {
		if a, ok := s.enrolledIn(id, year); ok {
			out[id] = a.SessionCMID
		}
	}
	return out, nil
}

// SessionStore exposes Store's session forest as repository.SessionRepository.
// It is a separate type from Store because both PersonRepository and
// SessionRepository declare a FindByCMID method with different return
// types, which a single Go type cannot implement simultaneously.
type SessionStore struct {
	s *Store
}

// Sessions returns the repository.SessionRepository view of this store.
func (s *Store) Sessions() *SessionStore {
	return &SessionStore{s: s}
}

// FindByCMID implements repository.SessionRepository.
func (ss *SessionStore) FindByCMID(_ context.Context, sessionCMID int) (model.Session, bool, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()
	sess, ok := ss.s.sessions[sessionCMID]
	return sess, ok, nil
}

// GetValidBunkingSessionIDs implements repository.SessionRepository: the
// session itself plus any sessions sharing its parent, plus its own
// children.
func (ss *SessionStore) GetValidBunkingSessionIDs(_ context.Context, sessionCMID int) ([]int, error) {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()

	sess, ok := ss.s.sessions[sessionCMID]
	if !ok {
		return []int{sessionCMID}, nil
	}

	valid := map[int]struct{}{sessionCMID: {}}
	for _, other := range ss.s.sessions {
		if sess.ParentCMID != nil && other.CMID == *sess.ParentCMID {
			valid[other.CMID] = struct{}{}
		}
		if other.ParentCMID != nil && sess.ParentCMID != nil && *other.ParentCMID == *sess.ParentCMID {
			valid[other.CMID] = struct{}{}
		}
		if other.ParentCMID != nil && *other.ParentCMID == sessionCMID {
			valid[other.CMID] = struct{}{}
		}
	}

	ids := make([]int, 0, len(valid))
	for id := range valid {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *Store) sortedPersons() []model.Person {
	ids := make([]int, 0, len(s.persons))
	for id := range s.persons {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]model.Person, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.persons[id])
	}
	return out
}
