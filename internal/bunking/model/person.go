// Package model holds the plain data types shared across the resolution
// core: roster persons, session enrollment, parsed requests, and the
// outcome types each resolution strategy and the confidence scorer
// produce.
package model

// ParentName is one entry in a person's parent_names_json list.
type ParentName struct {
	First        string
	Last         string
	Relationship string
}

// Person is a camper or staff member on the roster, identified by their
// CampMinder id (cm_id in the upstream system). Immutable for the
// lifetime of a resolution run.
type Person struct {
	CMID          int
	FirstName     string
	LastName      string
	PreferredName string
	Grade         *int
	BirthDate     *string
	School        string
	City          string
	State         string
	SessionCMID   *int
	ParentNames   []ParentName
}

// DisplayName returns "First Last" for logging and metadata, never an
// empty string for a person with at least a first name.
func (p Person) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ParentLastNames returns the distinct non-empty parent surnames, in
// first-seen order, derived from ParentNames.
func (p Person) ParentLastNames() []string {
	seen := make(map[string]bool, len(p.ParentNames))
	var out []string
	for _, pn := range p.ParentNames {
		if pn.Last == "" || seen[pn.Last] {
			continue
		}
		seen[pn.Last] = true
		out = append(out, pn.Last)
	}
	return out
}

// Attendee is a person's enrollment record for a given year: the session
// they're assigned to plus the school/grade/location fields the
// disambiguation strategies read. At most one enrollment exists per
// (person, year).
type Attendee struct {
	PersonCMID    int
	Year          int
	SessionCMID   int
	School        string
	Grade         *int
	City          string
	State         string
	FamilyCMID    *int
	CurrentBunkID *int
}

// BunkAssignment is one person's bunk placement in a past year, used to
// reconstruct historical bunkmate relationships.
type BunkAssignment struct {
	PersonCMID int
	Year       int
	BunkID     int
}

// PriorBunkmates is the result of looking up who shared a person's most
// recent bunk assignment before some year.
type PriorBunkmates struct {
	CMIDs       []int
	PriorBunkID int
}

// SessionType classifies a Session within its session forest.
type SessionType string

const (
	SessionMain     SessionType = "main"
	SessionAG       SessionType = "ag"
	SessionEmbedded SessionType = "embedded"
	SessionTaste    SessionType = "taste"
	SessionFamily   SessionType = "family"
	SessionOther    SessionType = "other"
)

// Session is a single camp session/term. Sessions form a forest: a
// parent main session may have embedded or AG child sessions.
type Session struct {
	CMID           int
	Year           int
	Name           string
	Type           SessionType
	ParentCMID     *int
}
