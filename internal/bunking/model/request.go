package model

// RequestType classifies what a parsed bunking request is asking for.
type RequestType string

const (
	RequestBunkWith    RequestType = "BUNK_WITH"
	RequestNotBunkWith RequestType = "NOT_BUNK_WITH"
	RequestAgePreference RequestType = "AGE_PREFERENCE"
)

// AgePreference is the direction of an AGE_PREFERENCE request.
type AgePreference string

const (
	AgeOlder   AgePreference = "OLDER"
	AgeYounger AgePreference = "YOUNGER"
	AgeSame    AgePreference = "SAME"
)

// SourceType records where a request text originated.
type SourceType string

const (
	SourceFamily SourceType = "FAMILY"
	SourceStaff  SourceType = "STAFF"
	SourceNotes  SourceType = "NOTES"
)

// MatchCertainty is the parser's self-reported confidence bucket for the
// name it extracted, consumed as a confidence-scoring signal.
type MatchCertainty string

const (
	MatchExact     MatchCertainty = "exact"
	MatchPartial   MatchCertainty = "partial"
	MatchAmbiguous MatchCertainty = "ambiguous"
	MatchNone      MatchCertainty = "none"
)

// ResolutionTarget replaces the source's "magic string" sentinels
// (LAST_YEAR_BUNKMATES, SIBLING) in target_name with an explicit tagged
// sum. Exactly one field is meaningful per value; Kind says which.
type ResolutionTarget struct {
	Kind ResolutionTargetKind
	Name string        // valid when Kind == TargetNamed
	Pref AgePreference  // valid when Kind == TargetAgePreference
}

type ResolutionTargetKind int

const (
	TargetNamed ResolutionTargetKind = iota
	TargetLastYearBunkmates
	TargetSibling
	TargetAgePreference
)

// NamedTarget builds a ResolutionTarget for an ordinary free-text name.
func NamedTarget(name string) ResolutionTarget {
	return ResolutionTarget{Kind: TargetNamed, Name: name}
}

// LastYearBunkmatesTarget is the sentinel meaning "resolve to last year's
// bunkmates" rather than a parsed name.
func LastYearBunkmatesTarget() ResolutionTarget {
	return ResolutionTarget{Kind: TargetLastYearBunkmates}
}

// SiblingTarget is the sentinel meaning "resolve to the requester's
// sibling(s)".
func SiblingTarget() ResolutionTarget {
	return ResolutionTarget{Kind: TargetSibling}
}

// AgePreferenceTarget wraps an OLDER/YOUNGER/SAME preference.
func AgePreferenceTarget(pref AgePreference) ResolutionTarget {
	return ResolutionTarget{Kind: TargetAgePreference, Pref: pref}
}

// AiHintKind distinguishes the shape of AI-provided disambiguation
// metadata attached to a ParsedRequest. The upstream source passes these
// as free-form dict keys (target_cm_id, target_person_ids,
// ai_provided_person_id, keywords_found); modeling them as a tagged sum
// keeps strategy code from groping through an untyped map.
type AiHintKind int

const (
	AiHintNone AiHintKind = iota
	AiHintSingleID
	AiHintCandidateList
	AiHintHistorical
)

// AiHint carries the AI parser's disambiguation hint, if any.
type AiHint struct {
	Kind        AiHintKind
	SingleID    int
	CandidateIDs []int
}

// ParsedRequest is a single structured request produced by the external
// parse provider, the unit the resolution pipeline consumes.
type ParsedRequest struct {
	RawText        string
	RequestType    RequestType
	Target         ResolutionTarget
	Source         SourceType
	SourceField    string
	AIConfidence   float64
	AIHint         AiHint
	KeywordsFound  []string
	MatchCertainty MatchCertainty
	// Metadata preserves any additional free-form keys the parser attached,
	// for fields not modeled explicitly above. Serialization round-trips
	// unknown keys for audit.
	Metadata map[string]any
}

// HasTargetName reports whether Target names a person directly (as
// opposed to the LastYearBunkmates/Sibling/AgePreference sentinels).
func (r ParsedRequest) HasTargetName() bool {
	return r.Target.Kind == TargetNamed && r.Target.Name != ""
}
