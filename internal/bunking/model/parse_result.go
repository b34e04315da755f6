package model

// ParseRequestContext carries the per-submission identifiers a resolution
// case needs beyond the requests themselves: who submitted the form, in
// which session/year, and their grade when known (used by the AI
// candidate-list scorer's grade-proximity fallback).
type ParseRequestContext struct {
	RequesterCMID  int
	RequesterGrade *int
	SessionCMID    int
	Year           int
}

// ParseResult is one free-text submission's parse outcome: the context it
// was parsed under, plus every request the parser extracted from the raw
// text. A submission that failed to parse at all carries Valid=false and
// an empty ParsedRequests.
type ParseResult struct {
	Context        ParseRequestContext
	ParsedRequests []ParsedRequest
	Valid          bool
}
