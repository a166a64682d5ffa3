package models

import (
	"slices"

	"github.com/dmitrijs2005/petmatch/internal/common"
)

// ReportStatus is the lifecycle state of a LostReport.
type ReportStatus string

const (
	ReportActive ReportStatus = "Active"
	ReportFound  ReportStatus = "Found"
)

// SightingStatus is the lifecycle state of a Sighting.
type SightingStatus string

const (
	SightingOnStreet  SightingStatus = "OnStreet"
	SightingSheltered SightingStatus = "Sheltered"
	SightingReunited  SightingStatus = "Reunited"
)

// MatchStatus is the review state of a Match.
type MatchStatus string

const (
	MatchPending   MatchStatus = "Pending"
	MatchConfirmed MatchStatus = "Confirmed"
	MatchRejected  MatchStatus = "Rejected"
)

// Allowed transitions. Anything not listed is rejected; Found is terminal.
var (
	reportTransitions = map[ReportStatus][]ReportStatus{
		ReportActive: {ReportFound},
	}
	sightingTransitions = map[SightingStatus][]SightingStatus{
		SightingOnStreet: {SightingSheltered, SightingReunited},
	}
	matchTransitions = map[MatchStatus][]MatchStatus{
		MatchPending: {MatchConfirmed, MatchRejected},
	}
)

func checkTransition[S ~string](table map[S][]S, from, to S) error {
	if from == to {
		return nil
	}
	if slices.Contains(table[from], to) {
		return nil
	}
	return common.Validationf("status transition %s -> %s is not allowed", from, to)
}

func parseStatus[S ~string](raw string, all ...S) (S, error) {
	for _, s := range all {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", common.Validationf("invalid status %q, allowed: %v", raw, all)
}

func ParseReportStatus(raw string) (ReportStatus, error) {
	return parseStatus(raw, ReportActive, ReportFound)
}

func ParseSightingStatus(raw string) (SightingStatus, error) {
	return parseStatus(raw, SightingOnStreet, SightingSheltered, SightingReunited)
}

func ParseMatchStatus(raw string) (MatchStatus, error) {
	return parseStatus(raw, MatchPending, MatchConfirmed, MatchRejected)
}

// TransitionTo validates moving from s to next. Re-applying the current
// status is accepted as a no-op.
func (s ReportStatus) TransitionTo(next ReportStatus) error {
	return checkTransition(reportTransitions, s, next)
}

func (s SightingStatus) TransitionTo(next SightingStatus) error {
	return checkTransition(sightingTransitions, s, next)
}

func (s MatchStatus) TransitionTo(next MatchStatus) error {
	return checkTransition(matchTransitions, s, next)
}
