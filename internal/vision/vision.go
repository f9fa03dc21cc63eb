// Package vision turns room photos into structured condition assessments
// using a vision-capable model API.
package vision

import "context"

// Report types recognized by the analyzer. Each gets its own inspection
// instructions; unknown values fall back to move-in.
const (
	ReportMoveIn   = "Move-In"
	ReportMoveOut  = "Move-Out"
	ReportPeriodic = "Periodic"
)

// Item is one checklist entry in a room assessment.
type Item struct {
	Name   string `json:"name"`
	Rating string `json:"rating"` // Good, Fair, Poor, or N/A
	Notes  string `json:"notes"`
}

// Assessment is the structured condition record for one room.
type Assessment struct {
	OverallRating string   `json:"overall_rating"`
	Items         []Item   `json:"items"`
	Summary       string   `json:"summary"`
	Flags         []string `json:"flags"`
}

// RoomAnalyzer assesses the condition of a room from its photos. An
// analyzer never fails a whole report over one room: when the model is
// unreachable it returns a degraded placeholder assessment instead of an
// error.
type RoomAnalyzer interface {
	AnalyzeRoom(ctx context.Context, roomName string, photos [][]byte, reportType string) *Assessment
}
