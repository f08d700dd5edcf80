// Package model holds the request and response types of the HTTP API.
package model

import (
	"time"

	"carpnav/internal/instance"
	"carpnav/internal/pathscan"
	"carpnav/internal/report"
)

// Run statuses.
const (
	StatusSolved = "solved"
	StatusFailed = "failed"
)

// SolveRequest submits one instance. Exactly one of Instance (the text
// format) or Graph must be set.
type SolveRequest struct {
	Name     string          `json:"name,omitempty" validate:"omitempty,max=200"`
	Instance string          `json:"instance,omitempty" validate:"required_without=Graph,excluded_with=Graph"`
	Graph    *instance.Graph `json:"graph,omitempty" validate:"required_without=Instance"`
	Report   bool            `json:"report,omitempty"`
}

// Run is one persisted solve attempt. Listing endpoints leave Solution and
// Report empty.
type Run struct {
	ID          string             `json:"id"`
	Instance    string             `json:"instance"`
	Status      string             `json:"status"`
	Outcome     string             `json:"outcome"`
	Error       string             `json:"error,omitempty"`
	Vertices    int                `json:"vertices"`
	Required    int                `json:"required"`
	Capacity    int64              `json:"capacity"`
	Depot       int                `json:"depot"`
	TotalCost   int64              `json:"totalCost"`
	TotalDemand int64              `json:"totalDemand"`
	RouteCount  int                `json:"routeCount"`
	TotalNS     int64              `json:"totalNs"`
	SolveNS     int64              `json:"solveNs"`
	Solution    *pathscan.Solution `json:"solution,omitempty"`
	Report      *report.Report     `json:"report,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
}

// Summary drops the heavy payloads of r.
func (r Run) Summary() Run {
	r.Solution = nil
	r.Report = nil
	return r
}

// RunList is a page of runs.
type RunList struct {
	Items      []Run  `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// Event is published on the broker and streamed to SSE/WebSocket clients.
type Event struct {
	Type     string         `json:"type"`
	RunID    string         `json:"runId,omitempty"`
	Instance string         `json:"instance,omitempty"`
	TS       string         `json:"ts"`
	Payload  map[string]any `json:"payload,omitempty"`
}
