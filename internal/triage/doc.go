// Package triage provides the business boundary for apex message triage.
// It defines the heuristic Engine (indicator extraction, scoring, classification,
// enrichment merge, recommendations), the Service that wraps it with notification
// dispatch, and the domain models shared with the HTTP layer.
package triage
