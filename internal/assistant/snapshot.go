package assistant

import (
	"context"
	"time"
)

// Source supplies the dashboard metrics the assistant answers from.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// ThreatCount is a detection category and its recent volume.
type ThreatCount struct {
	Type  string
	Count int
}

// ThreatFamily is a malware or attack family with its recent direction.
type ThreatFamily struct {
	Name  string
	Count int
	Trend string
}

// Campaign is a group of related threats tracked over time.
type Campaign struct {
	Name        string
	Status      string
	ThreatCount int
	FirstSeen   time.Time
}

// Active reports whether the campaign is still running.
func (c Campaign) Active() bool {
	switch c.Status {
	case "active", "ongoing":
		return true
	}
	return false
}

// Snapshot is the tenant's current security posture. Slices are ordered by
// volume, highest first.
type Snapshot struct {
	SecurityScore     int
	ProtectionRate    float64 // percent
	ResponseTime      time.Duration
	FalsePositiveRate float64 // percent
	TotalScanned      int
	Quarantined       int
	AIThreats         []ThreatCount
	ThreatFamilies    []ThreatFamily
	Campaigns         []Campaign
}

// IsEmpty reports whether there is no scan data to answer from.
func (s *Snapshot) IsEmpty() bool {
	if s == nil {
		return true
	}
	return s.TotalScanned == 0 &&
		len(s.AIThreats) == 0 &&
		len(s.ThreatFamilies) == 0 &&
		len(s.Campaigns) == 0
}

func (s *Snapshot) totalAIThreats() int {
	n := 0
	for _, t := range s.AIThreats {
		n += t.Count
	}
	return n
}

func (s *Snapshot) totalIncidents() int {
	n := 0
	for _, f := range s.ThreatFamilies {
		n += f.Count
	}
	return n
}

func (s *Snapshot) activeCampaigns() []Campaign {
	var out []Campaign
	for _, c := range s.Campaigns {
		if c.Active() {
			out = append(out, c)
		}
	}
	return out
}
