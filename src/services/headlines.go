package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/tradevane/tradevane/src/models"
)

// HeadlineProvider supplies the contextual news headlines captured into a
// trade snapshot.
type HeadlineProvider interface {
	Headlines(ctx context.Context, symbol string, at time.Time) []models.ContextHeadline
}

// StaticHeadlineProvider serves deterministic placeholder headlines so that
// snapshots are complete without a news API key.
type StaticHeadlineProvider struct{}

var staticHeadlines = []string{
	"%s rallies as sector momentum builds",
	"Analysts split on %s outlook after earnings",
	"%s trades sideways ahead of fed minutes",
	"Institutional flows pick up in %s",
	"Options activity surges in %s weeklies",
}

func (p *StaticHeadlineProvider) Headlines(ctx context.Context, symbol string, at time.Time) []models.ContextHeadline {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	start := int(h.Sum32() % uint32(len(staticHeadlines)))

	headlines := make([]models.ContextHeadline, 0, 3)
	for i := 0; i < 3; i++ {
		template := staticHeadlines[(start+i)%len(staticHeadlines)]
		headlines = append(headlines, models.ContextHeadline{
			Headline: fmt.Sprintf(template, symbol),
			Source:   "sandbox-wire",
			Time:     at.Add(-time.Duration(i+1) * time.Hour),
		})
	}

	return headlines
}
