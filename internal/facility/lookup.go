package facility

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/ava/internal/hermes"
	"github.com/MikeSquared-Agency/ava/internal/places"
)

// MaxResults is how many facilities a search returns at most.
const MaxResults = 3

// Filters are the optional lifestyle preferences of a search.
type Filters struct {
	PetFriendly  bool
	SocialActive bool
	QuietPrivate bool
	Religious    bool
}

// Record is a facility as returned to clients.
type Record struct {
	PlaceID    string   `json:"placeId"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Rating     *float64 `json:"rating"`
	MapsURL    string   `json:"mapsUrl"`
	Subscribed bool     `json:"subscribed"`
}

// Searcher runs a free-text places query.
type Searcher interface {
	TextSearch(ctx context.Context, query string) ([]places.Place, error)
}

// SubscriptionSource reports which places are subscribed facilities.
type SubscriptionSource interface {
	Subscribed(ctx context.Context, placeIDs []string) (map[string]bool, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(subject string, data any) error
}

type Lookup struct {
	places Searcher
	subs   SubscriptionSource
	events Publisher
	logger *slog.Logger
}

// New creates a Lookup. subs and events may be nil; without subs no facility
// is subscribed.
func New(p Searcher, subs SubscriptionSource, events Publisher, logger *slog.Logger) *Lookup {
	return &Lookup{places: p, subs: subs, events: events, logger: logger}
}

// Search queries the places service once and returns at most MaxResults
// facilities, subscribed ones first.
func (l *Lookup) Search(ctx context.Context, location string, f Filters) ([]Record, error) {
	query := BuildQuery(location, f)
	log := l.logger.With("location", location, "query", query)

	results, err := l.places.TextSearch(ctx, query)
	if err != nil {
		log.Error("facility search failed", "error", err)
		return nil, fmt.Errorf("search facilities: %w", err)
	}

	records := make([]Record, 0, len(results))
	for _, p := range results {
		records = append(records, Record{
			PlaceID: p.PlaceID,
			Name:    p.Name,
			Address: p.FormattedAddress,
			Rating:  p.Rating,
			MapsURL: places.MapsURL(p),
		})
	}
	l.markSubscribed(ctx, records)

	Rank(records)
	if len(records) > MaxResults {
		records = records[:MaxResults]
	}

	log.Info("facility search complete", "raw_results", len(results), "returned", len(records))
	if l.events != nil {
		if err := l.events.Publish(hermes.SubjectFacilitiesSearched, hermes.FacilitiesSearched{
			EventID:   hermes.NewEventID(),
			Location:  location,
			Query:     query,
			Results:   len(records),
			Timestamp: time.Now().UTC(),
		}); err != nil {
			log.Warn("failed to publish event", "error", err)
		}
	}
	return records, nil
}

// BuildQuery renders the free-text query for a location and filter set.
func BuildQuery(location string, f Filters) string {
	parts := []string{"assisted living facility in " + strings.TrimSpace(location)}
	if f.PetFriendly {
		parts = append(parts, "pet-friendly")
	}
	if f.SocialActive {
		parts = append(parts, "social activities")
	}
	if f.QuietPrivate {
		parts = append(parts, "quiet private")
	}
	if f.Religious {
		parts = append(parts, "religious affiliation")
	}
	return strings.Join(parts, " ")
}

// Rank orders records subscribed-first, keeping the incoming order otherwise.
func Rank(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return ranksBefore(records[i], records[j])
	})
}

// ranksBefore reports whether a must sort before b.
func ranksBefore(a, b Record) bool {
	return a.Subscribed && !b.Subscribed
}

// markSubscribed sets Subscribed from the subscription source. A failing
// source leaves every record unsubscribed.
func (l *Lookup) markSubscribed(ctx context.Context, records []Record) {
	if l.subs == nil || len(records) == 0 {
		return
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if r.PlaceID != "" {
			ids = append(ids, r.PlaceID)
		}
	}

	subscribed, err := l.subs.Subscribed(ctx, ids)
	if err != nil {
		l.logger.Warn("subscription lookup failed, ranking without it", "error", err)
		return
	}
	for i := range records {
		records[i].Subscribed = subscribed[records[i].PlaceID]
	}
}
