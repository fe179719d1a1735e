package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"rallybot/internal/models"
	"rallybot/internal/repositories"
)

// ErrMalformedDetail marks an event detail page missing expected data.
var ErrMalformedDetail = errors.New("event detail page missing expected data")

// guidPattern extracts the stable numeric event id from a Meetup permalink.
var guidPattern = regexp.MustCompile(`https://www\.meetup\.com/[^/]+/events/([0-9]+)`)

// Normalizer turns raw feed items into canonical events, enriching them
// with classifier output and previously persisted state, and persists
// each one before returning it.
type Normalizer struct {
	repo       repositories.EventRepository
	classifier CategoryClassifier
	parser     *gofeed.Parser
	client     *http.Client
	feedURL    string
}

func NewNormalizer(repo repositories.EventRepository, classifier CategoryClassifier, feedURL string) *Normalizer {
	return &Normalizer{
		repo:       repo,
		classifier: classifier,
		parser:     gofeed.NewParser(),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		feedURL: feedURL,
	}
}

// FetchEvents parses the RSS feed and returns one canonical event per
// item, in feed order. A single item's failure is logged and skipped;
// it never aborts the batch.
func (n *Normalizer) FetchEvents(ctx context.Context) ([]*models.Event, error) {
	feed, err := n.parser.ParseURLWithContext(n.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", n.feedURL, err)
	}

	var events []*models.Event
	for _, item := range feed.Items {
		event, err := n.normalizeItem(ctx, item)
		if err != nil {
			log.Printf("Error processing feed item %q: %v", item.Title, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (n *Normalizer) normalizeItem(ctx context.Context, item *gofeed.Item) (*models.Event, error) {
	meetupID, err := parseMeetupID(item.GUID)
	if err != nil {
		return nil, err
	}

	// Reuse any persisted record as the mutation base so category,
	// snowflake id, and an already-set end time survive the refresh.
	event, err := n.repo.Get(ctx, meetupID)
	if err == repositories.ErrNotFound {
		event = models.NewEvent(meetupID)
	} else if err != nil {
		return nil, err
	}

	description := strings.TrimSpace(item.Description)
	if event.Category == "" {
		event.Category = n.classifier.Classify(ctx, description)
	}

	event.Online = false
	event.Link = item.Link
	event.Title = strings.TrimSpace(item.Title)
	event.Description = models.TruncateDescription(description, item.Link)

	detail, err := n.fetchDetail(ctx, item.Link)
	if err != nil {
		return nil, err
	}

	event.StartTime = detail.start
	if detail.end != nil {
		if detail.end.Before(detail.start) {
			log.Printf("Warning: event %d has end time %s before start time %s, discarding end time",
				meetupID, detail.end.Format(time.RFC3339), detail.start.Format(time.RFC3339))
		} else {
			event.EndTime = detail.end
		}
	}
	event.Location = detail.location
	if strings.EqualFold(detail.location, models.OnlineLocation) {
		event.Online = true
	}

	if err := n.repo.Put(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// eventDetail is the structured payload scraped from an event's own page.
// The feed summary carries no start/end/venue data, so a secondary fetch
// is always required.
type eventDetail struct {
	start    time.Time
	end      *time.Time
	location string
}

func (n *Normalizer) fetchDetail(ctx context.Context, link string) (*eventDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build detail request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event detail %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event detail %s returned status %d", link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse event detail %s: %w", link, err)
	}
	return parseDetail(doc)
}

func parseDetail(doc *goquery.Document) (*eventDetail, error) {
	times := doc.Find("time.block")
	if times.Length() == 0 {
		return nil, fmt.Errorf("%w: no time.block element", ErrMalformedDetail)
	}

	startAttr, ok := times.First().Attr("datetime")
	if !ok {
		return nil, fmt.Errorf("%w: time.block has no datetime attribute", ErrMalformedDetail)
	}
	start, err := time.Parse(time.RFC3339, startAttr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad datetime %q", ErrMalformedDetail, startAttr)
	}

	detail := &eventDetail{start: start}

	// A second timestamp, when the page carries one, is the explicit end.
	if times.Length() > 1 {
		if endAttr, ok := times.Eq(1).Attr("datetime"); ok {
			if end, err := time.Parse(time.RFC3339, endAttr); err == nil {
				detail.end = &end
			}
		}
	}

	location := doc.Find(`[data-testid="location-info"]`)
	if location.Length() == 0 {
		return nil, fmt.Errorf("%w: no location-info element", ErrMalformedDetail)
	}
	detail.location = strings.TrimSpace(location.First().Text())

	return detail, nil
}

func parseMeetupID(guid string) (int64, error) {
	match := guidPattern.FindStringSubmatch(guid)
	if match == nil {
		return 0, fmt.Errorf("guid %q does not match event permalink pattern", guid)
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("guid %q has non-numeric event id: %w", guid, err)
	}
	return id, nil
}
