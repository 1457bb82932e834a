// Package publish sends due scheduled content to its target platforms.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/dates"
	"backoffice/internal/model"
)

// ErrNotConfigured is recorded for platforms a post targets but no adapter serves.
var ErrNotConfigured = errors.New("platform not configured")

// Platform publishes one post and returns the platform's id for it.
type Platform interface {
	Name() string
	Publish(ctx context.Context, post model.ContentPost) (string, error)
}

// Store is the slice of the content ledger the publisher needs.
type Store interface {
	ListScheduled(ctx context.Context) ([]model.ContentPost, error)
	MarkPublished(ctx context.Context, id uint, out Outcome) error
	AnnotateError(ctx context.Context, id uint, msg string) error
}

// Result is what one platform returned for one post.
type Result struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

// Outcome is written back as a single update per post.
type Outcome struct {
	PublishedAt   time.Time
	Results       map[string]Result
	AnalyticsJSON string
}

// ID returns the platform id recorded for name, empty when it failed or was
// not targeted.
func (o Outcome) ID(name string) string {
	return o.Results[strings.ToLower(name)].ID
}

// Report counts what one run did.
type Report struct {
	Due            int
	Published      int
	Failed         int
	PlatformErrors int
}

type Options struct {
	// PlatformTimeout bounds each platform call. Zero means no extra bound.
	PlatformTimeout time.Duration
}

type Publisher struct {
	store     Store
	platforms map[string]Platform
	clock     dates.Clock
	log       zerolog.Logger
	opts      Options
}

func New(store Store, clock dates.Clock, log zerolog.Logger, opts Options, platforms ...Platform) *Publisher {
	if clock == nil {
		clock = dates.SystemClock
	}
	byName := make(map[string]Platform, len(platforms))
	for _, p := range platforms {
		byName[strings.ToLower(p.Name())] = p
	}
	return &Publisher{
		store:     store,
		platforms: byName,
		clock:     clock,
		log:       log.With().Str("component", "publisher").Logger(),
		opts:      opts,
	}
}

// Run publishes every Scheduled post whose schedule date has passed. A post
// whose write-back fails stays Scheduled and is retried on the next run.
func (p *Publisher) Run(ctx context.Context) (Report, error) {
	rows, err := p.store.ListScheduled(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list scheduled posts: %w", err)
	}

	now := p.clock.Now()
	var rep Report
	for _, post := range rows {
		if !Due(post, now) {
			continue
		}
		rep.Due++

		results := p.fanOut(ctx, post)
		for _, r := range results {
			if r.Error != "" {
				rep.PlatformErrors++
			}
		}

		if err := p.commit(ctx, post, now, results); err != nil {
			rep.Failed++
			p.log.Error().Err(err).Uint("post_id", post.ID).Msg("publish write-back failed")
			if aerr := p.store.AnnotateError(ctx, post.ID, err.Error()); aerr != nil {
				p.log.Warn().Err(aerr).Uint("post_id", post.ID).Msg("annotate error")
			}
			continue
		}
		rep.Published++
		p.log.Info().Uint("post_id", post.ID).Int("platforms", len(results)).Msg("post published")
	}
	return rep, nil
}

func (p *Publisher) commit(ctx context.Context, post model.ContentPost, now time.Time, results map[string]Result) error {
	blob, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return p.store.MarkPublished(ctx, post.ID, Outcome{
		PublishedAt:   now,
		Results:       results,
		AnalyticsJSON: string(blob),
	})
}

// Due reports whether post is Scheduled with a schedule date at or before now.
func Due(post model.ContentPost, now time.Time) bool {
	if !strings.EqualFold(strings.TrimSpace(post.Status), model.ContentScheduled) {
		return false
	}
	at, ok := dates.ParseDate(post.ScheduleDate)
	return ok && dates.IsDue(at, now)
}

// ParsePlatforms splits "Facebook, LinkedIn" into lower-case unique names.
func ParsePlatforms(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// fanOut calls every targeted platform concurrently and waits for all of
// them. Platform failures never cancel siblings.
func (p *Publisher) fanOut(ctx context.Context, post model.ContentPost) map[string]Result {
	names := ParsePlatforms(post.Platforms)
	results := make([]Result, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			results[i] = p.publishTo(ctx, name, post)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out
}

func (p *Publisher) publishTo(ctx context.Context, name string, post model.ContentPost) (res Result) {
	platform, ok := p.platforms[name]
	if !ok {
		return Result{Error: ErrNotConfigured.Error()}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Error: fmt.Sprintf("panic: %v", r)}
		}
		if res.Error != "" {
			p.log.Warn().Str("platform", name).Uint("post_id", post.ID).Str("error", res.Error).Msg("platform publish failed")
		}
	}()

	if p.opts.PlatformTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.PlatformTimeout)
		defer cancel()
	}
	id, err := platform.Publish(ctx, post)
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{ID: id}
}
