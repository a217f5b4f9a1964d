// Package services – AnalyticsService
//
// This file implements analytics lookups for single messages and batches.
// Every successful lookup is projected into domain.AnalyticsRecord, whose
// five counters are always present and never negative.
//
// Batch lookups share one authorized client. Items are fetched with bounded
// concurrency, paced by a token bucket, and each item ends in one of four
// outcomes: fetched, absent, failed, or skipped (malformed). Only fetched
// items appear in the result; no single item can fail the batch.
//
// Fetched records are stored as snapshots on a best-effort basis so the last
// known metrics can be listed later without contacting the platform.
package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
	"github.com/tbourn/tg-analytics-gateway/internal/utils"
)

// SnapshotRepo defines the persistence contract for analytics snapshots.
type SnapshotRepo interface {
	// UpsertSnapshots writes or refreshes the given records for the user.
	UpsertSnapshots(ctx context.Context, db *gorm.DB, userID string, recs map[repo.SnapshotKey]domain.AnalyticsRecord) error
	// CountSnapshots returns the number of snapshots for pagination.
	CountSnapshots(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	// ListSnapshotsPage returns a page of snapshots, most recent first.
	ListSnapshotsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.AnalyticsSnapshot, error)
}

// BatchItem is one requested message in a batch lookup.
type BatchItem struct {
	ChatRef   string
	MessageID int
}

type itemOutcome int

const (
	itemSkipped itemOutcome = iota
	itemFetched
	itemAbsent
	itemFailed
)

func (o itemOutcome) String() string {
	switch o {
	case itemFetched:
		return "fetched"
	case itemAbsent:
		return "absent"
	case itemFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// itemResult is the explicit result variant of one message fetch.
type itemResult struct {
	outcome itemOutcome
	record  domain.AnalyticsRecord
	err     error
}

// AnalyticsService fetches message metrics through the registry.
type AnalyticsService struct {
	DB        *gorm.DB
	Snapshots SnapshotRepo
	Registry  *ClientRegistry

	// BatchConcurrency bounds in-flight fetches per batch (>= 1).
	BatchConcurrency int
	// BatchRPS paces fetches per batch; 0 disables pacing.
	BatchRPS float64
}

// FetchOne returns the analytics of a single message.
func (s *AnalyticsService) FetchOne(ctx context.Context, userID, chatRef string, messageID int, creds *domain.Credentials) (domain.AnalyticsRecord, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "FetchOne",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.ref", chatRef),
			attribute.Int("message.id", messageID),
		),
	)
	defer span.End()

	ref, err := domain.ParseChatRef(chatRef)
	if err != nil {
		return domain.AnalyticsRecord{}, configError("chat_id is required")
	}
	if messageID <= 0 {
		return domain.AnalyticsRecord{}, configError("message_id must be a positive integer")
	}

	client, err := s.authorizedClient(ctx, userID, creds)
	if err != nil {
		return domain.AnalyticsRecord{}, err
	}

	res := s.fetch(ctx, client, ref, messageID)
	switch res.outcome {
	case itemFetched:
		s.record(ctx, userID, map[repo.SnapshotKey]domain.AnalyticsRecord{
			{ChatRef: ref.String(), MessageID: messageID}: res.record,
		})
		return res.record, nil
	case itemAbsent:
		return domain.AnalyticsRecord{}, notFound("message not found", nil)
	default:
		span.RecordError(res.err)
		return domain.AnalyticsRecord{}, res.err
	}
}

// FetchBatch returns the analytics of every fetchable item keyed by the
// decimal message id. Malformed, absent and failed items are left out. Only
// failing to obtain an authorized client fails the call.
//
// Two items with the same message id in different chats share a key; the
// later item in request order wins.
func (s *AnalyticsService) FetchBatch(ctx context.Context, userID string, items []BatchItem, creds *domain.Credentials) (map[string]domain.AnalyticsRecord, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "FetchBatch",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("batch.size", len(items)),
		),
	)
	defer span.End()

	client, err := s.authorizedClient(ctx, userID, creds)
	if err != nil {
		return nil, err
	}

	refs := make([]domain.PeerRef, len(items))
	results := make([]itemResult, len(items))

	limit := s.BatchConcurrency
	if limit < 1 {
		limit = 1
	}
	var limiter *rate.Limiter
	if s.BatchRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.BatchRPS), limit)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, it := range items {
		ref, perr := domain.ParseChatRef(it.ChatRef)
		if perr != nil || it.MessageID <= 0 {
			results[i] = itemResult{outcome: itemSkipped}
			continue
		}
		refs[i] = ref
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(gctx); err != nil {
					results[i] = itemResult{outcome: itemFailed, err: fromPlatform(err)}
					return nil
				}
			}
			results[i] = s.fetch(gctx, client, ref, it.MessageID)
			return nil
		})
	}
	// Item failures are carried in results, never returned to the group.
	_ = g.Wait()

	out := make(map[string]domain.AnalyticsRecord, len(items))
	snaps := make(map[repo.SnapshotKey]domain.AnalyticsRecord)
	for i, res := range results {
		batchItems.WithLabelValues(res.outcome.String()).Inc()
		switch res.outcome {
		case itemFetched:
			id := items[i].MessageID
			out[strconv.Itoa(id)] = res.record
			snaps[repo.SnapshotKey{ChatRef: refs[i].String(), MessageID: id}] = res.record
		case itemFailed:
			log.Debug().Err(res.err).
				Str("user_id", userID).
				Str("chat_ref", items[i].ChatRef).
				Int("message_id", items[i].MessageID).
				Msg("batch item failed")
		}
	}
	span.SetAttributes(attribute.Int("batch.fetched", len(out)))

	s.record(ctx, userID, snaps)
	return out, nil
}

// ListSnapshots returns a page of the user's stored snapshots and the total
// count. Invalid page values fall back to defaults.
func (s *AnalyticsService) ListSnapshots(ctx context.Context, userID string, page, pageSize int) ([]domain.AnalyticsSnapshot, int64, error) {
	ctx, span := otel.Tracer("services/AnalyticsService").Start(ctx, "ListSnapshots",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Snapshots.CountSnapshots(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AnalyticsSnapshot{}, 0, nil
	}
	items, err := s.Snapshots.ListSnapshotsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

func (s *AnalyticsService) authorizedClient(ctx context.Context, userID string, creds *domain.Credentials) (platform.Client, error) {
	client, err := s.Registry.Acquire(ctx, userID, creds)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()
	if err := ensureAuthorized(cctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// fetch looks up one message and classifies the outcome.
func (s *AnalyticsService) fetch(ctx context.Context, client platform.Client, ref domain.PeerRef, messageID int) itemResult {
	cctx, cancel := s.Registry.callContext(ctx)
	defer cancel()

	msg, err := client.GetMessage(cctx, ref, messageID)
	switch {
	case errors.Is(err, platform.ErrEntityNotFound):
		return itemResult{outcome: itemFailed, err: notFound("channel/group not found or not accessible", err)}
	case err != nil:
		return itemResult{outcome: itemFailed, err: fromPlatform(err)}
	case msg == nil:
		return itemResult{outcome: itemAbsent}
	default:
		return itemResult{outcome: itemFetched, record: Project(msg)}
	}
}

// record stores snapshots; failures are logged and otherwise ignored.
func (s *AnalyticsService) record(ctx context.Context, userID string, recs map[repo.SnapshotKey]domain.AnalyticsRecord) {
	if s.Snapshots == nil || len(recs) == 0 {
		return
	}
	if err := s.Snapshots.UpsertSnapshots(ctx, s.DB, userID, recs); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Int("records", len(recs)).Msg("store analytics snapshots")
	}
}

// Project maps a platform message onto the normalized analytics record.
// Missing sub-structures count as zero. Voters come from poll results on the
// message itself, falling back to poll results on its media.
func Project(m *domain.Message) domain.AnalyticsRecord {
	var rec domain.AnalyticsRecord
	if m == nil {
		return rec
	}
	if m.Views != nil {
		rec.Views = nonNegative(*m.Views)
	}
	if m.Forwards != nil {
		rec.Forwards = nonNegative(*m.Forwards)
	}
	if m.Replies != nil {
		rec.Replies = nonNegative(m.Replies.Count)
	}
	for _, r := range m.Reactions {
		rec.Reactions += nonNegative(r.Count)
	}

	poll := m.Poll
	if poll == nil && m.Media != nil {
		poll = m.Media.Poll
	}
	if poll != nil && poll.TotalVoters != nil {
		rec.Voters = nonNegative(*poll.TotalVoters)
	}
	return rec
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
