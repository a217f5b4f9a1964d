package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tbourn/tg-analytics-gateway/internal/domain"
	"github.com/tbourn/tg-analytics-gateway/internal/platform"
	"github.com/tbourn/tg-analytics-gateway/internal/repo"
)

func fullMessage(id int) *domain.Message {
	return &domain.Message{
		ID:       id,
		Views:    intp(1520),
		Forwards: intp(12),
		Replies:  &domain.ReplyThread{Count: 4},
		Reactions: []domain.ReactionGroup{
			{Emoticon: "👍", Count: 30},
			{Emoticon: "🔥", Count: 7},
		},
	}
}

func newTestAnalytics(setup func(c *fakeClient)) (*AnalyticsService, *fakeFactory, *fakeSnapshotRepo) {
	f := &fakeFactory{setup: setup}
	snaps := newFakeSnapshotRepo()
	return &AnalyticsService{
		Snapshots:        snaps,
		Registry:         newTestRegistry(f, &fakeSessions{}),
		BatchConcurrency: 3,
		BatchRPS:         0,
	}, f, snaps
}

func TestProject(t *testing.T) {
	cases := []struct {
		name string
		msg  *domain.Message
		want domain.AnalyticsRecord
	}{
		{"nil", nil, domain.AnalyticsRecord{}},
		{"bare", &domain.Message{ID: 1}, domain.AnalyticsRecord{}},
		{"full", fullMessage(1), domain.AnalyticsRecord{Views: 1520, Forwards: 12, Replies: 4, Reactions: 37}},
		{"direct poll", &domain.Message{Poll: &domain.PollResults{TotalVoters: intp(9)}}, domain.AnalyticsRecord{Voters: 9}},
		{"media poll fallback", &domain.Message{Media: &domain.Media{Poll: &domain.PollResults{TotalVoters: intp(5)}}}, domain.AnalyticsRecord{Voters: 5}},
		{"direct poll wins", &domain.Message{
			Poll:  &domain.PollResults{TotalVoters: intp(3)},
			Media: &domain.Media{Poll: &domain.PollResults{TotalVoters: intp(99)}},
		}, domain.AnalyticsRecord{Voters: 3}},
		{"poll without voters", &domain.Message{Media: &domain.Media{Poll: &domain.PollResults{}}}, domain.AnalyticsRecord{}},
		{"negatives clamp", &domain.Message{
			Views: intp(-1), Forwards: intp(-2), Replies: &domain.ReplyThread{Count: -3},
			Reactions: []domain.ReactionGroup{{Count: -4}, {Count: 2}},
		}, domain.AnalyticsRecord{Reactions: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Project(tc.msg)
			if got != tc.want {
				t.Fatalf("Project = %+v, want %+v", got, tc.want)
			}
			if got.Views < 0 || got.Forwards < 0 || got.Replies < 0 || got.Reactions < 0 || got.Voters < 0 {
				t.Fatalf("negative field in %+v", got)
			}
		})
	}
}

func TestFetchOne_NumericAndHandleRefs(t *testing.T) {
	s, f, snaps := newTestAnalytics(func(c *fakeClient) {
		c.messages = map[string]*domain.Message{
			"-1001234567890/10": fullMessage(10),
			"somechannel/11":    {ID: 11, Views: intp(3)},
		}
	})
	ctx := context.Background()

	rec, err := s.FetchOne(ctx, "u1", "-1001234567890", 10, creds(1))
	if err != nil {
		t.Fatalf("numeric ref: %v", err)
	}
	if rec.Views != 1520 || rec.Reactions != 37 || rec.Replies != 4 {
		t.Fatalf("numeric ref record = %+v", rec)
	}

	rec, err = s.FetchOne(ctx, "u1", "@somechannel", 11, nil)
	if err != nil {
		t.Fatalf("handle ref: %v", err)
	}
	if rec != (domain.AnalyticsRecord{Views: 3}) {
		t.Fatalf("handle ref record = %+v", rec)
	}

	refs := f.last().refs
	if len(refs) != 2 || !refs[0].Numeric() || refs[0].ID != -1001234567890 || refs[1].Numeric() || refs[1].Username != "somechannel" {
		t.Fatalf("resolved refs = %+v", refs)
	}

	if got := len(snaps.rows["u1"]); got != 2 {
		t.Fatalf("snapshots stored = %d, want 2", got)
	}
	if _, ok := snaps.rows["u1"][repo.SnapshotKey{ChatRef: "somechannel", MessageID: 11}]; !ok {
		t.Fatalf("handle snapshot key not normalized: %+v", snaps.rows["u1"])
	}
}

func TestFetchOne_Errors(t *testing.T) {
	ctx := context.Background()

	s, _, _ := newTestAnalytics(func(c *fakeClient) {
		c.getErrs = map[string]error{
			"ghost":        fmt.Errorf("resolve: %w", platform.ErrEntityNotFound),
			"flaky/1":      errors.New("RPC_CALL_FAIL"),
			"notconnected": platform.ErrNotConnected,
		}
	})

	if _, err := s.FetchOne(ctx, "u1", "chan", 404, creds(1)); !errors.Is(err, ErrNotFound) || err.Error() != "message not found" {
		t.Fatalf("absent message: %v", err)
	}
	_, err := s.FetchOne(ctx, "u1", "ghost", 1, nil)
	if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), "not found or not accessible") {
		t.Fatalf("missing entity: %v", err)
	}
	_, err = s.FetchOne(ctx, "u1", "flaky", 1, nil)
	if !errors.Is(err, ErrPlatform) || err.Error() != "RPC_CALL_FAIL" {
		t.Fatalf("platform failure must carry the original message: %v", err)
	}
	if _, err := s.FetchOne(ctx, "u1", "notconnected", 1, nil); !errors.Is(err, ErrConnection) {
		t.Fatalf("not connected: %v", err)
	}
	if _, err := s.FetchOne(ctx, "u1", "", 1, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("blank chat: %v", err)
	}
	if _, err := s.FetchOne(ctx, "u1", "chan", 0, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("zero message id: %v", err)
	}
}

func TestFetchOne_RequiresAuthorization(t *testing.T) {
	s, f, _ := newTestAnalytics(func(c *fakeClient) { c.authorized = false })
	if _, err := s.FetchOne(context.Background(), "u1", "chan", 1, creds(1)); !errors.Is(err, ErrAuth) {
		t.Fatalf("want ErrAuth, got %v", err)
	}
	if f.last().gets.Load() != 0 {
		t.Fatalf("no fetch expected for an unauthorized client")
	}
}

func TestFetchOne_SnapshotFailureIgnored(t *testing.T) {
	s, _, snaps := newTestAnalytics(func(c *fakeClient) {
		c.messages = map[string]*domain.Message{"chan/1": fullMessage(1)}
	})
	snaps.upsertErr = errBoom
	if _, err := s.FetchOne(context.Background(), "u1", "chan", 1, creds(1)); err != nil {
		t.Fatalf("snapshot failure must not fail the lookup: %v", err)
	}
	if snaps.calls != 1 {
		t.Fatalf("snapshot write attempted %d times", snaps.calls)
	}
}

func TestFetchBatch_SkipsMalformedItems(t *testing.T) {
	s, f, _ := newTestAnalytics(func(c *fakeClient) {
		c.messages = map[string]*domain.Message{
			"100/5": fullMessage(5),
			"/6":    fullMessage(6),
		}
	})

	got, err := s.FetchBatch(context.Background(), "u1", []BatchItem{
		{ChatRef: "100", MessageID: 5},
		{ChatRef: "", MessageID: 6},
	}, creds(1))
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("result = %+v, want only \"5\"", got)
	}
	if _, ok := got["5"]; !ok {
		t.Fatalf("missing key \"5\": %+v", got)
	}
	if f.last().gets.Load() != 1 {
		t.Fatalf("malformed item must not be fetched, gets=%d", f.last().gets.Load())
	}
}

func TestFetchBatch_PartialFailures(t *testing.T) {
	const n = 12
	s, _, snaps := newTestAnalytics(func(c *fakeClient) {
		c.messages = map[string]*domain.Message{}
		c.getErrs = map[string]error{
			"ghost":   platform.ErrEntityNotFound,
			"chan/4":  errors.New("FLOOD_WAIT"),
			"chan/10": errors.New("MSG_ID_INVALID"),
		}
		for i := 1; i <= n; i++ {
			m := fullMessage(i)
			if i%3 == 0 {
				m = &domain.Message{ID: i, Media: &domain.Media{Poll: &domain.PollResults{TotalVoters: intp(i)}}}
			}
			c.messages[fmt.Sprintf("chan/%d", i)] = m
		}
	})

	items := make([]BatchItem, 0, n+4)
	for i := 1; i <= n; i++ {
		items = append(items, BatchItem{ChatRef: "chan", MessageID: i})
	}
	items = append(items,
		BatchItem{ChatRef: "ghost", MessageID: 100}, // unreachable entity
		BatchItem{ChatRef: "chan", MessageID: 200},  // absent
		BatchItem{ChatRef: "chan", MessageID: 0},    // malformed
		BatchItem{ChatRef: "   ", MessageID: 3},     // malformed
	)
	// Invalid or unreachable: chan/4, chan/10, ghost, 200, and the two malformed items.
	const invalid = 6

	got, err := s.FetchBatch(context.Background(), "u1", items, creds(1))
	if err != nil {
		t.Fatalf("FetchBatch must not fail: %v", err)
	}
	if len(got) != len(items)-invalid {
		t.Fatalf("len(result) = %d, want %d", len(got), len(items)-invalid)
	}
	for k, rec := range got {
		if rec.Views < 0 || rec.Forwards < 0 || rec.Replies < 0 || rec.Reactions < 0 || rec.Voters < 0 {
			t.Fatalf("negative field in %s: %+v", k, rec)
		}
	}
	if _, ok := got["4"]; ok {
		t.Fatalf("failed item leaked into result")
	}
	if got["6"].Voters != 6 || got["1"].Views != 1520 {
		t.Fatalf("projections: 6=%+v 1=%+v", got["6"], got["1"])
	}
	if len(snaps.rows["u1"]) != len(got) {
		t.Fatalf("snapshots = %d, want %d", len(snaps.rows["u1"]), len(got))
	}
}

func TestFetchBatch_AcquireFailureFailsWholeBatch(t *testing.T) {
	s, _, _ := newTestAnalytics(nil)
	if _, err := s.FetchBatch(context.Background(), "u1", []BatchItem{{ChatRef: "c", MessageID: 1}}, nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("no client: want ErrConfiguration, got %v", err)
	}

	s, _, _ = newTestAnalytics(func(c *fakeClient) { c.authorized = false })
	if _, err := s.FetchBatch(context.Background(), "u1", []BatchItem{{ChatRef: "c", MessageID: 1}}, creds(1)); !errors.Is(err, ErrAuth) {
		t.Fatalf("unauthorized: want ErrAuth, got %v", err)
	}
}

func TestFetchBatch_EmptyAndPaced(t *testing.T) {
	s, f, _ := newTestAnalytics(func(c *fakeClient) {
		c.messages = map[string]*domain.Message{"c/1": fullMessage(1), "c/2": fullMessage(2)}
	})
	got, err := s.FetchBatch(context.Background(), "u1", nil, creds(1))
	if err != nil || len(got) != 0 {
		t.Fatalf("empty batch = %+v, %v", got, err)
	}

	s.BatchRPS = 1000
	s.BatchConcurrency = 0 // clamps to 1
	got, err = s.FetchBatch(context.Background(), "u1", []BatchItem{{"c", 1}, {"c", 2}}, nil)
	if err != nil || len(got) != 2 {
		t.Fatalf("paced batch = %+v, %v", got, err)
	}
	if f.count() != 1 {
		t.Fatalf("batch must reuse one client, built %d", f.count())
	}
}

func TestListSnapshots_Paging(t *testing.T) {
	s, _, snaps := newTestAnalytics(nil)
	ctx := context.Background()

	items, total, err := s.ListSnapshots(ctx, "u1", 0, 0)
	if err != nil || total != 0 || len(items) != 0 || items == nil {
		t.Fatalf("empty = %v %d %v", items, total, err)
	}

	recs := map[repo.SnapshotKey]domain.AnalyticsRecord{}
	for i := 1; i <= 5; i++ {
		recs[repo.SnapshotKey{ChatRef: "c", MessageID: i}] = domain.AnalyticsRecord{Views: i}
	}
	_ = snaps.UpsertSnapshots(ctx, nil, "u1", recs)

	items, total, err = s.ListSnapshots(ctx, "u1", 2, 2)
	if err != nil || total != 5 || len(items) != 2 || items[0].MessageID != 3 {
		t.Fatalf("page 2 = %+v %d %v", items, total, err)
	}

	snaps.countErr = errBoom
	if _, _, err := s.ListSnapshots(ctx, "u1", 1, 10); !errors.Is(err, errBoom) {
		t.Fatalf("count error: %v", err)
	}
}
