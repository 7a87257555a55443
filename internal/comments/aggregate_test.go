package comments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/vk"
)

type fakeFetcher struct {
	calls []vk.CommentsQuery
	pages func(q vk.CommentsQuery) (vk.CommentsPage, error)
}

func (f *fakeFetcher) FetchComments(ctx context.Context, token string, q vk.CommentsQuery) (vk.CommentsPage, error) {
	f.calls = append(f.calls, q)
	return f.pages(q)
}

type sleepRecorder struct {
	n int
	d time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) bool {
	s.n++
	s.d = d
	return true
}

func newTestAggregator(f PageFetcher) (*Aggregator, *sleepRecorder) {
	rec := &sleepRecorder{}
	a := NewAggregator(f)
	a.SleepFn = rec.sleep
	return a, rec
}

func rawComments(from, n int) []vk.RawComment {
	out := make([]vk.RawComment, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, vk.RawComment{ID: int64(from + i), FromID: 1, Date: 1700000000})
	}
	return out
}

func TestAggregateAuthorMissKeepsReference(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		return vk.CommentsPage{Items: []vk.RawComment{{ID: 1, FromID: 42, Date: 0, Text: "x"}}}, nil
	}}
	a, _ := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", -1, 2)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got := res.Comments[0].From
	if got.ID != 42 || got.Name != "" || got.ScreenName != "" {
		t.Fatalf("from=%+v", got)
	}
	b, _ := json.Marshal(got)
	if string(b) != `{"id":42}` {
		t.Fatalf("json=%s", b)
	}
}

func TestAggregateResolvesPeopleAndGroups(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		return vk.CommentsPage{
			Items: []vk.RawComment{
				{ID: 1, FromID: 7, Date: 1700000000, Likes: &vk.RawLikes{Count: 4}, Attachments: []vk.RawAttachment{{Type: "photo"}, {Type: "video"}}},
				{ID: 2, FromID: -9, Date: 1700000001},
			},
			Profiles: []vk.Profile{{ID: 7, FirstName: "Ivan", LastName: "Petrov", Domain: "ivan"}},
			Groups:   []vk.Group{{ID: 9, Name: "Club", ScreenName: "club9"}},
		}, nil
	}}
	a, _ := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", -9, 5)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if res.OwnerID != -9 || res.VideoID != 5 || res.TotalTopLevel != 2 {
		t.Fatalf("result header=%+v", res)
	}
	p := res.Comments[0]
	if p.From != (Author{ID: 7, Name: "Ivan Petrov", ScreenName: "ivan"}) {
		t.Fatalf("person=%+v", p.From)
	}
	if p.Likes != 4 || len(p.Attachments) != 2 || p.Attachments[1].Type != "video" {
		t.Fatalf("node=%+v", p)
	}
	if p.DateISO != "2023-11-14T22:13:20.000Z" {
		t.Fatalf("date_iso=%q", p.DateISO)
	}
	if p.ParentID != nil {
		t.Fatalf("top-level parent_id=%v", *p.ParentID)
	}
	g := res.Comments[1].From
	if g != (Author{ID: -9, Name: "Club", ScreenName: "club9"}) {
		t.Fatalf("group=%+v", g)
	}
}

func TestAggregateMultipleOfPageSizeMakesTrailingRequest(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		switch q.Offset {
		case 0, 100:
			return vk.CommentsPage{Items: rawComments(q.Offset+1, 100)}, nil
		default:
			return vk.CommentsPage{}, nil
		}
	}}
	a, rec := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", 1, 2)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(f.calls) != 3 {
		t.Fatalf("requests=%d, want 3", len(f.calls))
	}
	for i, q := range f.calls {
		if q.Offset != i*100 || q.Count != 100 || q.Sort != "asc" || q.CommentID != 0 {
			t.Fatalf("call %d=%+v", i, q)
		}
	}
	if res.TotalTopLevel != 200 || res.Comments[199].ID != 200 {
		t.Fatalf("top-level=%d last=%d", res.TotalTopLevel, res.Comments[199].ID)
	}
	if rec.n != 2 || rec.d != DefaultInterval {
		t.Fatalf("pauses=%d interval=%s", rec.n, rec.d)
	}
}

func TestAggregateFetchesIncompleteThread(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		if q.CommentID == 0 {
			return vk.CommentsPage{Items: []vk.RawComment{{
				ID: 10, FromID: 1,
				Thread: &vk.RawThread{Count: 2, Items: []vk.RawComment{{ID: 11, FromID: 1, ParentsStack: []int64{10}}}},
			}}}, nil
		}
		return vk.CommentsPage{
			Items: []vk.RawComment{
				{ID: 11, FromID: 3, ParentsStack: []int64{10}},
				{ID: 12, FromID: 3, ParentStack: []int64{10}},
			},
			Profiles: []vk.Profile{{ID: 3, FirstName: "A", LastName: "B", Domain: "ab"}},
		}, nil
	}}
	a, rec := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", -5, 6)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(f.calls) != 2 {
		t.Fatalf("requests=%d, want 2", len(f.calls))
	}
	if f.calls[1].CommentID != 10 || f.calls[1].Offset != 0 {
		t.Fatalf("thread call=%+v", f.calls[1])
	}
	if rec.n != 1 {
		t.Fatalf("pauses=%d, want 1", rec.n)
	}
	replies := res.Comments[0].Replies
	if len(replies) != 2 || replies[0].ID != 11 || replies[1].ID != 12 {
		t.Fatalf("replies=%+v", replies)
	}
	for _, r := range replies {
		if r.ParentID == nil || *r.ParentID != 10 {
			t.Fatalf("reply %d parent_id=%v", r.ID, r.ParentID)
		}
		if r.From.ScreenName != "ab" {
			t.Fatalf("reply author=%+v", r.From)
		}
	}
}

func TestAggregateUsesCompleteInlineThread(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		return vk.CommentsPage{
			Items: []vk.RawComment{{
				ID: 1, FromID: 2,
				Thread: &vk.RawThread{
					Count:    1,
					Items:    []vk.RawComment{{ID: 2, FromID: 8, ParentsStack: []int64{1}}},
					Profiles: []vk.Profile{{ID: 8, FirstName: "In", LastName: "Thread", Domain: "inthread"}},
				},
			}},
			// The page table must not leak into the thread.
			Profiles: []vk.Profile{{ID: 8, FirstName: "Top", LastName: "Page", Domain: "top"}},
		}, nil
	}}
	a, _ := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", 1, 1)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("requests=%d, want 1", len(f.calls))
	}
	r := res.Comments[0].Replies
	if len(r) != 1 || r[0].From.ScreenName != "inthread" {
		t.Fatalf("replies=%+v", r)
	}
	if res.Comments[0].Replies[0].Replies == nil {
		t.Fatalf("replies must be an empty slice, not nil")
	}
}

func TestAggregateCommentsClosed(t *testing.T) {
	srvErr := crawler.Error{Kind: crawler.ErrorKindResourceClosed, Code: vk.CodeCommentsClosed, Msg: vk.MsgCommentsClosed}
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		return vk.CommentsPage{}, srvErr
	}}
	a, _ := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", 1, 2)
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "801: comments are disabled for this video" {
		t.Fatalf("msg=%q", err.Error())
	}
	if crawler.KindOf(err) != crawler.ErrorKindResourceClosed {
		t.Fatalf("kind=%s", crawler.KindOf(err))
	}
	if res.Comments != nil {
		t.Fatalf("partial result returned: %+v", res)
	}
}

func TestAggregateNestedFailureAbortsWithoutPartialResult(t *testing.T) {
	boom := errors.New("connection reset")
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		if q.CommentID != 0 {
			return vk.CommentsPage{}, crawler.NewTransportError("/method/video.getComments", boom)
		}
		return vk.CommentsPage{Items: []vk.RawComment{{ID: 1, Thread: &vk.RawThread{Count: 5}}}}, nil
	}}
	a, _ := newTestAggregator(f)

	res, err := a.Aggregate(context.Background(), "tok", 1, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want wrapped transport error", err)
	}
	if crawler.KindOf(err) != crawler.ErrorKindTransport {
		t.Fatalf("kind=%s", crawler.KindOf(err))
	}
	if res.TotalTopLevel != 0 || res.Comments != nil {
		t.Fatalf("partial result returned: %+v", res)
	}
}

func TestAggregateCanceledDuringPause(t *testing.T) {
	f := &fakeFetcher{pages: func(q vk.CommentsQuery) (vk.CommentsPage, error) {
		return vk.CommentsPage{Items: rawComments(q.Offset, 100)}, nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAggregator(f)
	a.SleepFn = func(context.Context, time.Duration) bool {
		cancel()
		return false
	}

	_, err := a.Aggregate(ctx, "tok", 1, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("requests=%d, want 1", len(f.calls))
	}
}

func TestCount(t *testing.T) {
	forest := []Node{{ID: 1, Replies: []Node{{ID: 2}, {ID: 3}}}, {ID: 4}}
	if got := Count(forest); got != 4 {
		t.Fatalf("Count=%d", got)
	}
}
