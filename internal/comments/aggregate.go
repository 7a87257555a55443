package comments

import (
	"context"
	"time"

	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/metrics"
	"vk-comments-exporter/internal/vk"
)

const (
	DefaultPageSize = 100
	DefaultInterval = 350 * time.Millisecond
	sortAscending   = "asc"
)

// PageFetcher returns one page of video.getComments. *vk.Client implements it.
type PageFetcher interface {
	FetchComments(ctx context.Context, token string, q vk.CommentsQuery) (vk.CommentsPage, error)
}

// Aggregator walks the top-level comment pages of a video and then each
// top-level comment's reply thread, producing one ordered forest.
type Aggregator struct {
	Fetcher  PageFetcher
	PageSize int
	Interval time.Duration
	// SleepFn replaces crawler.Sleep for the inter-request pause in tests.
	SleepFn func(context.Context, time.Duration) bool
}

func NewAggregator(f PageFetcher) *Aggregator {
	return &Aggregator{Fetcher: f, PageSize: DefaultPageSize, Interval: DefaultInterval}
}

// scope selects what a page walk lists. A zero commentID means the video's
// top-level comments.
type scope struct {
	ownerID   int64
	videoID   int64
	commentID int64
}

type pagedItem struct {
	raw  vk.RawComment
	node Node
}

// Aggregate fetches the complete comment tree. Requests are strictly
// sequential with a fixed pause before each one except the first. Any page
// failure aborts the whole call.
func (a *Aggregator) Aggregate(ctx context.Context, token string, ownerID, videoID int64) (Result, error) {
	start := time.Now()
	pacer := crawler.NewPacer(a.interval())
	pacer.SleepFn = a.SleepFn

	res, err := a.aggregate(ctx, pacer, token, ownerID, videoID)
	elapsed := time.Since(start)
	metrics.AggregationDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.AggregationsTotal.WithLabelValues(string(crawler.KindOf(err))).Inc()
		logger.Warn("aggregation failed", "owner_id", ownerID, "video_id", videoID, "requests", pacer.Calls(), "err", err)
		return Result{}, err
	}

	total := Count(res.Comments)
	metrics.AggregationsTotal.WithLabelValues("ok").Inc()
	metrics.CommentsAggregated.Add(float64(total))
	logger.Info("aggregation finished",
		"owner_id", ownerID,
		"video_id", videoID,
		"top_level", res.TotalTopLevel,
		"total", total,
		"requests", pacer.Calls(),
		"elapsed", elapsed,
	)
	return res, nil
}

func (a *Aggregator) aggregate(ctx context.Context, pacer *crawler.Pacer, token string, ownerID, videoID int64) (Result, error) {
	top, err := a.fetchScope(ctx, pacer, token, scope{ownerID: ownerID, videoID: videoID})
	if err != nil {
		return Result{}, err
	}

	forest := make([]Node, 0, len(top))
	for _, it := range top {
		node := it.node
		replies, err := a.resolveReplies(ctx, pacer, token, ownerID, videoID, it.raw)
		if err != nil {
			return Result{}, err
		}
		node.Replies = replies
		forest = append(forest, node)
	}

	return Result{
		OwnerID:       ownerID,
		VideoID:       videoID,
		TotalTopLevel: len(forest),
		Comments:      forest,
	}, nil
}

// resolveReplies uses the inlined thread when it is complete and pages the
// thread otherwise.
func (a *Aggregator) resolveReplies(ctx context.Context, pacer *crawler.Pacer, token string, ownerID, videoID int64, raw vk.RawComment) ([]Node, error) {
	th := raw.Thread
	if th == nil {
		return []Node{}, nil
	}
	if th.Count > len(th.Items) {
		items, err := a.fetchScope(ctx, pacer, token, scope{ownerID: ownerID, videoID: videoID, commentID: raw.ID})
		if err != nil {
			return nil, err
		}
		out := make([]Node, 0, len(items))
		for _, it := range items {
			out = append(out, it.node)
		}
		return out, nil
	}
	return normalizeAll(th.Items, newAuthorIndex(th.Profiles, th.Groups)), nil
}

// fetchScope pages through one scope until a page comes back shorter than the
// page size. Each page's authors resolve only against that page's tables.
func (a *Aggregator) fetchScope(ctx context.Context, pacer *crawler.Pacer, token string, s scope) ([]pagedItem, error) {
	size := a.pageSize()
	var out []pagedItem
	for offset := 0; ; offset += size {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := a.Fetcher.FetchComments(ctx, token, vk.CommentsQuery{
			OwnerID:   s.ownerID,
			VideoID:   s.videoID,
			CommentID: s.commentID,
			Offset:    offset,
			Count:     size,
			Sort:      sortAscending,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("comments page fetched", "comment_id", s.commentID, "offset", offset, "items", len(page.Items))

		idx := newAuthorIndex(page.Profiles, page.Groups)
		for _, raw := range page.Items {
			out = append(out, pagedItem{raw: raw, node: normalize(raw, idx)})
		}
		if len(page.Items) < size {
			return out, nil
		}
	}
}

func (a *Aggregator) pageSize() int {
	if a.PageSize <= 0 || a.PageSize > DefaultPageSize {
		return DefaultPageSize
	}
	return a.PageSize
}

func (a *Aggregator) interval() time.Duration {
	switch {
	case a.Interval < 0:
		return 0
	case a.Interval == 0:
		return DefaultInterval
	}
	return a.Interval
}
