package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"vk-comments-exporter/internal/config"
	"vk-comments-exporter/internal/crawler"
	"vk-comments-exporter/internal/logger"
	"vk-comments-exporter/internal/metrics"
	"vk-comments-exporter/internal/proxy"
)

const (
	DefaultBaseURL    = "https://api.vk.com"
	DefaultAPIVersion = "5.199"

	methodGetComments = "video.getComments"
	authorFields      = "first_name,last_name,domain"
)

type Client struct {
	httpClient *resty.Client
	version    string
}

type ClientOptions struct {
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	ProxyURL   string
}

func NewClient() *Client {
	timeoutSec := config.AppConfig.HttpTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	return NewClientWithOptions(ClientOptions{
		BaseURL:    config.AppConfig.VKAPIBaseURL,
		APIVersion: config.AppConfig.VKAPIVersion,
		Timeout:    time.Duration(timeoutSec) * time.Second,
		ProxyURL:   config.AppConfig.ProxyURL,
	})
}

func NewClientWithOptions(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := strings.TrimSpace(opts.APIVersion)
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	hc := &http.Client{Timeout: timeout}
	rc := resty.NewWithClient(hc)
	rc.SetBaseURL(baseURL)
	rc.SetHeaders(map[string]string{
		"accept":     "application/json",
		"user-agent": "vk-comments-exporter/1.0",
	})
	if raw := strings.TrimSpace(opts.ProxyURL); raw != "" {
		if p, err := proxy.Parse(raw); err == nil {
			rc.SetProxy(p.URL())
		} else {
			logger.Warn("ignoring PROXY_URL", "err", err)
		}
	}
	// A failed page aborts the whole aggregation; never replay requests.
	rc.SetRetryCount(0)

	return &Client{httpClient: rc, version: version}
}

// FetchComments requests one page of video.getComments with extended author
// objects. Envelope errors come back as crawler.Error values.
func (c *Client) FetchComments(ctx context.Context, token string, q CommentsQuery) (CommentsPage, error) {
	params := map[string]string{
		"v":            c.version,
		"access_token": token,
		"owner_id":     strconv.FormatInt(q.OwnerID, 10),
		"video_id":     strconv.FormatInt(q.VideoID, 10),
		"count":        strconv.Itoa(q.Count),
		"offset":       strconv.Itoa(q.Offset),
		"sort":         q.Sort,
		"need_likes":   "1",
		"extended":     "1",
		"fields":       authorFields,
	}
	if q.CommentID != 0 {
		params["comment_id"] = strconv.FormatInt(q.CommentID, 10)
	}

	path := "/method/" + methodGetComments
	start := time.Now()
	page, err := c.get(ctx, path, params)
	metrics.VKRequestDuration.WithLabelValues(methodGetComments).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = string(crawler.KindOf(err))
	}
	metrics.VKRequestsTotal.WithLabelValues(methodGetComments, outcome).Inc()
	return page, err
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) (CommentsPage, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return CommentsPage{}, crawler.NewTransportError(path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return CommentsPage{}, crawler.NewHTTPStatusError(path, resp.StatusCode(), resp.String())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return CommentsPage{}, crawler.Error{
			Kind: crawler.ErrorKindTransport,
			URL:  path,
			Msg:  fmt.Sprintf("decode %s response: %v", methodGetComments, err),
			Err:  err,
		}
	}
	if env.Error != nil {
		return CommentsPage{}, apiError(*env.Error, path)
	}
	if env.Response == nil {
		return CommentsPage{}, crawler.Error{Kind: crawler.ErrorKindUpstream, URL: path, Msg: "empty response"}
	}
	return *env.Response, nil
}
