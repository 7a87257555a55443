package vk

import (
	"fmt"
	"regexp"
	"strings"

	"vk-comments-exporter/internal/crawler"
)

const (
	CodeServiceToken    = 28
	CodeCommentsClosed  = 801
	CodeAuthFailed      = 5
	CodeTooManyRequests = 6
)

// User-facing messages for the distinguished upstream codes. Clients match on
// this text; keep it stable.
const (
	MsgPermission     = `28: method is unavailable with a service token; use a user access_token with scope "video,offline" or a community token with the "video" right`
	MsgCommentsClosed = "801: comments are disabled for this video"
)

func apiError(e APIError, url string) error {
	switch e.ErrorCode {
	case CodeServiceToken:
		return crawler.Error{Kind: crawler.ErrorKindPermission, Code: e.ErrorCode, URL: url, Msg: MsgPermission}
	case CodeCommentsClosed:
		return crawler.Error{Kind: crawler.ErrorKindResourceClosed, Code: e.ErrorCode, URL: url, Msg: MsgCommentsClosed}
	default:
		return crawler.Error{
			Kind: crawler.ErrorKindUpstream,
			Code: e.ErrorCode,
			URL:  url,
			Msg:  fmt.Sprintf("%d: %s", e.ErrorCode, strings.TrimSpace(e.ErrorMsg)),
		}
	}
}

var reAuthFailure = regexp.MustCompile(`(?i)authoriz\w*\s+(failed|expired|invalid)|token\s+(has\s+)?(expired|invalid)|invalid\s+(access[_ ])?token`)

// IsAuthFailure reports whether err indicates a dead credential that should be
// discarded and re-obtained.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	if crawler.CodeOf(err) == CodeAuthFailed {
		return true
	}
	return reAuthFailure.MatchString(err.Error())
}
