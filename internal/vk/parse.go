package vk

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var reVideo = regexp.MustCompile(`video(-?\d+)_(\d+)`)

// ParseVideoURL finds a video<owner>_<video> reference anywhere in s, e.g.
// https://vk.com/video-204749195_456243585.
func ParseVideoURL(s string) (ownerID, videoID int64, err error) {
	m := reVideo.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("no video<owner>_<id> reference in %q", s)
	}
	ownerID, err = strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid owner id %q: %w", m[1], err)
	}
	videoID, err = strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid video id %q: %w", m[2], err)
	}
	return ownerID, videoID, nil
}

var reRawToken = regexp.MustCompile(`(?i)^vk\d?\.`)

// ExtractToken accepts either the blank.html redirect URL of the implicit
// flow (access_token in the fragment) or a raw token. It returns "" when
// input looks like neither.
func ExtractToken(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	frag := s
	if i := strings.LastIndex(s, "#"); i >= 0 {
		frag = s[i+1:]
	}
	values, _ := url.ParseQuery(frag)
	if t := strings.TrimSpace(values.Get("access_token")); t != "" {
		return t
	}
	if reRawToken.MatchString(s) || len(s) > 50 {
		return s
	}
	return ""
}

const (
	authorizeURL  = "https://oauth.vk.com/authorize"
	blankRedirect = "https://oauth.vk.com/blank.html"
)

// BuildAuthURL returns the implicit-flow authorize URL for appID. The token
// lands in the fragment of the blank.html redirect.
func BuildAuthURL(appID, scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		scope = "video"
	}
	q := url.Values{}
	q.Set("client_id", strings.TrimSpace(appID))
	q.Set("display", "page")
	q.Set("redirect_uri", blankRedirect)
	q.Set("scope", scope)
	q.Set("response_type", "token")
	q.Set("v", DefaultAPIVersion)
	return authorizeURL + "?" + q.Encode()
}
