package message

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RawMessage is the platform event shape as delivered by the ingestion
// crawler. Only the fields the parser reads are declared.
type RawMessage struct {
	TS              string     `json:"ts"`
	Subtype         string     `json:"subtype"`
	UserID          string     `json:"user"`
	BotID           string     `json:"bot_id"`
	Username        string     `json:"username"`
	Text            string     `json:"text"`
	ThreadTS        string     `json:"thread_ts"`
	ReplyCount      int        `json:"reply_count"`
	ReplyUsersCount int        `json:"reply_users_count"`
	Permalink       string     `json:"permalink"`
	PinnedTo        []string   `json:"pinned_to"`
	EditedTS        string     `json:"edited_ts"`
	Reactions       []Reaction `json:"-"`
}

var (
	userMentionRe    = regexp.MustCompile(`<@([UW][A-Z0-9]+)>`)
	channelMentionRe = regexp.MustCompile(`<#(C[A-Z0-9]+)`)
	wrappedLinkRe    = regexp.MustCompile(`<(https?://[^|>]+)`)
	bareLinkRe       = regexp.MustCompile(`https?://[^\s<>|]+`)
	domainRe         = regexp.MustCompile(`^https?://([^/]+)`)
)

// Parse turns a raw platform message into a Message for the given channel.
func Parse(raw RawMessage, workspaceID, channelID, channelName string) Message {
	userID := raw.UserID
	if userID == "" {
		userID = raw.BotID
	}
	if userID == "" {
		userID = "UNKNOWN"
	}

	m := Message{
		WorkspaceID:     workspaceID,
		SourceTS:        raw.TS,
		ChannelID:       channelID,
		ChannelName:     channelName,
		UserID:          userID,
		UserName:        raw.Username,
		Text:            raw.Text,
		Type:            classify(raw),
		ThreadTS:        raw.ThreadTS,
		ReplyCount:      raw.ReplyCount,
		ReplyUsersCount: raw.ReplyUsersCount,
		Permalink:       raw.Permalink,
		IsPinned:        len(raw.PinnedTo) > 0,
		CreatedAt:       parseSourceTS(raw.TS),
	}

	m.MentionCount = len(ExtractMentions(raw.Text))
	m.LinkCount = len(ExtractLinks(raw.Text))
	m.ReactionCount = len(raw.Reactions)
	for _, r := range raw.Reactions {
		m.ReactionTypes = append(m.ReactionTypes, r.ReactionName)
	}

	if raw.EditedTS != "" {
		t := parseSourceTS(raw.EditedTS)
		m.EditedAt = &t
	}

	return m
}

// classify maps platform subtypes to message types.
func classify(raw RawMessage) Type {
	switch {
	case raw.Subtype == "bot_message":
		return TypeBot
	case raw.Subtype == "file_share":
		return TypeFileShare
	case raw.ThreadTS != "" && raw.ThreadTS != raw.TS:
		return TypeThreadReply
	default:
		return TypeRegular
	}
}

// ExtractMentions returns user and channel ids referenced with mention markup
// (<@U123456> and <#C123456|name>).
func ExtractMentions(text string) []string {
	if text == "" {
		return nil
	}
	var mentions []string
	for _, m := range userMentionRe.FindAllStringSubmatch(text, -1) {
		mentions = append(mentions, m[1])
	}
	for _, m := range channelMentionRe.FindAllStringSubmatch(text, -1) {
		mentions = append(mentions, m[1])
	}
	return mentions
}

// ExtractLinks finds URLs in message text, classifies them, and deduplicates
// by exact URL. Platform markup (<url|label>) and bare URLs are both handled.
func ExtractLinks(text string) []Link {
	if text == "" {
		return nil
	}

	var urls []string
	for _, m := range wrappedLinkRe.FindAllStringSubmatch(text, -1) {
		urls = append(urls, m[1])
	}
	for _, u := range bareLinkRe.FindAllString(text, -1) {
		urls = append(urls, strings.TrimRight(u, ">"))
	}

	seen := make(map[string]bool)
	var links []Link
	for _, u := range urls {
		u = strings.TrimRight(u, ".,!?)")
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		links = append(links, ClassifyLink(u))
	}
	return links
}

// ClassifyLink tags a URL with a link type based on its domain and path.
func ClassifyLink(url string) Link {
	var domain string
	if m := domainRe.FindStringSubmatch(url); m != nil {
		domain = m[1]
	}

	linkType := LinkOther
	switch {
	case strings.Contains(domain, "github.com"):
		switch {
		case strings.Contains(url, "/pull/"):
			linkType = LinkGitHubPR
		case strings.Contains(url, "/issues/"):
			linkType = LinkGitHubIssue
		default:
			linkType = LinkGitHub
		}
	case strings.Contains(domain, "atlassian.net") && strings.Contains(url, "/browse/"):
		linkType = LinkJira
	case strings.HasPrefix(domain, "docs.") || strings.HasPrefix(domain, "doc.") ||
		strings.HasSuffix(domain, ".readthedocs.io") || strings.HasSuffix(domain, ".github.io"):
		linkType = LinkDocumentation
	}

	return Link{URL: url, Type: linkType, Domain: domain}
}

// parseSourceTS converts a string-encoded epoch ("1234567890.123456") to a
// time.Time. Malformed values map to the zero time rather than failing the
// whole message.
func parseSourceTS(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// ParseSourceTS is the exported form used by retrieval time filtering.
func ParseSourceTS(ts string) time.Time {
	return parseSourceTS(ts)
}
