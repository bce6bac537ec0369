// Package message defines the chat message domain model and the parser that
// turns raw platform events into structured records.
package message

import "time"

// Type classifies a message.
type Type string

const (
	// TypeRegular is an ordinary channel message.
	TypeRegular Type = "regular"
	// TypeThreadReply is a reply inside a thread.
	TypeThreadReply Type = "thread_reply"
	// TypeBot is a bot-generated message.
	TypeBot Type = "bot_message"
	// TypeFileShare is a file upload message.
	TypeFileShare Type = "file_share"
)

// Message is one chat message. Structured attributes live in the metadata
// store; the text body (plus a denormalized metadata mirror) lives in the
// vector store. Identity is the (WorkspaceID, SourceTS) pair.
type Message struct {
	WorkspaceID string
	// SourceTS is the platform's string-encoded epoch timestamp. It is
	// monotonically ordered and used workspace-wide as the uniqueness key.
	SourceTS string

	ChannelID   string
	ChannelName string
	UserID      string
	UserName    string

	Text string
	Type Type

	// ThreadTS is the parent thread's SourceTS, empty outside threads.
	ThreadTS        string
	ReplyCount      int
	ReplyUsersCount int

	MentionCount  int
	LinkCount     int
	ReactionCount int
	ReactionTypes []string

	Permalink string
	IsPinned  bool

	EditedAt  *time.Time
	CreatedAt time.Time
}

// DocumentID returns the vector store document id for this message.
func (m Message) DocumentID() string {
	return m.WorkspaceID + "_" + m.SourceTS
}

// Reaction is one emoji reaction on a message.
type Reaction struct {
	UserID       string
	UserName     string
	ReactionName string
	ReactedAt    time.Time
}

// LinkType classifies a URL found in a message.
type LinkType string

const (
	LinkGitHub        LinkType = "github"
	LinkGitHubPR      LinkType = "github_pr"
	LinkGitHubIssue   LinkType = "github_issue"
	LinkJira          LinkType = "jira"
	LinkDocumentation LinkType = "documentation"
	LinkOther         LinkType = "other"
)

// Link is a URL extracted from a message, with classification.
type Link struct {
	URL         string
	Type        LinkType
	Domain      string
	Title       string
	Description string
}

// User is a workspace member, used for author display-name resolution.
type User struct {
	WorkspaceID string
	UserID      string
	UserName    string
	RealName    string
	DisplayName string
	Title       string
}
