package vectorstore

// Metadata keys mirrored onto every stored document. Values are strings;
// MetaCreatedAt holds unix seconds in decimal form.
const (
	MetaWorkspaceID = "workspace_id"
	MetaSourceTS    = "source_ts"
	MetaChannelID   = "channel_id"
	MetaChannelName = "channel_name"
	MetaUserID      = "user_id"
	MetaUserName    = "user_name"
	MetaMessageType = "message_type"
	MetaCreatedAt   = "created_at"
	MetaPermalink   = "permalink"
	MetaThreadTS    = "thread_ts"
)
