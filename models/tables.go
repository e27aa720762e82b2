package models

// IndexSpec describes a global secondary index used for equality lookups.
type IndexSpec struct {
	Name    string
	HashKey string
}

// TableSpec is the key schema and write-ownership rule of one collection.
// Owner is the column that must equal the acting user for update/delete;
// Creator is the column that must equal the acting user on insert. Empty
// means the collection carries no such rule.
type TableSpec struct {
	Name     string
	HashKey  string
	RangeKey string
	Owner    string
	Creator  string
	Indexes  []IndexSpec
}

// Table names
const (
	ProfilesTable                 = "profiles"
	ConversationsTable            = "conversations"
	ConversationParticipantsTable = "conversation_participants"
	ConversationPairsTable        = "conversation_pairs"
	MessagesTable                 = "messages"
	MessageLikesTable             = "message_likes"
	MessageReadsTable             = "message_reads"
	DirectMessagesTable           = "direct_messages"
	GroupsTable                   = "groups"
	GroupMembersTable             = "group_members"
	JoinRequestsTable             = "join_requests"
	GroupMessagesTable            = "group_messages"
	ArticlesTable                 = "articles"
	ArticleLikesTable             = "article_likes"
	SavedArticlesTable            = "saved_articles"
	CommentsTable                 = "comments"
	CommentLikesTable             = "comment_likes"
	FollowersTable                = "followers"
	NotificationsTable            = "notifications"
)

var specs = []TableSpec{
	{Name: ProfilesTable, HashKey: "id", Owner: "id", Creator: "id",
		Indexes: []IndexSpec{{Name: "username-index", HashKey: "username"}}},
	{Name: ConversationsTable, HashKey: "id"},
	{Name: ConversationParticipantsTable, HashKey: "conversation_id", RangeKey: "user_id",
		Indexes: []IndexSpec{{Name: "user_id-index", HashKey: "user_id"}}},
	{Name: ConversationPairsTable, HashKey: "pair_key"},
	{Name: MessagesTable, HashKey: "id", Owner: "sender_id", Creator: "sender_id",
		Indexes: []IndexSpec{{Name: "conversation_id-index", HashKey: "conversation_id"}}},
	{Name: MessageLikesTable, HashKey: "message_id", RangeKey: "user_id", Owner: "user_id", Creator: "user_id"},
	{Name: MessageReadsTable, HashKey: "message_id", RangeKey: "user_id", Owner: "user_id", Creator: "user_id"},
	{Name: DirectMessagesTable, HashKey: "id", Owner: "sender_id", Creator: "sender_id",
		Indexes: []IndexSpec{
			{Name: "sender_id-index", HashKey: "sender_id"},
			{Name: "receiver_id-index", HashKey: "receiver_id"},
		}},
	{Name: GroupsTable, HashKey: "id", Owner: "created_by", Creator: "created_by"},
	{Name: GroupMembersTable, HashKey: "group_id", RangeKey: "user_id",
		Indexes: []IndexSpec{{Name: "user_id-index", HashKey: "user_id"}}},
	{Name: JoinRequestsTable, HashKey: "group_id", RangeKey: "user_id",
		Indexes: []IndexSpec{{Name: "user_id-index", HashKey: "user_id"}}},
	{Name: GroupMessagesTable, HashKey: "id", Owner: "sender_id", Creator: "sender_id",
		Indexes: []IndexSpec{{Name: "group_id-index", HashKey: "group_id"}}},
	{Name: ArticlesTable, HashKey: "id", Owner: "author_id", Creator: "author_id",
		Indexes: []IndexSpec{{Name: "author_id-index", HashKey: "author_id"}}},
	{Name: ArticleLikesTable, HashKey: "article_id", RangeKey: "user_id", Owner: "user_id", Creator: "user_id"},
	{Name: SavedArticlesTable, HashKey: "user_id", RangeKey: "article_id", Owner: "user_id", Creator: "user_id"},
	{Name: CommentsTable, HashKey: "id", Owner: "author_id", Creator: "author_id",
		Indexes: []IndexSpec{{Name: "article_id-index", HashKey: "article_id"}}},
	{Name: CommentLikesTable, HashKey: "comment_id", RangeKey: "user_id", Owner: "user_id", Creator: "user_id"},
	{Name: FollowersTable, HashKey: "follower_id", RangeKey: "following_id", Owner: "follower_id", Creator: "follower_id",
		Indexes: []IndexSpec{{Name: "following_id-index", HashKey: "following_id"}}},
	{Name: NotificationsTable, HashKey: "id", Owner: "user_id", Creator: "actor_id",
		Indexes: []IndexSpec{{Name: "user_id-index", HashKey: "user_id"}}},
}

// Specs returns every collection the application uses.
func Specs() []TableSpec {
	out := make([]TableSpec, len(specs))
	copy(out, specs)
	return out
}

// Spec looks up a collection by name.
func Spec(name string) (TableSpec, bool) {
	for _, s := range specs {
		if s.Name == name {
			return s, true
		}
	}
	return TableSpec{}, false
}
