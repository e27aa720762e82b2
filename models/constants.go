package models

// DeletedPlaceholder replaces the content of a soft-deleted message.
const DeletedPlaceholder = "This message was deleted"

// Notification types
const (
	NotificationLike          = "like"
	NotificationComment       = "comment"
	NotificationFollow        = "follow"
	NotificationJoinRequest   = "join_request"
	NotificationJoinApproved  = "join_approved"
	NotificationDirectMessage = "direct_message"
)

// Group member roles
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Join request statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeclined = "declined"
)

// Group privacy
const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)
