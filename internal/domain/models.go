// Package domain defines the persistence models for messages exchanged
// between users, the notifications raised for them, and the append-only
// edit history. These types are mapped with GORM and form the core data
// layer of the messaging application.
package domain

import (
	"time"
)

// Roles recognized on an authenticated principal. The role travels with the
// request (set by the authentication collaborator) and is immutable for the
// request's lifetime.
const (
	RoleGuest     = "guest"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Notification kinds. A reply to an existing message produces KindReply;
// everything else produces KindNewMessage.
const (
	KindNewMessage = "new_message"
	KindReply      = "reply"
)

// Principal is the authenticated actor issuing a request. It is not a
// persisted row: an external authentication collaborator resolves it and the
// transport layer attaches it to the request.
type Principal struct {
	ID   string `json:"id"`
	Role string `json:"role"` // guest|moderator|admin
}

// Message represents a single message sent from one user to another.
// Replies reference their parent through ParentID, forming a tree; ParentID
// is a plain lookup key into the messages table, never an owning pointer,
// and must reference a message created strictly earlier.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SenderID / ReceiverID: identifiers of the two participants; both
//     indexed for conversation and unread lookups.
//   - Body: full text content of the message.
//   - Edited: set once the body has been changed at least once.
//   - Read: set when the receiver marks the message read.
//   - ParentID: optional reference to the message this one replies to.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Message struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string    `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_sender_created,priority:1"`
	ReceiverID string    `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_receiver_read,priority:1"`
	Body       string    `json:"body"        gorm:"type:text;not null"`
	Edited     bool      `json:"edited"      gorm:"not null;default:false"`
	Read       bool      `json:"read"        gorm:"not null;default:false;index:idx_receiver_read,priority:2"`
	ParentID   *string   `json:"parent_id,omitempty" gorm:"type:char(36);index"`
	CreatedAt  time.Time `json:"created_at"  gorm:"index:idx_sender_created,priority:2"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// IsReply reports whether the message is a reply to another message.
func (m *Message) IsReply() bool { return m.ParentID != nil && *m.ParentID != "" }

// Notification is raised for the receiver whenever a message is created.
// Notifications are independently listable and markable-read.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: the user the notification is addressed to (indexed with Read).
//   - MessageID: the message that caused the notification.
//   - Kind: new_message or reply.
//   - Body: short human-readable summary of the triggering message.
//   - Read: set when the user marks the notification read.
//   - CreatedAt: timestamp managed by GORM.
type Notification struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_notif_user_read,priority:1"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;index"`
	Kind      string    `json:"kind"       gorm:"type:varchar(20);not null;check:kind IN ('new_message','reply')"`
	Body      string    `json:"body"       gorm:"type:text;not null"`
	Read      bool      `json:"read"       gorm:"not null;default:false;index:idx_notif_user_read,priority:2"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// MessageHistory is the append-only edit audit trail. Exactly one row is
// written per edit whose body actually changed, holding the body as it was
// before the edit. Rows are never mutated and are removed only when the
// owning message is removed (single delete or cascade cleanup).
type MessageHistory struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	MessageID    string    `json:"message_id"    gorm:"type:char(36);not null;index"`
	PreviousBody string    `json:"previous_body" gorm:"type:text;not null"`
	RecordedAt   time.Time `json:"recorded_at"   gorm:"index"`
}

// TableName returns the database table name for MessageHistory.
func (MessageHistory) TableName() string { return "message_history" }

// UnreadMessage is the minimal projection returned by the unread index.
// It deliberately omits receiver, edited flag, and parent linkage: the
// caller already is the receiver, and the projection exists to keep unread
// polling cheap.
type UnreadMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	Read      bool      `json:"read"`
}
