package message

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	StatusSent MessageStatus = "sent"
	StatusRead MessageStatus = "read"
)

// Message is a direct message between two users. Only the sender and the
// recipient may see it.
type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	SenderID    uuid.UUID `gorm:"column:sender_id;type:uuid;not null;index"`
	RecipientID uuid.UUID `gorm:"column:recipient_id;type:uuid;not null;index"`

	Subject string        `gorm:"column:subject;type:varchar(255)"`
	Body    string        `gorm:"column:body;type:text;not null"`
	Status  MessageStatus `gorm:"column:status;type:varchar(20);not null;default:'sent'"`
	ReadAt  *time.Time    `gorm:"column:read_at"`
}

func (Message) TableName() string {
	return "clinical.messages"
}

func (m *Message) Participants() []uuid.UUID {
	return []uuid.UUID{m.SenderID, m.RecipientID}
}

func (m *Message) MarkRead() {
	if m.Status == StatusRead {
		return
	}
	now := time.Now()
	m.Status = StatusRead
	m.ReadAt = &now
}

type SendMessageCommand struct {
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Subject     string
	Body        string
}

type ListMessagesQuery struct {
	UserID   uuid.UUID // inbox + sent for this user
	Unread   bool
	Page     int
	PageSize int
}

type PagedMessages struct {
	Messages   []*Message
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}
