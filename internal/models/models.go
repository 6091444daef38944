package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 频道类型，对应 channels.type 列。
const (
	ChannelPublic  = "PUBLIC"
	ChannelPrivate = "PRIVATE"
	ChannelDirect  = "DIRECT"
)

// User 是聊天侧可见的员工账号，密码等认证字段由外部身份服务持有。
type User struct {
	ID           string  `gorm:"primaryKey;size:36"`
	Email        string  `gorm:"uniqueIndex;size:255;not null"`
	FullName     string  `gorm:"size:255"`
	Role         string  `gorm:"size:32;not null;default:EMPLOYEE"`
	CompanyID    string  `gorm:"index;size:36;not null"`
	CustomStatus *string `gorm:"size:255"`
	IsActive     bool    `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Channel 是一个持久会话：公开、私有或两人 DM。
// DMKey 仅在 DIRECT 频道上赋值（dm:<company>:<lo>:<hi>），
// 唯一索引保证同一对用户并发首聊时只会落库一条 DM。
type Channel struct {
	ID          string  `gorm:"primaryKey;size:36"`
	Name        string  `gorm:"size:128;not null"`
	Description string  `gorm:"size:500"`
	Type        string  `gorm:"size:16;not null;default:PUBLIC"`
	CompanyID   string  `gorm:"index;size:36;not null"`
	CreatedByID string  `gorm:"size:36;not null"`
	DMKey       *string `gorm:"uniqueIndex;size:128"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChannelMember 关联用户与频道，LastReadAt 驱动已读回执。
type ChannelMember struct {
	ID         string `gorm:"primaryKey;size:36"`
	ChannelID  string `gorm:"uniqueIndex:idx_member_channel_user;size:36;not null"`
	UserID     string `gorm:"uniqueIndex:idx_member_channel_user;index;size:36;not null"`
	LastReadAt *time.Time
	JoinedAt   time.Time `gorm:"autoCreateTime"`
}

// Message 属于唯一频道，创建后除 IsPinned 外不可变。
type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ChannelID string    `gorm:"index:idx_msg_channel_created;size:36;not null"`
	SenderID  string    `gorm:"index;size:36;not null"`
	Content   string    `gorm:"type:text;not null"`
	ReplyToID *string   `gorm:"size:36"`
	IsPinned  bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"index:idx_msg_channel_created"`
}

// ChatFile 是消息附件的元数据，二进制本体在 blob 存储。
type ChatFile struct {
	ID        string `gorm:"primaryKey;size:36"`
	MessageID string `gorm:"index;size:36;not null"`
	URL       string `gorm:"size:1024;not null"`
	BlobName  string `gorm:"size:255;not null"`
	FileName  string `gorm:"size:255;not null"`
	FileSize  int64  `gorm:"not null"`
	MimeType  string `gorm:"size:128"`
	CreatedAt time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (c *Channel) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (m *ChannelMember) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (f *ChatFile) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
