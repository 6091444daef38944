package service

import "time"

// UserRef 是事件/接口里内嵌的用户摘要。
type UserRef struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// FileDTO 是消息附件的元数据。
type FileDTO struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	BlobName string `json:"blobName"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

// ReplyDTO 是被引用消息的摘要。
type ReplyDTO struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Sender  UserRef `json:"sender"`
}

// MessageDTO 是对外输出的完整消息：发送者、引用、附件一并带出。
type MessageDTO struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channelId"`
	Content   string    `json:"content"`
	IsPinned  bool      `json:"isPinned"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    UserRef   `json:"sender"`
	ReplyTo   *ReplyDTO `json:"replyTo"`
	Files     []FileDTO `json:"files"`
}

// ChannelDTO 是频道列表项。
type ChannelDTO struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	CompanyID    string    `json:"companyId"`
	CreatedByID  string    `json:"createdById"`
	MemberCount  int64     `json:"memberCount"`
	MessageCount int64     `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MessagePreview 是 DM 列表里的最近一条消息摘要。
type MessagePreview struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// DirectChannelDTO 是 DM 列表项，附带对端用户与最近消息。
type DirectChannelDTO struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	OtherUser   *UserRef        `json:"otherUser"`
	LastMessage *MessagePreview `json:"lastMessage"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MemberDTO 是频道成员列表项。
type MemberDTO struct {
	ID         string     `json:"id"`
	ChannelID  string     `json:"channelId"`
	UserID     string     `json:"userId"`
	User       *UserRef   `json:"user,omitempty"`
	LastReadAt *time.Time `json:"lastReadAt"`
	JoinedAt   time.Time  `json:"joinedAt"`
}

// CompanyUserDTO 是公司通讯录条目，带自定义状态。
type CompanyUserDTO struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	FullName     string  `json:"fullName"`
	Role         string  `json:"role"`
	CustomStatus *string `json:"customStatus"`
}
