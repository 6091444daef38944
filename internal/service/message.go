package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kannan2410/saashrm/internal/models"
)

// 单页消息条数上限，也是缺省值。
const messagePageSize = 50

// MessageService 封装消息的持久化与已读/状态更新。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// FileData 是客户端上传完成后回传的附件描述。
type FileData struct {
	URL      string `json:"url"`
	BlobName string `json:"blobName"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	MimeType string `json:"mimeType"`
}

// Send 持久化一条新消息并返回完整 DTO（含发送者、引用、附件）。
func (s *MessageService) Send(channelID, senderID, content string, replyToID *string) (*MessageDTO, error) {
	if channelID == "" || strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content", ErrValidation)
	}
	if replyToID != nil && *replyToID == "" {
		replyToID = nil
	}
	msg := models.Message{ChannelID: channelID, SenderID: senderID, Content: content, ReplyToID: replyToID}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return s.GetByID(msg.ID)
}

// AddFile 把附件记录挂到消息上。send 事件带 fileData 时在广播前调用。
func (s *MessageService) AddFile(messageID string, file FileData) error {
	if file.URL == "" || file.BlobName == "" {
		return fmt.Errorf("%w: fileData", ErrValidation)
	}
	rec := models.ChatFile{
		MessageID: messageID,
		URL:       file.URL,
		BlobName:  file.BlobName,
		FileName:  file.FileName,
		FileSize:  file.FileSize,
		MimeType:  file.MimeType,
	}
	return s.db.Create(&rec).Error
}

// GetByID 读取单条消息的完整 DTO。
func (s *MessageService) GetByID(messageID string) (*MessageDTO, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message", ErrNotFound)
		}
		return nil, err
	}
	dtos, err := s.hydrate([]models.Message{msg})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

// List 返回频道历史：倒序分页，cursor 为上一页最后一条的 createdAt。
// 频道不存在报 ErrNotFound；PRIVATE/DIRECT 非成员报 ErrForbidden。
func (s *MessageService) List(channelID, userID, cursor string, limit int) ([]MessageDTO, error) {
	var channel models.Channel
	if err := s.db.First(&channel, "id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: channel", ErrNotFound)
		}
		return nil, err
	}
	if channel.Type != models.ChannelPublic {
		var n int64
		err := s.db.Model(&models.ChannelMember{}).
			Where("channel_id = ? AND user_id = ?", channelID, userID).
			Count(&n).Error
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: not a member of this conversation", ErrForbidden)
		}
	}

	if limit <= 0 || limit > messagePageSize {
		limit = messagePageSize
	}
	q := s.db.Where("channel_id = ?", channelID)
	if cursor != "" {
		ts, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: cursor", ErrValidation)
		}
		q = q.Where("created_at < ?", ts)
	}

	var msgs []models.Message
	if err := q.Order("created_at desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return s.hydrate(msgs)
}

// Pinned 返回频道内所有置顶消息，倒序。
func (s *MessageService) Pinned(channelID string) ([]MessageDTO, error) {
	var msgs []models.Message
	err := s.db.Where("channel_id = ? AND is_pinned", channelID).Order("created_at desc").Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return s.hydrate(msgs)
}

// Pin 翻转置顶标记并返回完整 DTO。任何成员都可以置顶/取消，不查作者。
func (s *MessageService) Pin(messageID string) (*MessageDTO, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message", ErrNotFound)
		}
		return nil, err
	}
	if err := s.db.Model(&msg).Update("is_pinned", !msg.IsPinned).Error; err != nil {
		return nil, err
	}
	return s.GetByID(messageID)
}

// DeleteResult 告诉调用方被删消息属于哪个频道，用于定向广播。
type DeleteResult struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
}

// Delete 删除消息，仅作者可删。
func (s *MessageService) Delete(messageID, userID string) (*DeleteResult, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message", ErrNotFound)
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, fmt.Errorf("%w: you can only delete your own messages", ErrForbidden)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&models.ChatFile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{ID: messageID, ChannelID: msg.ChannelID}, nil
}

// MarkRead 把成员的已读时间推进到现在，返回该时间戳。
func (s *MessageService) MarkRead(channelID, userID string) (time.Time, error) {
	now := time.Now().UTC()
	err := s.db.Model(&models.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Update("last_read_at", now).Error
	if err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// UpdateStatus 持久化用户的自定义状态，空串清除。
func (s *MessageService) UpdateStatus(userID, status string) (*string, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}
	var value *string
	if status != "" {
		value = &status
	}
	if err := s.db.Model(&user).Update("custom_status", value).Error; err != nil {
		return nil, err
	}
	return value, nil
}

// hydrate 批量补全消息的发送者、引用消息与附件，避免逐条回表。
func (s *MessageService) hydrate(msgs []models.Message) ([]MessageDTO, error) {
	out := make([]MessageDTO, 0, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	msgIDs := make([]string, 0, len(msgs))
	userSet := make(map[string]struct{})
	replySet := make(map[string]struct{})
	for _, m := range msgs {
		msgIDs = append(msgIDs, m.ID)
		userSet[m.SenderID] = struct{}{}
		if m.ReplyToID != nil {
			replySet[*m.ReplyToID] = struct{}{}
		}
	}

	replies := make(map[string]models.Message, len(replySet))
	if len(replySet) > 0 {
		var rows []models.Message
		if err := s.db.Where("id IN ?", keys(replySet)).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			replies[r.ID] = r
			userSet[r.SenderID] = struct{}{}
		}
	}

	users := make(map[string]UserRef, len(userSet))
	if len(userSet) > 0 {
		var rows []models.User
		if err := s.db.Where("id IN ?", keys(userSet)).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, u := range rows {
			users[u.ID] = userRef(u)
		}
	}

	files := make(map[string][]FileDTO, len(msgIDs))
	var fileRows []models.ChatFile
	if err := s.db.Where("message_id IN ?", msgIDs).Order("created_at asc").Find(&fileRows).Error; err != nil {
		return nil, err
	}
	for _, f := range fileRows {
		files[f.MessageID] = append(files[f.MessageID], FileDTO{
			ID:       f.ID,
			URL:      f.URL,
			BlobName: f.BlobName,
			FileName: f.FileName,
			FileSize: f.FileSize,
			MimeType: f.MimeType,
		})
	}

	for _, m := range msgs {
		dto := MessageDTO{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			Content:   m.Content,
			IsPinned:  m.IsPinned,
			CreatedAt: m.CreatedAt,
			Sender:    users[m.SenderID],
			Files:     []FileDTO{},
		}
		if fs, ok := files[m.ID]; ok {
			dto.Files = fs
		}
		if m.ReplyToID != nil {
			if r, ok := replies[*m.ReplyToID]; ok {
				dto.ReplyTo = &ReplyDTO{ID: r.ID, Content: r.Content, Sender: users[r.SenderID]}
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
