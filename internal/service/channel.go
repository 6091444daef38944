package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/kannan2410/saashrm/internal/models"
)

// ChannelService 封装频道可见性、成员关系与 DM 解析。
type ChannelService struct {
	db *gorm.DB
}

func NewChannelService(db *gorm.DB) *ChannelService {
	return &ChannelService{db: db}
}

// CreateChannelInput 是创建频道的入参，type 只允许 PUBLIC/PRIVATE。
type CreateChannelInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	MemberIDs   []string `json:"memberIds"`
}

// Create 创建频道并把创建者与指定成员写入成员表。
func (s *ChannelService) Create(in CreateChannelInput, userID, companyID string) (*ChannelDTO, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > 100 {
		return nil, fmt.Errorf("%w: channel name", ErrValidation)
	}
	if len(in.Description) > 500 {
		return nil, fmt.Errorf("%w: description", ErrValidation)
	}
	ctype := in.Type
	if ctype == "" {
		ctype = models.ChannelPublic
	}
	if ctype != models.ChannelPublic && ctype != models.ChannelPrivate {
		return nil, fmt.Errorf("%w: channel type", ErrValidation)
	}

	channel := models.Channel{
		Name:        name,
		Description: in.Description,
		Type:        ctype,
		CompanyID:   companyID,
		CreatedByID: userID,
	}
	extra := dedup(in.MemberIDs, userID)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&channel).Error; err != nil {
			return err
		}
		members := []models.ChannelMember{{ChannelID: channel.ID, UserID: userID}}
		for _, id := range extra {
			members = append(members, models.ChannelMember{ChannelID: channel.ID, UserID: id})
		}
		return tx.Create(&members).Error
	})
	if err != nil {
		return nil, err
	}
	dto := channelDTO(channel)
	dto.MemberCount = int64(1 + len(extra))
	return &dto, nil
}

// List 返回用户可见的频道：公司内全部 PUBLIC 加上自己是成员的
// PRIVATE，DIRECT 不混入通用列表。
func (s *ChannelService) List(userID, companyID string) ([]ChannelDTO, error) {
	var channels []models.Channel
	err := s.db.
		Where("company_id = ? AND type <> ?", companyID, models.ChannelDirect).
		Where("type = ? OR id IN (?)", models.ChannelPublic,
			s.db.Model(&models.ChannelMember{}).Select("channel_id").Where("user_id = ?", userID)).
		Order("updated_at desc").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(channels))
	for _, ch := range channels {
		ids = append(ids, ch.ID)
	}
	memberCounts, err := s.countBy(&models.ChannelMember{}, ids)
	if err != nil {
		return nil, err
	}
	messageCounts, err := s.countBy(&models.Message{}, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ChannelDTO, 0, len(channels))
	for _, ch := range channels {
		dto := channelDTO(ch)
		dto.MemberCount = memberCounts[ch.ID]
		dto.MessageCount = messageCounts[ch.ID]
		out = append(out, dto)
	}
	return out, nil
}

// DirectMessages 返回用户参与的 DM 会话，标注对端用户与最近消息摘要。
func (s *ChannelService) DirectMessages(userID, companyID string) ([]DirectChannelDTO, error) {
	var channels []models.Channel
	err := s.db.
		Where("company_id = ? AND type = ?", companyID, models.ChannelDirect).
		Where("id IN (?)", s.db.Model(&models.ChannelMember{}).Select("channel_id").Where("user_id = ?", userID)).
		Order("updated_at desc").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}

	out := make([]DirectChannelDTO, 0, len(channels))
	for _, ch := range channels {
		dto := DirectChannelDTO{ID: ch.ID, Type: ch.Type, UpdatedAt: ch.UpdatedAt}
		other, err := s.otherMember(ch.ID, userID)
		if err != nil {
			return nil, err
		}
		dto.OtherUser = other

		var last models.Message
		err = s.db.Where("channel_id = ?", ch.ID).Order("created_at desc").First(&last).Error
		if err == nil {
			dto.LastMessage = &MessagePreview{Content: last.Content, CreatedAt: last.CreatedAt}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		out = append(out, dto)
	}
	return out, nil
}

// DMKey 生成 DM 的存储级唯一键：公司 + 排序后的用户对。
func DMKey(companyID, userA, userB string) string {
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	return "dm:" + companyID + ":" + lo + ":" + hi
}

// CreateOrGetDirect 查找或创建两人 DM。并发首聊靠 dm_key 唯一索引兜底：
// 插入撞到唯一冲突时重读一次，双方拿到同一个频道。
func (s *ChannelService) CreateOrGetDirect(userID, otherUserID, companyID string) (*DirectChannelDTO, error) {
	if otherUserID == "" || otherUserID == userID {
		return nil, fmt.Errorf("%w: userId", ErrValidation)
	}

	key := DMKey(companyID, userID, otherUserID)
	if dto, err := s.findDirect(key, userID); err == nil {
		return dto, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var other models.User
	if err := s.db.First(&other, "id = ?", otherUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}

	channel := models.Channel{
		Name:        "dm-" + userID + "-" + otherUserID,
		Type:        models.ChannelDirect,
		CompanyID:   companyID,
		CreatedByID: userID,
		DMKey:       &key,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&channel).Error; err != nil {
			return err
		}
		members := []models.ChannelMember{
			{ChannelID: channel.ID, UserID: userID},
			{ChannelID: channel.ID, UserID: otherUserID},
		}
		return tx.Create(&members).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 对端抢先创建了同一对 DM
		return s.findDirect(key, userID)
	}
	if err != nil {
		return nil, err
	}

	ref := userRef(other)
	return &DirectChannelDTO{ID: channel.ID, Type: channel.Type, OtherUser: &ref, UpdatedAt: channel.UpdatedAt}, nil
}

func (s *ChannelService) findDirect(dmKey, userID string) (*DirectChannelDTO, error) {
	var channel models.Channel
	if err := s.db.Where("dm_key = ?", dmKey).First(&channel).Error; err != nil {
		return nil, err
	}
	other, err := s.otherMember(channel.ID, userID)
	if err != nil {
		return nil, err
	}
	return &DirectChannelDTO{ID: channel.ID, Type: channel.Type, OtherUser: other, UpdatedAt: channel.UpdatedAt}, nil
}

// Join 幂等加入频道：已是成员时原样返回既有成员行。
func (s *ChannelService) Join(channelID, userID string) (*MemberDTO, bool, error) {
	var channel models.Channel
	if err := s.db.First(&channel, "id = ?", channelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("%w: channel", ErrNotFound)
		}
		return nil, false, err
	}

	var existing models.ChannelMember
	err := s.db.Where("channel_id = ? AND user_id = ?", channelID, userID).First(&existing).Error
	if err == nil {
		dto := memberDTO(existing)
		return &dto, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	member := models.ChannelMember{ChannelID: channelID, UserID: userID}
	if err := s.db.Create(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发 join 撞唯一索引，重读既有行
			if err2 := s.db.Where("channel_id = ? AND user_id = ?", channelID, userID).First(&existing).Error; err2 == nil {
				dto := memberDTO(existing)
				return &dto, false, nil
			}
		}
		return nil, false, err
	}
	dto := memberDTO(member)
	return &dto, true, nil
}

// AddMember 把指定用户拉进频道，幂等。
func (s *ChannelService) AddMember(channelID, userID string) (*MemberDTO, error) {
	member, _, err := s.Join(channelID, userID)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err == nil {
		ref := userRef(user)
		member.User = &ref
	}
	return member, nil
}

// Members 按加入时间返回频道成员。
func (s *ChannelService) Members(channelID string) ([]MemberDTO, error) {
	var members []models.ChannelMember
	if err := s.db.Where("channel_id = ?", channelID).Order("joined_at asc").Find(&members).Error; err != nil {
		return nil, err
	}
	return s.withUsers(members)
}

// ReadStatus 返回频道内有已读时间的成员，用于已读回执展示。
func (s *ChannelService) ReadStatus(channelID string) ([]MemberDTO, error) {
	var members []models.ChannelMember
	err := s.db.Where("channel_id = ? AND last_read_at IS NOT NULL", channelID).Find(&members).Error
	if err != nil {
		return nil, err
	}
	return s.withUsers(members)
}

// CompanyUsers 返回公司在职用户及其自定义状态。
func (s *ChannelService) CompanyUsers(companyID string) ([]CompanyUserDTO, error) {
	var users []models.User
	err := s.db.Where("company_id = ? AND is_active", companyID).Order("email asc").Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]CompanyUserDTO, 0, len(users))
	for _, u := range users {
		out = append(out, CompanyUserDTO{
			ID:           u.ID,
			Email:        u.Email,
			FullName:     u.FullName,
			Role:         u.Role,
			CustomStatus: u.CustomStatus,
		})
	}
	return out, nil
}

// UserChannelIDs 返回用户加入的全部频道 id，连接建立时用于自动订阅。
func (s *ChannelService) UserChannelIDs(userID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&models.ChannelMember{}).Where("user_id = ?", userID).Pluck("channel_id", &ids).Error
	return ids, err
}

func (s *ChannelService) otherMember(channelID, userID string) (*UserRef, error) {
	var member models.ChannelMember
	err := s.db.Where("channel_id = ? AND user_id <> ?", channelID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.First(&user, "id = ?", member.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	ref := userRef(user)
	return &ref, nil
}

func (s *ChannelService) withUsers(members []models.ChannelMember) ([]MemberDTO, error) {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	refs := make(map[string]UserRef, len(ids))
	if len(ids) > 0 {
		var users []models.User
		if err := s.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			refs[u.ID] = userRef(u)
		}
	}
	out := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dto := memberDTO(m)
		if ref, ok := refs[m.UserID]; ok {
			r := ref
			dto.User = &r
		}
		out = append(out, dto)
	}
	return out, nil
}

type countRow struct {
	ChannelID string
	N         int64
}

func (s *ChannelService) countBy(model interface{}, channelIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(channelIDs))
	if len(channelIDs) == 0 {
		return counts, nil
	}
	var rows []countRow
	err := s.db.Model(model).
		Select("channel_id, count(*) as n").
		Where("channel_id IN ?", channelIDs).
		Group("channel_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ChannelID] = r.N
	}
	return counts, nil
}

func channelDTO(ch models.Channel) ChannelDTO {
	return ChannelDTO{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Type:        ch.Type,
		CompanyID:   ch.CompanyID,
		CreatedByID: ch.CreatedByID,
		CreatedAt:   ch.CreatedAt,
		UpdatedAt:   ch.UpdatedAt,
	}
}

func memberDTO(m models.ChannelMember) MemberDTO {
	return MemberDTO{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		UserID:     m.UserID,
		LastReadAt: m.LastReadAt,
		JoinedAt:   m.JoinedAt,
	}
}

func userRef(u models.User) UserRef {
	return UserRef{ID: u.ID, Email: u.Email, FullName: u.FullName}
}

func dedup(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
