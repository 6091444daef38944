package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kannan2410/saashrm/internal/auth"
	"github.com/kannan2410/saashrm/internal/config"
	"github.com/kannan2410/saashrm/internal/service"
	"github.com/kannan2410/saashrm/internal/storage"
)

// Handler 聚合聊天 REST 接口，依赖注入 service 层与 blob 存储。
type Handler struct {
	cfg      config.Config
	channels *service.ChannelService
	messages *service.MessageService
	blobs    storage.Store
}

func NewHandler(cfg config.Config, channels *service.ChannelService, messages *service.MessageService, blobs storage.Store) *Handler {
	return &Handler{cfg: cfg, channels: channels, messages: messages, blobs: blobs}
}

// svcError 把业务层错误映射到 HTTP 状态码。
func svcError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// CreateChannel 创建 PUBLIC/PRIVATE 频道。
func (h *Handler) CreateChannel(c *gin.Context) {
	var req service.CreateChannelInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id := auth.GetIdentity(c)
	channel, err := h.channels.Create(req, id.UserID, id.CompanyID)
	if err != nil {
		svcError(c, err, "failed to create channel")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

// ListChannels 返回当前用户可见的频道列表。
func (h *Handler) ListChannels(c *gin.Context) {
	id := auth.GetIdentity(c)
	channels, err := h.channels.List(id.UserID, id.CompanyID)
	if err != nil {
		svcError(c, err, "failed to list channels")
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// ListMessages 按时间游标倒序分页返回频道历史。
func (h *Handler) ListMessages(c *gin.Context) {
	id := auth.GetIdentity(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := h.messages.List(c.Param("id"), id.UserID, c.Query("cursor"), limit)
	if err != nil {
		svcError(c, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PinnedMessages 返回频道内全部置顶消息。
func (h *Handler) PinnedMessages(c *gin.Context) {
	msgs, err := h.messages.Pinned(c.Param("id"))
	if err != nil {
		svcError(c, err, "failed to list pinned messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// JoinChannel 幂等加入频道。
func (h *Handler) JoinChannel(c *gin.Context) {
	id := auth.GetIdentity(c)
	member, _, err := h.channels.Join(c.Param("id"), id.UserID)
	if err != nil {
		svcError(c, err, "failed to join channel")
		return
	}
	c.JSON(http.StatusOK, gin.H{"member": member})
}

// Members 返回频道成员列表。
func (h *Handler) Members(c *gin.Context) {
	members, err := h.channels.Members(c.Param("id"))
	if err != nil {
		svcError(c, err, "failed to list members")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// AddMember 把指定用户拉进频道。
func (h *Handler) AddMember(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	member, err := h.channels.AddMember(c.Param("id"), req.UserID)
	if err != nil {
		svcError(c, err, "failed to add member")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// ReadStatus 返回频道内各成员的已读时间。
func (h *Handler) ReadStatus(c *gin.Context) {
	members, err := h.channels.ReadStatus(c.Param("id"))
	if err != nil {
		svcError(c, err, "failed to get read status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// CompanyUsers 返回公司通讯录。
func (h *Handler) CompanyUsers(c *gin.Context) {
	id := auth.GetIdentity(c)
	users, err := h.channels.CompanyUsers(id.CompanyID)
	if err != nil {
		svcError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DirectMessages 返回当前用户的 DM 会话列表。
func (h *Handler) DirectMessages(c *gin.Context) {
	id := auth.GetIdentity(c)
	dms, err := h.channels.DirectMessages(id.UserID, id.CompanyID)
	if err != nil {
		svcError(c, err, "failed to list direct messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dms": dms})
}

// StartDirectMessage 查找或创建与指定用户的 DM。
func (h *Handler) StartDirectMessage(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id := auth.GetIdentity(c)
	dm, err := h.channels.CreateOrGetDirect(id.UserID, req.UserID, id.CompanyID)
	if err != nil {
		svcError(c, err, "failed to start direct message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dm": dm})
}

// PinMessage 翻转消息置顶标记。
func (h *Handler) PinMessage(c *gin.Context) {
	msg, err := h.messages.Pin(c.Param("id"))
	if err != nil {
		svcError(c, err, "failed to pin message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// DeleteMessage 删除自己发出的消息。
func (h *Handler) DeleteMessage(c *gin.Context) {
	id := auth.GetIdentity(c)
	res, err := h.messages.Delete(c.Param("id"), id.UserID)
	if err != nil {
		svcError(c, err, "failed to delete message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": res})
}

// UpdateStatus 更新自定义状态，空串清除。
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	id := auth.GetIdentity(c)
	customStatus, err := h.messages.UpdateStatus(id.UserID, req.Status)
	if err != nil {
		svcError(c, err, "failed to update status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": id.UserID, "customStatus": customStatus})
}

// UploadFile 接收 multipart 附件并写入 blob 存储，
// 返回随后挂到 message:send fileData 上的元数据。
func (h *Handler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}
	if fh.Size > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadBytes+1))
	if err != nil || int64(len(data)) > h.cfg.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large"})
		return
	}

	contentType := fh.Header.Get("Content-Type")
	blobName := uuid.NewString() + "-" + fh.Filename
	url, err := h.blobs.Upload(c.Request.Context(), h.cfg.ChatContainer, blobName, data, contentType)
	if err != nil {
		log.Error().Err(err).Str("blob", blobName).Msg("upload file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":      url,
		"blobName": blobName,
		"fileName": fh.Filename,
		"fileSize": fh.Size,
		"mimeType": contentType,
	})
}
