package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kannan2410/saashrm/internal/auth"
	"github.com/kannan2410/saashrm/internal/config"
	"github.com/kannan2410/saashrm/internal/models"
	"github.com/kannan2410/saashrm/internal/service"
	"github.com/kannan2410/saashrm/internal/storage"
	"github.com/kannan2410/saashrm/internal/ws"
)

func newTestRouter(t *testing.T) (*gin.Engine, config.Config, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Channel{},
		&models.ChannelMember{},
		&models.Message{},
		&models.ChatFile{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Port:           "4000",
		JWTSecret:      "router-test-secret",
		Env:            "dev",
		BlobBackend:    "local",
		BlobLocalDir:   t.TempDir(),
		ChatContainer:  "chat-files",
		MaxUploadBytes: 1 << 20,
	}

	channels := service.NewChannelService(db)
	messages := service.NewMessageService(db)
	gateway := ws.NewGateway(cfg, ws.NewHub(), ws.NewPresence(), channels, messages)
	h := NewHandler(cfg, channels, messages, storage.NewLocalStore(cfg.BlobLocalDir))
	return SetupRouter(cfg, h, gateway), cfg, db
}

func bearerFor(t *testing.T, cfg config.Config, user models.User) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	}, cfg.JWTSecret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return "Bearer " + token
}

func TestRouter_Healthz(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestRouter_RequiresAuth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/chat/channels", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/chat/channels", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", w.Code)
	}
}

func TestRouter_CreateAndListChannels(t *testing.T) {
	r, cfg, db := newTestRouter(t)
	user := models.User{Email: "alice@acme.test", Role: "EMPLOYEE", CompanyID: "co1", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token := bearerFor(t, cfg, user)

	body := strings.NewReader(`{"name":"general","type":"PUBLIC"}`)
	req := httptest.NewRequest("POST", "/api/v1/chat/channels", body)
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /channels = %d, body %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/v1/chat/channels", nil)
	req.Header.Set("Authorization", token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /channels = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Channels []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"channels"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Channels) != 1 || resp.Channels[0].Name != "general" {
		t.Errorf("channels = %+v, want just general", resp.Channels)
	}
}

func TestRouter_ValidationMapsTo400(t *testing.T) {
	r, cfg, db := newTestRouter(t)
	user := models.User{Email: "alice@acme.test", Role: "EMPLOYEE", CompanyID: "co1", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	body := strings.NewReader(`{"name":"   "}`)
	req := httptest.NewRequest("POST", "/api/v1/chat/channels", body)
	req.Header.Set("Authorization", bearerFor(t, cfg, user))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank name = %d, want 400", w.Code)
	}
}

func TestRouter_NotFoundMapsTo404(t *testing.T) {
	r, cfg, db := newTestRouter(t)
	user := models.User{Email: "alice@acme.test", Role: "EMPLOYEE", CompanyID: "co1", IsActive: true}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/chat/channels/"+uuid.NewString()+"/messages", nil)
	req.Header.Set("Authorization", bearerFor(t, cfg, user))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown channel = %d, want 404", w.Code)
	}
}
