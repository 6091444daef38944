package service

import (
	"errors"
	"testing"

	"github.com/kannan2410/saashrm/internal/models"
)

func TestDMKey_OrderIndependent(t *testing.T) {
	a := DMKey("co1", "u1", "u2")
	b := DMKey("co1", "u2", "u1")
	if a != b {
		t.Errorf("DMKey() not symmetric: %s != %s", a, b)
	}
	if a == DMKey("co2", "u1", "u2") {
		t.Error("DMKey() should differ across companies")
	}
}

func TestChannelService_CreateValidation(t *testing.T) {
	svc := NewChannelService(newTestDB(t))

	long := make([]byte, 101)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name string
		in   CreateChannelInput
	}{
		{"empty name", CreateChannelInput{Name: "   "}},
		{"name too long", CreateChannelInput{Name: string(long)}},
		{"direct type rejected", CreateChannelInput{Name: "ok", Type: models.ChannelDirect}},
		{"unknown type", CreateChannelInput{Name: "ok", Type: "SECRET"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(tt.in, "u1", "co1")
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestChannelService_CreateWithMembers(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	owner := seedUser(t, db, "owner@acme.test", "co1")
	alice := seedUser(t, db, "alice@acme.test", "co1")
	bob := seedUser(t, db, "bob@acme.test", "co1")

	// Duplicate and creator ids in memberIds must not produce extra rows
	ch, err := svc.Create(CreateChannelInput{
		Name:      "general",
		MemberIDs: []string{alice.ID, bob.ID, alice.ID, owner.ID},
	}, owner.ID, "co1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ch.Type != models.ChannelPublic {
		t.Errorf("type = %s, want PUBLIC default", ch.Type)
	}
	if ch.MemberCount != 3 {
		t.Errorf("memberCount = %d, want 3", ch.MemberCount)
	}

	var n int64
	db.Model(&models.ChannelMember{}).Where("channel_id = ?", ch.ID).Count(&n)
	if n != 3 {
		t.Errorf("member rows = %d, want 3", n)
	}
}

func TestChannelService_ListVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	me := seedUser(t, db, "me@acme.test", "co1")
	other := seedUser(t, db, "other@acme.test", "co1")

	pub, err := svc.Create(CreateChannelInput{Name: "town-square"}, other.ID, "co1")
	if err != nil {
		t.Fatalf("create public: %v", err)
	}
	mine, err := svc.Create(CreateChannelInput{Name: "leads", Type: models.ChannelPrivate, MemberIDs: []string{me.ID}}, other.ID, "co1")
	if err != nil {
		t.Fatalf("create private with me: %v", err)
	}
	if _, err := svc.Create(CreateChannelInput{Name: "execs", Type: models.ChannelPrivate}, other.ID, "co1"); err != nil {
		t.Fatalf("create private without me: %v", err)
	}
	if _, err := svc.Create(CreateChannelInput{Name: "elsewhere"}, other.ID, "co2"); err != nil {
		t.Fatalf("create foreign company: %v", err)
	}
	if _, err := svc.CreateOrGetDirect(me.ID, other.ID, "co1"); err != nil {
		t.Fatalf("create dm: %v", err)
	}

	channels, err := svc.List(me.ID, "co1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	got := make(map[string]bool, len(channels))
	for _, ch := range channels {
		got[ch.ID] = true
		if ch.Type == models.ChannelDirect {
			t.Error("List() must not include DIRECT channels")
		}
	}
	if !got[pub.ID] {
		t.Error("public channel in own company should be visible to non-members")
	}
	if !got[mine.ID] {
		t.Error("private channel with membership should be visible")
	}
	if len(channels) != 2 {
		t.Errorf("List() returned %d channels, want 2", len(channels))
	}
}

func TestChannelService_DirectRoundTrip(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	alice := seedUser(t, db, "alice@acme.test", "co1")
	bob := seedUser(t, db, "bob@acme.test", "co1")

	first, err := svc.CreateOrGetDirect(alice.ID, bob.ID, "co1")
	if err != nil {
		t.Fatalf("CreateOrGetDirect() error = %v", err)
	}
	if first.OtherUser == nil || first.OtherUser.ID != bob.ID {
		t.Errorf("otherUser = %+v, want bob", first.OtherUser)
	}

	// The same pair from either side must resolve to the same channel
	second, err := svc.CreateOrGetDirect(bob.ID, alice.ID, "co1")
	if err != nil {
		t.Fatalf("CreateOrGetDirect() reverse error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("reverse lookup id = %s, want %s", second.ID, first.ID)
	}
	if second.OtherUser == nil || second.OtherUser.ID != alice.ID {
		t.Errorf("reverse otherUser = %+v, want alice", second.OtherUser)
	}

	var n int64
	db.Model(&models.Channel{}).Where("type = ?", models.ChannelDirect).Count(&n)
	if n != 1 {
		t.Errorf("direct channel rows = %d, want 1", n)
	}
}

func TestChannelService_DirectValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	alice := seedUser(t, db, "alice@acme.test", "co1")

	if _, err := svc.CreateOrGetDirect(alice.ID, alice.ID, "co1"); !errors.Is(err, ErrValidation) {
		t.Errorf("self DM error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateOrGetDirect(alice.ID, "", "co1"); !errors.Is(err, ErrValidation) {
		t.Errorf("empty userId error = %v, want ErrValidation", err)
	}
	if _, err := svc.CreateOrGetDirect(alice.ID, "missing", "co1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user error = %v, want ErrNotFound", err)
	}
}

func TestChannelService_JoinIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	owner := seedUser(t, db, "owner@acme.test", "co1")
	joiner := seedUser(t, db, "joiner@acme.test", "co1")

	ch, err := svc.Create(CreateChannelInput{Name: "general"}, owner.ID, "co1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m1, created, err := svc.Join(ch.ID, joiner.ID)
	if err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if !created {
		t.Error("first Join() should report created = true")
	}

	m2, created, err := svc.Join(ch.ID, joiner.ID)
	if err != nil {
		t.Fatalf("second Join() error = %v", err)
	}
	if created {
		t.Error("second Join() should report created = false")
	}
	if m2.ID != m1.ID {
		t.Errorf("second Join() member id = %s, want existing %s", m2.ID, m1.ID)
	}

	var n int64
	db.Model(&models.ChannelMember{}).
		Where("channel_id = ? AND user_id = ?", ch.ID, joiner.ID).Count(&n)
	if n != 1 {
		t.Errorf("member rows = %d, want 1", n)
	}
}

func TestChannelService_JoinUnknownChannel(t *testing.T) {
	svc := NewChannelService(newTestDB(t))
	if _, _, err := svc.Join("missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Join() error = %v, want ErrNotFound", err)
	}
}

func TestChannelService_UserChannelIDs(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	owner := seedUser(t, db, "owner@acme.test", "co1")

	c1, _ := svc.Create(CreateChannelInput{Name: "one"}, owner.ID, "co1")
	c2, _ := svc.Create(CreateChannelInput{Name: "two"}, owner.ID, "co1")

	ids, err := svc.UserChannelIDs(owner.ID)
	if err != nil {
		t.Fatalf("UserChannelIDs() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("UserChannelIDs() = %v, want 2 ids", ids)
	}
	got := map[string]bool{ids[0]: true, ids[1]: true}
	if !got[c1.ID] || !got[c2.ID] {
		t.Errorf("UserChannelIDs() = %v, want %s and %s", ids, c1.ID, c2.ID)
	}
}

func TestChannelService_ReadStatus(t *testing.T) {
	db := newTestDB(t)
	channels := NewChannelService(db)
	messages := NewMessageService(db)
	owner := seedUser(t, db, "owner@acme.test", "co1")
	reader := seedUser(t, db, "reader@acme.test", "co1")

	ch, err := channels.Create(CreateChannelInput{Name: "general", MemberIDs: []string{reader.ID}}, owner.ID, "co1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := messages.MarkRead(ch.ID, reader.ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}

	rows, err := channels.ReadStatus(ch.ID)
	if err != nil {
		t.Fatalf("ReadStatus() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ReadStatus() returned %d rows, want only the member who read", len(rows))
	}
	if rows[0].UserID != reader.ID {
		t.Errorf("userId = %s, want %s", rows[0].UserID, reader.ID)
	}
	if rows[0].LastReadAt == nil {
		t.Error("lastReadAt should be set")
	}
	if rows[0].User == nil || rows[0].User.Email != reader.Email {
		t.Errorf("user ref = %+v, want %s", rows[0].User, reader.Email)
	}
}

func TestChannelService_CompanyUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewChannelService(db)
	seedUser(t, db, "b@acme.test", "co1")
	seedUser(t, db, "a@acme.test", "co1")
	seedUser(t, db, "x@other.test", "co2")

	users, err := svc.CompanyUsers("co1")
	if err != nil {
		t.Fatalf("CompanyUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("CompanyUsers() returned %d users, want 2", len(users))
	}
	if users[0].Email != "a@acme.test" || users[1].Email != "b@acme.test" {
		t.Errorf("order = [%s %s], want email ascending", users[0].Email, users[1].Email)
	}
}
