package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/auth"
	"github.com/sarpras-lapor/apiserver/internal/events"
	"github.com/sarpras-lapor/apiserver/internal/mq"
	"github.com/sarpras-lapor/apiserver/internal/qr"
	"github.com/sarpras-lapor/apiserver/internal/storage"
	"github.com/sarpras-lapor/apiserver/internal/store/storetest"
	"github.com/sarpras-lapor/apiserver/types"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

const eventChannel = "laporan-events"

var pngHeader = "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)

type testEnv struct {
	db          *storetest.DB
	photos      *storage.Memory
	broker      *mq.Memory
	revocations *storetest.Revocations
	logHook     *logtest.Hook

	users     *UserService
	sarpras   *SarprasService
	laporan   *LaporanService
	dashboard *DashboardService

	admin auth.Identity
	alice auth.Identity
	bob   auth.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		db:          storetest.New(),
		photos:      storage.NewMemory("test"),
		broker:      mq.NewMemory(),
		revocations: storetest.NewRevocations(),
		logHook:     hook,
	}
	publisher := events.NewPublisher(mq.New(env.broker), eventChannel)
	tokens := auth.NewTokenManager("test-secret", time.Hour, "test")

	env.users = NewUserService(env.db.Users(), tokens, env.revocations, logger)
	env.sarpras = NewSarprasService(env.db.Sarpras(), qr.NewEncoder(64), publisher, logger)
	env.laporan = NewLaporanService(env.db.Laporan(), env.db.Sarpras(), storage.NewStorage(env.photos), 1<<20, publisher, logger)
	env.dashboard = NewDashboardService(env.db.Dashboard())

	env.admin = env.register(t, "admin", types.RoleAdmin)
	env.alice = env.register(t, "alice", types.RoleUser)
	env.bob = env.register(t, "bob", types.RoleUser)
	return env
}

func (e *testEnv) register(t *testing.T, username string, role types.Role) auth.Identity {
	t.Helper()
	user, err := e.users.Register(context.Background(), RegisterInput{
		Username: username,
		Password: "password1",
		Name:     strings.ToUpper(username[:1]) + username[1:],
		Email:    username + "@example.com",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return auth.Identity{UserID: user.ID, Username: user.Username, Role: user.Role, SessionID: username + "-session", ExpiresAt: time.Now().Add(time.Hour)}
}

func (e *testEnv) createAsset(t *testing.T, code, location string) types.Sarpras {
	t.Helper()
	item, err := e.sarpras.Create(context.Background(), e.admin, SarprasInput{
		Code:     code,
		Name:     "Asset " + code,
		Category: "elektronik",
		Location: location,
	})
	if err != nil {
		t.Fatalf("create asset %s: %v", code, err)
	}
	return item
}

func (e *testEnv) createReport(t *testing.T, actor auth.Identity, asset types.Sarpras) types.Laporan {
	t.Helper()
	item, err := e.laporan.Create(context.Background(), actor, LaporanInput{
		SarprasID:   asset.ID,
		Description: "AC bocor",
		ReportDate:  "2026-02-10",
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	return item
}

func (e *testEnv) events(t *testing.T) []events.Event {
	t.Helper()
	var out []events.Event
	for _, msg := range e.broker.Drain(eventChannel) {
		event, err := events.Decode(msg)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		out = append(out, event)
	}
	return out
}

func photo(body string) *Photo {
	return &Photo{Filename: "foto.png", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func strPtr(s string) *string { return &s }
