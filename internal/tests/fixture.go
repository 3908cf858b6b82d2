// Package tests provides the shared postgres fixture and HTTP helpers used by the package tests.
package tests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/furfur/central/internal/config"
	"github.com/furfur/central/internal/database"
	"github.com/furfur/central/internal/httphelper"
	"github.com/furfur/central/internal/log"
	"github.com/furfur/central/internal/player"
	"github.com/gin-gonic/gin"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var ErrContainer = errors.New("failed to bring up test container")

type postgresContainer struct {
	testcontainers.Container
	dsn string
}

func newDB(ctx context.Context) (*postgresContainer, error) {
	const testInfo = "central-test"
	username, password, dbName := testInfo, testInfo, testInfo

	cont, errContainer := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			HostConfigModifier: func(config *container.HostConfig) {
				config.AutoRemove = true
			},
			Env: map[string]string{
				"POSTGRES_DB":       dbName,
				"POSTGRES_USER":     username,
				"POSTGRES_PASSWORD": password,
			},
			WaitingFor: wait.
				ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if errContainer != nil {
		return nil, errors.Join(errContainer, ErrContainer)
	}

	host, errHost := cont.Host(ctx)
	if errHost != nil {
		return nil, errors.Join(errHost, ErrContainer)
	}

	port, errPort := cont.MappedPort(ctx, "5432")
	if errPort != nil {
		return nil, errors.Join(errPort, ErrContainer)
	}

	return &postgresContainer{
		Container: cont,
		dsn:       fmt.Sprintf("postgresql://%s:%s@%s:%s/%s", username, password, host, port.Port(), dbName),
	}, nil
}

// Fixture is a migrated database shared by all tests of a package. A nil *Fixture means no container
// runtime was available and database backed tests are skipped.
type Fixture struct {
	container *postgresContainer
	Database  database.Database
	Config    config.Config
	DSN       string
}

// NewFixture starts a postgres container and applies the migrations. It returns nil when the container
// cannot be started.
func NewFixture() *Fixture {
	testCtx, cancel := context.WithTimeout(context.Background(), time.Minute*2)
	defer cancel()

	testDB, errStore := newDB(testCtx)
	if errStore != nil {
		slog.Warn("Database tests disabled", log.ErrAttr(errStore))

		return nil
	}

	databaseConn := database.New(testDB.dsn, true, false)
	if err := databaseConn.Connect(testCtx); err != nil {
		panic(err)
	}

	return &Fixture{
		container: testDB,
		Database:  databaseConn,
		Config:    TestConfig(testDB.dsn),
		DSN:       testDB.dsn,
	}
}

// Require skips the calling test when there is no database available.
func (f *Fixture) Require(t *testing.T) {
	t.Helper()

	if f == nil {
		t.Skip("No container runtime available")
	}
}

func (f *Fixture) Close() {
	if f == nil {
		return
	}

	_ = f.Database.Close()

	termCtx, termCancel := context.WithTimeout(context.Background(), time.Second*30)
	defer termCancel()

	if errTerm := f.container.Terminate(termCtx); errTerm != nil {
		panic(fmt.Sprintf("Failed to terminate test container: %v", errTerm))
	}
}

func (f *Fixture) CreateRouter() *gin.Engine {
	router, err := httphelper.CreateRouter(httphelper.RouterOpts{LogLevel: log.Error, Mode: gin.TestMode})
	if err != nil {
		panic(err)
	}

	return router
}

// CreateTestPlayer creates a fully linked player with random identifiers.
func (f *Fixture) CreateTestPlayer(ctx context.Context) player.Player {
	players := player.NewPlayers(player.NewRepository(f.Database), nil)

	newPlayer, errPlayer := players.Create(ctx, player.CreateRequest{Ckey: RandCkey(), DiscordID: RandDiscordID()})
	if errPlayer != nil {
		panic(errPlayer)
	}

	return newPlayer
}

func TestConfig(dsn string) config.Config {
	return config.Config{
		General: config.General{
			SiteName:    "central",
			Mode:        config.TestMode,
			ExternalURL: "http://example.com",
		},
		HTTP: config.HTTP{
			Host:            "localhost",
			Port:            8000,
			ClientTimeout:   time.Second * 5,
			PublicRateLimit: 100,
			PublicRateBurst: 100,
		},
		Database: config.Database{
			DSN:         dsn,
			AutoMigrate: true,
		},
		Log: log.Config{
			Level: log.Error,
		},
		Notification: config.Notification{
			Backend: config.NotificationNone,
			Prefix:  "central",
			Channel: "player.link",
		},
		Discord: config.Discord{
			ClientID:          "client",
			ClientSecret:      "secret",
			RedirectURL:       "http://example.com/v1/link/callback",
			APIURL:            "https://discord.com/api/v10",
			RequestsPerSecond: 100,
		},
		Link: config.Link{
			TokenTTL: time.Minute * 5,
		},
		Whitelist: config.Whitelist{
			GrantDays: 30,
			BanDays:   14,
		},
		Donation: config.Donation{
			DurationDays: 30,
			MinTier:      1,
			GrantMode:    config.GrantModeDonation,
			FixedDays:    30,
		},
	}
}
