// Package tgbot provides dependency injection and service management for the
// Telegram development console. It wires the same dialogue services as the
// webhook server behind a chat interface.
package tgbot

import (
	"math/rand"
	"sync"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/api"
	"github.com/DenisKhanov/CommuteBot/internal/skill/repository"
	"github.com/DenisKhanov/CommuteBot/internal/skill/service"
	"github.com/DenisKhanov/CommuteBot/internal/tgbridge"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// ServiceProvider manages dependency injection for the console components.
// It lazily initializes services as needed.
type ServiceProvider struct {
	mapsEndpoint string // Root URL of the Google Maps web services.
	mapsApiKey   string // API key for the Google Maps web services.
	databaseDSN  string // MySQL DSN; empty selects the file-backed store.
	storagePath  string // File path of the development profile store.

	maps         service.MapsService
	userStore    service.UserStore
	skillService *service.SkillService
	botAPI       *tgbotapi.BotAPI
	bridge       *tgbridge.Bridge

	mapsOnce    sync.Once
	storeOnce   sync.Once
	serviceOnce sync.Once
	botOnce     sync.Once
	bridgeOnce  sync.Once
}

// NewServiceProvider creates a new instance of ServiceProvider with the specified configuration.
func NewServiceProvider(mapsEndpoint, mapsApiKey, databaseDSN, storagePath string) *ServiceProvider {
	if mapsEndpoint == "" || mapsApiKey == "" {
		logrus.Fatal("ServiceProvider creation failed: maps endpoint and API key must be non-empty")
	}

	return &ServiceProvider{
		mapsEndpoint: mapsEndpoint,
		mapsApiKey:   mapsApiKey,
		databaseDSN:  databaseDSN,
		storagePath:  storagePath,
	}
}

// MapsAPI returns the Google Maps client shared by the dialogue services.
func (s *ServiceProvider) MapsAPI() service.MapsService {
	s.mapsOnce.Do(func() {
		s.maps = api.NewGoogleMapsAPI(s.mapsEndpoint, s.mapsApiKey)
		logrus.Info("Maps client initialized lazily")
	})
	return s.maps
}

// UserStore returns the profile store: MySQL when a DSN is configured, the
// file-backed store otherwise.
func (s *ServiceProvider) UserStore() service.UserStore {
	s.storeOnce.Do(func() {
		if s.databaseDSN != "" {
			store, err := repository.NewMySQLUserStore(s.databaseDSN)
			if err != nil {
				logrus.Fatalf("Failed to initialize MySQL profile store: %v", err)
			}
			s.userStore = store
			logrus.Info("MySQL profile store initialized lazily")
			return
		}

		store := repository.NewFileUserStore(s.storagePath)
		if err := store.ReadFileToMemory(); err != nil {
			logrus.Fatalf("Failed to load profile storage file: %v", err)
		}
		s.userStore = store
		logrus.Info("File profile store initialized lazily")
	})
	return s.userStore
}

// SkillService returns the top-level request router.
func (s *ServiceProvider) SkillService() *service.SkillService {
	s.serviceOnce.Do(func() {
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		reprompts := service.NewRepromptSelector(rnd)
		transit := service.NewTransitDialogService(s.MapsAPI(), reprompts, time.Now)
		setup := service.NewSetupDialogService(s.MapsAPI(), s.UserStore())
		s.skillService = service.NewSkillService(transit, setup, s.UserStore(), s.MapsAPI())
		logrus.Info("Skill service initialized lazily")
	})
	return s.skillService
}

// BotAPI returns the Telegram Bot API instance.
func (s *ServiceProvider) BotAPI(botToken string) (*tgbotapi.BotAPI, error) {
	var err error
	s.botOnce.Do(func() {
		s.botAPI, err = tgbotapi.NewBotAPI(botToken)
	})
	return s.botAPI, err
}

// Bridge returns the console bridge around the bot and the skill service.
func (s *ServiceProvider) Bridge(bot *tgbotapi.BotAPI) *tgbridge.Bridge {
	s.bridgeOnce.Do(func() {
		s.bridge = tgbridge.NewBridge(bot, s.SkillService())
		logrus.Info("Console bridge initialized lazily")
	})
	return s.bridge
}
