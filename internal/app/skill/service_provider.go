// Package skill provides dependency injection and service management for the
// skill webhook server. It initializes and provides access to the maps client,
// the profile store, the dialogue services and the HTTP handler.
package skill

import (
	"math/rand"
	"sync"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/api"
	"github.com/DenisKhanov/CommuteBot/internal/skill/api/http"
	"github.com/DenisKhanov/CommuteBot/internal/skill/repository"
	"github.com/DenisKhanov/CommuteBot/internal/skill/service"
	"github.com/sirupsen/logrus"
)

// serviceProvider manages dependency injection for the webhook server
// components. It lazily initializes services and handlers as needed.
type serviceProvider struct {
	mapsEndpoint string // Root URL of the Google Maps web services.
	mapsApiKey   string // API key for the Google Maps web services.
	databaseDSN  string // MySQL DSN; empty selects the file-backed store.
	storagePath  string // File path of the development profile store.

	maps         service.MapsService   // Maps client shared by the dialogue services.
	userStore    service.UserStore     // Profile store implementation.
	skillService *service.SkillService // Top-level request router.
	handler      *http.Handler         // The HTTP handler for webhook requests.

	mapsOnce    sync.Once // Ensures thread-safe maps client initialization
	storeOnce   sync.Once // Ensures thread-safe store initialization
	serviceOnce sync.Once // Ensures thread-safe service initialization
	handlerOnce sync.Once // Ensures thread-safe handler initialization
}

// newServiceProvider creates a new instance of serviceProvider with the specified configuration.
// Arguments:
//   - mapsEndpoint: root URL of the Google Maps web services.
//   - mapsApiKey: API key for the Google Maps web services.
//   - databaseDSN: MySQL DSN; when empty the file-backed store is used.
//   - storagePath: file path of the development profile store.
//
// Returns a pointer to a serviceProvider.
func newServiceProvider(mapsEndpoint, mapsApiKey, databaseDSN, storagePath string) *serviceProvider {
	if mapsEndpoint == "" || mapsApiKey == "" {
		logrus.Fatal("serviceProvider creation failed: maps endpoint and API key must be non-empty")
	}

	return &serviceProvider{
		mapsEndpoint: mapsEndpoint,
		mapsApiKey:   mapsApiKey,
		databaseDSN:  databaseDSN,
		storagePath:  storagePath,
	}
}

// MapsAPI returns the Google Maps client shared by the dialogue services.
func (s *serviceProvider) MapsAPI() service.MapsService {
	s.mapsOnce.Do(func() {
		s.maps = api.NewGoogleMapsAPI(s.mapsEndpoint, s.mapsApiKey)
		logrus.Info("Maps client initialized lazily")
	})
	return s.maps
}

// UserStore returns the profile store: MySQL when a DSN is configured, the
// file-backed store otherwise.
func (s *serviceProvider) UserStore() service.UserStore {
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

// SkillService returns the top-level request router, lazily wiring the
// dialogue services around the maps client and the profile store.
func (s *serviceProvider) SkillService() *service.SkillService {
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

// Handler returns the HTTP handler for webhook requests.
func (s *serviceProvider) Handler() *http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = http.NewHandler(s.SkillService())
		logrus.Info("HTTP handler initialized lazily")
	})
	return s.handler
}
