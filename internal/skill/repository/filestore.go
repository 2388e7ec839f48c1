// Package repository provides profile persistence for skill users. Two
// implementations exist: a MySQL-backed store for production and a file-backed
// store for local development. Both satisfy the dialogue layer's UserStore
// interface and report missing profiles with models.ErrUserNotFound.
package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/skill/models"
	"github.com/sirupsen/logrus"
)

// FileUserStore keeps user profiles in memory and persists every mutation to
// a JSON file, so restarts of a development server keep their users.
type FileUserStore struct {
	users           map[string]*models.TransitUser // In-memory store of profiles by user ID.
	storageFilePath string                         // File path for persisting profiles.
	mu              *sync.RWMutex                  // Protects users from concurrent access
}

// NewFileUserStore creates a new FileUserStore instance with an empty memory buffer.
// Arguments:
//   - storagePath: file path where profiles are persisted.
//
// Returns a pointer to a FileUserStore.
func NewFileUserStore(storagePath string) *FileUserStore {
	return &FileUserStore{
		users:           make(map[string]*models.TransitUser),
		storageFilePath: storagePath,
		mu:              &sync.RWMutex{},
	}
}

// ReadFileToMemory loads persisted profiles from the storage file into the
// in-memory buffer. A missing or empty file starts an empty store.
func (f *FileUserStore) ReadFileToMemory() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.storageFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.Infof("Storage file %s does not exist, starting with empty buffer", f.storageFilePath)
			return nil
		}
		err = fmt.Errorf("failed to read storage file %s: %w", f.storageFilePath, err)
		logrus.WithError(err).Error("Error reading storage file")
		return err
	}

	if len(data) == 0 {
		logrus.Infof("Storage file %s is empty, starting with empty buffer", f.storageFilePath)
		return nil
	}

	var buffer map[string]*models.TransitUser
	if err = json.Unmarshal(data, &buffer); err != nil {
		err = fmt.Errorf("failed to unmarshal storage file %s: %w", f.storageFilePath, err)
		logrus.WithError(err).Error("Error parsing storage file")
		return err
	}

	f.users = buffer
	logrus.Infof("Loaded %d user profiles from %s", len(f.users), f.storageFilePath)
	return nil
}

// GetUser retrieves the profile of the given user.
// Arguments:
//   - userID: stable identity supplied by the voice platform.
//
// Returns a copy of the profile, or models.ErrUserNotFound.
func (f *FileUserStore) GetUser(userID string) (*models.TransitUser, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	user, ok := f.users[userID]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return copyUser(user), nil
}

// UpsertUser creates or replaces the full profile of a user.
// Arguments:
//   - userID: stable identity supplied by the voice platform.
//   - homeAddress: resolved postal home address.
//   - destinations: destination label to resolved address, including "work".
//   - timezone: IANA identifier, may be empty.
//
// Returns the stored profile.
func (f *FileUserStore) UpsertUser(userID, homeAddress string, destinations map[string]string, timezone string) (*models.TransitUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := &models.TransitUser{
		UserID:       userID,
		HomeAddress:  homeAddress,
		TimeZone:     timezone,
		Destinations: copyDestinations(destinations),
	}
	f.users[userID] = user

	if err := f.saveToFile(); err != nil {
		return nil, err
	}
	return copyUser(user), nil
}

// UpdateHomeAddress replaces the home address of an existing user.
func (f *FileUserStore) UpdateHomeAddress(userID, homeAddress string) error {
	return f.mutateUser(userID, func(user *models.TransitUser) {
		user.HomeAddress = homeAddress
	})
}

// AddOrUpdateDestination sets one named destination of an existing user.
func (f *FileUserStore) AddOrUpdateDestination(userID, name, address string) error {
	return f.mutateUser(userID, func(user *models.TransitUser) {
		if user.Destinations == nil {
			user.Destinations = make(map[string]string)
		}
		user.Destinations[name] = address
	})
}

// AddOrUpdateTimezone sets the timezone of an existing user.
func (f *FileUserStore) AddOrUpdateTimezone(userID, timezone string) error {
	return f.mutateUser(userID, func(user *models.TransitUser) {
		user.TimeZone = timezone
	})
}

// DeleteUser removes the profile of a user. Deleting an unknown user is a no-op.
func (f *FileUserStore) DeleteUser(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[userID]; !ok {
		return nil
	}
	delete(f.users, userID)
	return f.saveToFile()
}

// ContainsUser reports whether a profile exists for the given user.
func (f *FileUserStore) ContainsUser(userID string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.users[userID]
	return ok, nil
}

func (f *FileUserStore) mutateUser(userID string, mutate func(*models.TransitUser)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	mutate(user)
	return f.saveToFile()
}

// saveToFile persists the in-memory buffer through a temp file renamed into
// place. Callers must hold the write lock.
func (f *FileUserStore) saveToFile() error {
	startTime := time.Now()

	tempPath := f.storageFilePath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		err = fmt.Errorf("failed to open temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error saving profiles to file")
		return err
	}
	defer func() {
		if err = file.Close(); err != nil {
			logrus.WithError(err).Errorf("Failed to close file: %v", err)
		}
	}()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	if err = encoder.Encode(f.users); err != nil {
		err = fmt.Errorf("failed to encode profiles to temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error encoding profiles")
		return err
	}
	if err = writer.Flush(); err != nil {
		err = fmt.Errorf("failed to flush temp file %s: %w", tempPath, err)
		logrus.WithError(err).Error("Error flushing profiles")
		return err
	}

	if err = os.Rename(tempPath, f.storageFilePath); err != nil {
		err = fmt.Errorf("failed to rename temp file %s to %s: %w", tempPath, f.storageFilePath, err)
		logrus.WithError(err).Error("Error finalizing profile save")
		return err
	}

	logrus.Infof("Saved %d user profiles to %s in %v", len(f.users), f.storageFilePath, time.Since(startTime))
	return nil
}

func copyUser(user *models.TransitUser) *models.TransitUser {
	userCopy := *user
	userCopy.Destinations = copyDestinations(user.Destinations)
	return &userCopy
}

func copyDestinations(destinations map[string]string) map[string]string {
	if destinations == nil {
		return nil
	}
	destinationsCopy := make(map[string]string, len(destinations))
	for name, address := range destinations {
		destinationsCopy[name] = address
	}
	return destinationsCopy
}
