package service_test

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/types"
)

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), []byte("IHDR-test-image")...)

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

type memImageStore struct {
	mu    sync.Mutex
	saved map[string][]byte
}

func newMemImageStore() *memImageStore {
	return &memImageStore{saved: make(map[string][]byte)}
}

func (s *memImageStore) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[key] = data
	return "/media/" + key, nil
}

func (s *memImageStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, key)
	return nil
}

func (s *memImageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func ptr[T any](v T) *T {
	return &v
}

func firstPage() types.PageRequest {
	return types.PageRequest{Offset: 0, Limit: 10}
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}
