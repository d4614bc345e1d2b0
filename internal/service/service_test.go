package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/model"
	"techacademy_backend/pkg/database"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "test")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, userID, email string, role model.UserRole) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		UserID:    userID,
		FirstName: "First" + userID,
		LastName:  "Last",
		Email:     email,
		Password:  string(hash),
		Role:      role,
		Status:    model.UserPending,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// fakeCMS 内存中的 CMS，按 contentType/uid 返回条目
type fakeCMS struct {
	mu         sync.Mutex
	configured bool
	entries    map[string]cms.Entry
	lists      map[string][]cms.Entry
	terms      []map[string]any
	err        error
	calls      int
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		configured: true,
		entries:    map[string]cms.Entry{},
		lists:      map[string][]cms.Entry{},
	}
}

func (f *fakeCMS) Configured() bool { return f.configured }

func (f *fakeCMS) GetEntry(ctx context.Context, contentType, uid string, include ...string) (cms.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[contentType+"/"+uid]
	if !ok {
		return nil, cms.ErrNotFound
	}
	return e, nil
}

func (f *fakeCMS) FindEntries(ctx context.Context, contentType string, q cms.Query) ([]cms.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[contentType], nil
}

func (f *fakeCMS) TaxonomyTerms(ctx context.Context, taxonomyUID string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.terms == nil {
		return nil, cms.ErrNotConfigured
	}
	return f.terms, nil
}

type staticCounter struct {
	total int
	err   error
}

func (c staticCounter) ModuleCount(ctx context.Context, courseUID string) (int, error) {
	return c.total, c.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
