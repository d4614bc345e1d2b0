package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"techacademy_backend/internal/config"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeMailer struct {
	sent []Invite
	err  error
}

func (m *fakeMailer) SendInvite(ctx context.Context, invite Invite) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, invite)
	return nil
}

func newUserFixture(t *testing.T) (*UserService, *fakeMailer, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	mailer := &fakeMailer{}
	svc := NewUserService(repository.NewUserRepository(db), repository.NewRoleRepository(db), mailer, "http://localhost:3000/login")
	return svc, mailer, db
}

func TestUserService_Invite(t *testing.T) {
	svc, mailer, _ := newUserFixture(t)

	res, err := svc.Invite(context.Background(), "user-admin", InviteUserRequest{
		FirstName: " Ana ",
		LastName:  "Silva",
		Email:     "Ana@TechAcademy.com",
		Role:      "trainee",
	})
	require.NoError(t, err)
	assert.True(t, res.EmailSent)
	assert.Nil(t, res.EmailError)
	assert.Equal(t, "User created and invitation email sent successfully", res.Message)
	assert.Len(t, res.GeneratedPassword, util.GeneratedPasswordLength)

	u := res.User
	assert.Equal(t, "ana@techacademy.com", u.Email)
	assert.Equal(t, "Ana", u.FirstName)
	assert.Equal(t, model.UserPending, u.Status)
	assert.Equal(t, "user-admin", u.InvitedBy)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(res.GeneratedPassword)))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, res.GeneratedPassword, mailer.sent[0].Password)
	assert.Equal(t, "http://localhost:3000/login", mailer.sent[0].LoginURL)

	_, err = svc.Invite(context.Background(), "user-admin", InviteUserRequest{FirstName: "A", LastName: "B", Email: "ana@techacademy.com", Role: "admin"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	_, err = svc.Invite(context.Background(), "user-admin", InviteUserRequest{FirstName: "A", LastName: "B", Email: "x@techacademy.com", Role: "owner"})
	assert.ErrorIs(t, err, util.ErrInvalidRole)
}

func TestUserService_InviteMailFailureKeepsUser(t *testing.T) {
	svc, mailer, _ := newUserFixture(t)
	mailer.err = errors.New("smtp down")

	res, err := svc.Invite(context.Background(), "user-admin", InviteUserRequest{FirstName: "A", LastName: "B", Email: "b@techacademy.com", Role: "admin"})
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	require.NotNil(t, res.EmailError)
	assert.Equal(t, "smtp down", *res.EmailError)
	assert.Contains(t, res.Message, "share the password manually")

	_, err = svc.UserRepo.FindByEmail("b@techacademy.com")
	assert.NoError(t, err)
}

func TestUserService_TrainersAndTrainees(t *testing.T) {
	svc, _, db := newUserFixture(t)
	createUser(t, db, "user-b", "b@techacademy.com", model.Admin)
	createUser(t, db, "user-a", "a@techacademy.com", model.SuperAdmin)
	createUser(t, db, "user-c", "c@techacademy.com", model.Trainee)

	trainers, err := svc.Trainers()
	require.NoError(t, err)
	require.Len(t, trainers, 2)
	assert.Equal(t, "user-a", trainers[0].UserID)

	trainees, err := svc.Trainees()
	require.NoError(t, err)
	require.Len(t, trainees, 1)
	assert.Equal(t, "user-c", trainees[0].UserID)
}

func TestUserService_Delete(t *testing.T) {
	svc, _, db := newUserFixture(t)
	createUser(t, db, "user-a", "a@techacademy.com", model.Admin)
	createUser(t, db, "user-t", "t@techacademy.com", model.Trainee)

	assert.ErrorIs(t, svc.Delete("user-a", "user-a"), util.ErrSelfDelete)
	assert.ErrorIs(t, svc.Delete("user-a", "nobody"), util.ErrUserNotFound)
	require.NoError(t, svc.Delete("user-a", "user-t"))

	_, err := svc.UserRepo.FindByUserID("user-t")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserService_RolesFallback(t *testing.T) {
	svc, _, db := newUserFixture(t)

	roles, err := svc.Roles()
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRoles(), roles)

	require.NoError(t, db.Create(&model.Role{RoleID: "trainee", RoleName: model.Trainee, Description: "Trainee"}).Error)
	roles, err = svc.Roles()
	require.NoError(t, err)
	require.Len(t, roles, 1)
}

func TestAuthService_Login(t *testing.T) {
	db := newTestDB(t)
	createUser(t, db, "user-t", "t@techacademy.com", model.Trainee)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	svc := NewAuthService(repository.NewUserRepository(db), cfg)
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	svc.now = fixedClock(now)

	_, err := svc.Login("t@techacademy.com", "wrong-password")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = svc.Login("nobody@techacademy.com", "Password123")
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	res, err := svc.Login("t@techacademy.com", "Password123")
	require.NoError(t, err)
	assert.Equal(t, "user-t", res.User.UserID)
	assert.Equal(t, model.Trainee, res.User.Role)

	claims, err := util.ParseJWT(res.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-t", claims.UserID)

	u, err := svc.UserRepo.FindByUserID("user-t")
	require.NoError(t, err)
	assert.Equal(t, model.UserAccepted, u.Status)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, u.LastLoginAt.Equal(now))
}
