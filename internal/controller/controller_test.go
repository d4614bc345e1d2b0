package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"techacademy_backend/internal/cms"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/middleware"
	"techacademy_backend/internal/model"
	"techacademy_backend/internal/repository"
	"techacademy_backend/internal/service"
	"techacademy_backend/internal/util"
	"techacademy_backend/pkg/database"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type stubCMS struct {
	entries map[string]cms.Entry
	err     error
}

func (s *stubCMS) Configured() bool { return true }

func (s *stubCMS) GetEntry(ctx context.Context, contentType, uid string, include ...string) (cms.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	if e, ok := s.entries[contentType+"/"+uid]; ok {
		return e, nil
	}
	return nil, cms.ErrNotFound
}

func (s *stubCMS) FindEntries(ctx context.Context, contentType string, q cms.Query) ([]cms.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []cms.Entry{}, nil
}

func (s *stubCMS) TaxonomyTerms(ctx context.Context, taxonomyUID string) ([]map[string]any, error) {
	return nil, cms.ErrNotConfigured
}

type testEnv struct {
	db     *gorm.DB
	cms    *stubCMS
	engine *gin.Engine
}

// newTestEnv 组装与线上一致的 controller，claims 由 X-Test-User / X-Test-Role 注入
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	db, err := database.InitDB(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, "test")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: testSecret, ExpireTime: time.Hour},
		CMS: config.CMSConfig{TaxonomyUID: "course_module"},
	}
	stub := &stubCMS{entries: map[string]cms.Entry{
		"course/c1": {"uid": "c1", "title": "Entries", "course_modules": []any{map[string]any{"uid": "m1"}, map[string]any{"uid": "m2"}}},
	}}
	mapper := cms.NewMapper(nil)

	userRepo := repository.NewUserRepository(db)
	planService := service.NewTrainingPlanService(repository.NewTrainingPlanRepository(db), userRepo)
	courseService := service.NewCourseService(stub, mapper, nil, cfg)
	progressService := service.NewProgressService(repository.NewProgressRepository(db), userRepo, courseService, planService)
	checkService := service.NewKnowledgeCheckService(stub, mapper, repository.NewKnowledgeCheckRepository(db), nil)
	userService := service.NewUserService(userRepo, repository.NewRoleRepository(db), service.LogMailer{}, "")

	authCtrl := NewAuthController(service.NewAuthService(userRepo, cfg), false, 0)
	userCtrl := NewUserController(userService)
	courseCtrl := NewCourseController(courseService, nil)
	progressCtrl := NewProgressController(progressService)
	planCtrl := NewTrainingPlanController(planService)
	checkCtrl := NewKnowledgeCheckController(checkService)

	r := gin.New()
	r.POST("/api/auth/login", authCtrl.Login)

	api := r.Group("/api", func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set(util.ContextUserKey, &util.Claims{UserID: id, Role: model.UserRole(c.GetHeader("X-Test-Role"))})
		}
		c.Next()
	})
	api.POST("/users", userCtrl.InviteUser)
	api.DELETE("/users/:userId", userCtrl.DeleteUser)
	api.GET("/courses", courseCtrl.ListCourses)
	api.GET("/courses/:courseId", courseCtrl.GetCourse)
	api.GET("/courses/:courseId/progress", progressCtrl.GetProgress)
	api.POST("/courses/:courseId/progress", progressCtrl.CompleteModule)
	api.GET("/courses/:courseId/test", checkCtrl.GetTest)
	api.POST("/courses/:courseId/test/submit", checkCtrl.SubmitTest)
	api.GET("/training-plans/progress", planCtrl.PlanProgress)
	api.POST("/training-plans", planCtrl.CreatePlan)

	return &testEnv{db: db, cms: stub, engine: r}
}

func (e *testEnv) createUser(t *testing.T, userID, email string, role model.UserRole) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, e.db.Create(&model.User{
		UserID:    userID,
		FirstName: "First",
		LastName:  "Last",
		Email:     email,
		Password:  string(hash),
		Role:      role,
		Status:    model.UserPending,
	}).Error)
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, userID string, role model.UserRole) (*httptest.ResponseRecorder, util.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
		req.Header.Set("X-Test-Role", string(role))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestAuthController_Login(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "trainee@example.com", model.Trainee)

	tests := []struct {
		name    string
		body    gin.H
		status  int
		message string
	}{
		{"invalid email", gin.H{"email": "nope", "password": "Password123"}, http.StatusBadRequest, ""},
		{"wrong password", gin.H{"email": "trainee@example.com", "password": "WrongPass1"}, http.StatusUnauthorized, "Invalid email or password"},
		{"unknown user", gin.H{"email": "ghost@example.com", "password": "Password123"}, http.StatusUnauthorized, "Invalid email or password"},
		{"success", gin.H{"email": "trainee@example.com", "password": "Password123"}, http.StatusOK, "Login successful"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, "/api/auth/login", tt.body, "", "")
			assert.Equal(t, tt.status, w.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, resp.Message)
			}
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Header().Get("Set-Cookie"), util.TokenCookieName+"=")
			}
		})
	}
}

func TestUserController_InviteValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin-1", "admin@example.com", model.SuperAdmin)

	tests := []struct {
		name    string
		body    gin.H
		message string
	}{
		{"missing fields", gin.H{"email": "a@example.com"}, "All fields are required"},
		{"bad email", gin.H{"firstName": "A", "lastName": "B", "email": "bad", "role": "trainee"}, "Invalid email format"},
		{"bad role", gin.H{"firstName": "A", "lastName": "B", "email": "a@example.com", "role": "owner"}, "Invalid role"},
		{"duplicate", gin.H{"firstName": "A", "lastName": "B", "email": "admin@example.com", "role": "trainee"}, "User with this email already exists"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, "/api/users", tt.body, "admin-1", model.SuperAdmin)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	w, resp := env.do(t, http.MethodPost, "/api/users", gin.H{"firstName": "A", "lastName": "B", "email": "new@example.com", "role": "trainee"}, "admin-1", model.SuperAdmin)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "User created and invitation email sent successfully", resp.Message)
}

func TestUserController_DeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin-1", "admin@example.com", model.Admin)

	w, resp := env.do(t, http.MethodDelete, "/api/users/admin-1", nil, "admin-1", model.Admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "You cannot delete your own account", resp.Message)

	w, _ = env.do(t, http.MethodDelete, "/api/users/missing", nil, "admin-1", model.Admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProgressController(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "u1", "trainee@example.com", model.Trainee)

	w, resp := env.do(t, http.MethodPost, "/api/courses/c1/progress", gin.H{}, "u1", model.Trainee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Module UID is required", resp.Message)

	w, resp = env.do(t, http.MethodPost, "/api/courses/c1/progress", gin.H{"moduleUid": "m1"}, "u1", model.Trainee)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Module marked as complete", resp.Message)

	var body struct {
		Progress model.CourseProgress `json:"progress"`
	}
	w, resp = env.do(t, http.MethodGet, "/api/courses/c1/progress", nil, "u1", model.Trainee)
	require.Equal(t, http.StatusOK, w.Code)
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	// 课程共两个模块，总数从 CMS 读取
	assert.Equal(t, 50, body.Progress.Progress)
	assert.Equal(t, []string{"m1"}, []string(body.Progress.CompletedModules))

	// 课程在 CMS 中扩展到四个模块后，读取时按新总数计算
	env.cms.entries["course/c1"] = cms.Entry{"uid": "c1", "title": "Entries", "course_modules": []any{
		map[string]any{"uid": "m1"}, map[string]any{"uid": "m2"}, map[string]any{"uid": "m3"}, map[string]any{"uid": "m4"},
	}}
	w, resp = env.do(t, http.MethodGet, "/api/courses/c1/progress", nil, "u1", model.Trainee)
	require.Equal(t, http.StatusOK, w.Code)
	raw, err = json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 25, body.Progress.Progress)
}

func TestTrainingPlanController_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "admin-1", "admin@example.com", model.Admin)
	env.createUser(t, "u1", "trainee@example.com", model.Trainee)

	module := gin.H{"moduleName": "Entries", "startDate": "2026-01-01", "endDate": "2026-01-10"}
	tests := []struct {
		name    string
		body    gin.H
		status  int
		message string
	}{
		{"missing fields", gin.H{"planName": "Onboarding"}, http.StatusBadRequest, "Plan name, trainee, and at least one module are required"},
		{"unknown trainee", gin.H{"planName": "P", "traineeId": "ghost", "modules": []gin.H{module}}, http.StatusNotFound, "Trainee not found"},
		{"not a trainee", gin.H{"planName": "P", "traineeId": "admin-1", "modules": []gin.H{module}}, http.StatusBadRequest, "Selected user is not a trainee"},
		{"bad dates", gin.H{"planName": "P", "traineeId": "u1", "modules": []gin.H{{"moduleName": "X", "startDate": "2026-01-10", "endDate": "2026-01-01"}}}, http.StatusBadRequest, "End date must be after start date for each module"},
		{"created", gin.H{"planName": "P", "traineeId": "u1", "modules": []gin.H{module}}, http.StatusCreated, "Training plan created successfully"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := env.do(t, http.MethodPost, "/api/training-plans", tt.body, "admin-1", model.Admin)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.message, resp.Message)
		})
	}

	w, resp := env.do(t, http.MethodGet, "/api/training-plans/progress", nil, "u1", model.Trainee)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trainee", resp.Data.(map[string]interface{})["userRole"])
}

func TestKnowledgeCheckController(t *testing.T) {
	env := newTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/courses/c1/test", nil, "u1", model.Trainee)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "No knowledge check available for this course", resp.Message)

	w, resp = env.do(t, http.MethodPost, "/api/courses/c1/test/submit", gin.H{}, "u1", model.Trainee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Answers array is required", resp.Message)

	w, resp = env.do(t, http.MethodPost, "/api/courses/c1/test/submit", gin.H{"answers": []gin.H{}}, "u1", model.Trainee)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No knowledge check found for this course", resp.Message)
}

func TestCourseController_Errors(t *testing.T) {
	env := newTestEnv(t)

	w, _ := env.do(t, http.MethodGet, "/api/courses/missing", nil, "u1", model.Trainee)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.cms.err = assert.AnError
	w, resp := env.do(t, http.MethodGet, "/api/courses", nil, "u1", model.Trainee)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Failed to fetch content from CMS", resp.Message)
}
