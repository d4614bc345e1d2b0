package database

import (
	"errors"
	"fmt"
	"techacademy_backend/internal/config"
	"techacademy_backend/internal/model"
	applog "techacademy_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector 按 driver 构造 gorm 方言
func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "tech_academy.db"
		}
		return sqlite.Open(path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func InitDB(cfg *config.DatabaseConfig, mode string) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if mode == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		// 唯一键冲突统一转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" && (cfg.Path == "" || cfg.Path == ":memory:") {
		// 内存库每个连接相互独立
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	applog.Log.Info("Database connection established", zap.String("driver", cfg.Driver))
	return db, nil
}

// Models 需要自动迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Role{},
		&model.TrainingPlan{},
		&model.TrainingPlanModule{},
		&model.CourseProgress{},
		&model.KnowledgeCheckSubmission{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	applog.Log.Info("Database migration completed")
	return nil
}

// Seed 写入内置角色与超级管理员账号，已存在则跳过
func Seed(db *gorm.DB, cfg *config.SeedConfig) error {
	var count int64
	if err := db.Model(&model.Role{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		roles := model.DefaultRoles()
		if err := db.Create(&roles).Error; err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
		applog.Log.Info("Default roles created", zap.Int("count", len(roles)))
	}

	if cfg == nil || cfg.SuperAdminEmail == "" || cfg.SuperAdminPassword == "" {
		return nil
	}

	email := model.NormalizeEmail(cfg.SuperAdminEmail)
	var existing model.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.SuperAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now()
	admin := &model.User{
		UserID:    "superadmin-" + model.GenerateUUID(),
		FirstName: "Super",
		LastName:  "Admin",
		Email:     email,
		Password:  string(hash),
		Role:      model.SuperAdmin,
		Status:    model.UserAccepted,
		InvitedBy: "system",
		InvitedAt: &now,
	}
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("seed superadmin: %w", err)
	}
	applog.Log.Warn("Superadmin account created, change its password", zap.String("email", email))
	return nil
}
