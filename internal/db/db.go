package db

import (
	"log"

	"github.com/kokoro-apps/empathy-diary/internal/chat"
	"github.com/kokoro-apps/empathy-diary/internal/diary"
	"github.com/kokoro-apps/empathy-diary/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

func Migrate(gdb *gorm.DB) {
	if err := gdb.AutoMigrate(
		&models.User{},
		&diary.Entry{},
		&diary.AIResponse{},
		&diary.EmpathyJob{},
		&chat.Session{},
		&chat.Message{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
}
