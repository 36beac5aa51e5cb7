package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/config"
	"go-marketplace-pos/pkg/database"
	"go-marketplace-pos/pkg/logger"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 1. Load Env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	email := flag.String("email", cfg.App.AdminEmail, "account to reset")
	newPassword := flag.String("password", cfg.App.AdminPass, "new password")
	flag.Parse()

	log := logger.New(logger.Options{ServiceName: "reset-password", Console: true})
	ctx := context.Background()
	if envErr != nil {
		log.Warn(ctx, ".env file not found, relying on system env")
	}

	// 2. Setup Database
	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	users := repository.NewUserRepo(db)

	// 3. Find user
	ctx = log.WithField(ctx, "email", *email)
	user, err := users.FindByEmail(ctx, *email)
	if err != nil {
		log.Error(ctx, "user not found", err)
		os.Exit(1)
	}

	// 4. Hash new password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error(ctx, "hash password", err)
		os.Exit(1)
	}

	// 5. Update
	if err := users.UpdatePassword(ctx, user.ID, string(hashedPassword)); err != nil {
		log.Error(ctx, "update password", err)
		os.Exit(1)
	}

	log.Info(ctx, "password reset")
}
