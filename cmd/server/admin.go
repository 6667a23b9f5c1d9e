package main

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"gymmaster/internal/config"
	"gymmaster/internal/model"
	"gymmaster/internal/repository"
	"gymmaster/internal/repository/postgres"
)

var (
	adminEmail     string
	adminPassword  string
	adminFirstName string
	adminLastName  string

	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
	digitPattern = regexp.MustCompile(`[0-9]`)
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the first ADMIN account (idempotent on email)",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(adminEmail))
		if !emailPattern.MatchString(email) {
			return errors.New("a valid --email is required")
		}
		if !isStrongPassword(adminPassword) {
			return errors.New("password must be >=12 chars and include upper/lowercase letters and digits")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config failed: %w", err)
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("parse database config failed: %w", err)
		}
		poolCfg.MaxConns = 2

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("connect database failed: %w", err)
		}
		defer pool.Close()

		users := postgres.NewUserRepository(pool)
		if _, err := users.FindByEmail(ctx, email); err == nil {
			fmt.Printf("user '%s' already exists, skip\n", email)
			return nil
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("query admin user failed: %w", err)
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(adminPassword), 12)
		if err != nil {
			return fmt.Errorf("hash password failed: %w", err)
		}

		now := time.Now().UTC()
		err = users.Create(ctx, &model.User{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: string(hashed),
			FirstName:    strings.TrimSpace(adminFirstName),
			LastName:     strings.TrimSpace(adminLastName),
			Role:         model.UserRoleAdmin,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if errors.Is(err, repository.ErrConflict) {
			fmt.Printf("user '%s' already exists, skip\n", email)
			return nil
		}
		if err != nil {
			return fmt.Errorf("create admin failed: %w", err)
		}

		fmt.Printf("admin '%s' created successfully\n", email)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	createAdminCmd.Flags().StringVar(&adminFirstName, "first-name", "Gym", "admin first name")
	createAdminCmd.Flags().StringVar(&adminLastName, "last-name", "Admin", "admin last name")
	rootCmd.AddCommand(createAdminCmd)
}

func isStrongPassword(password string) bool {
	if len(password) < 12 {
		return false
	}
	return lowerPattern.MatchString(password) &&
		upperPattern.MatchString(password) &&
		digitPattern.MatchString(password)
}
