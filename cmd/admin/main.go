package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"mentorbridge/backend/internal/config"
	"mentorbridge/backend/internal/logger"
	"mentorbridge/backend/internal/rating"
	"mentorbridge/backend/internal/storage"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  verify <email>             mark an account's email as verified
  rate <user_id> <rating>    override a mentor's system rating
  purge-otps                 delete expired verification codes`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Configure(logger.Config{Level: cfg.Logging.Level, Pretty: true})

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect database")
	}
	// No Redis needed for admin commands.
	storageSvc := storage.NewStorageService(db, nil)
	ctx := context.Background()

	switch os.Args[1] {
	case "verify":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin verify <email>")
			os.Exit(1)
		}
		if err := storageSvc.MarkUserVerified(ctx, os.Args[2]); err != nil {
			logger.Fatal().Err(err).Msg("Error verifying user")
		}
		fmt.Printf("User %s has been verified.\n", os.Args[2])
	case "rate":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin rate <user_id> <rating>")
			os.Exit(1)
		}
		userID, err := strconv.ParseUint(os.Args[2], 10, 0)
		if err != nil {
			fmt.Println("Invalid user ID. Please provide an integer.")
			os.Exit(1)
		}
		score, err := strconv.ParseFloat(os.Args[3], 64)
		if err != nil {
			fmt.Println("Invalid rating. Please provide a number.")
			os.Exit(1)
		}
		if err := rating.NewService(storageSvc).SetRating(ctx, uint(userID), score); err != nil {
			logger.Fatal().Err(err).Msg("Error setting rating")
		}
		fmt.Printf("User %d now has system rating %.1f.\n", userID, score)
	case "purge-otps":
		n, err := storageSvc.PurgeExpiredOTPs(ctx, time.Now())
		if err != nil {
			logger.Fatal().Err(err).Msg("Error purging OTPs")
		}
		fmt.Printf("Deleted %d expired codes.\n", n)
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}
