package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"hotpot-chat/internal/auth"
	"hotpot-chat/internal/config"
	"hotpot-chat/internal/database"
	"hotpot-chat/internal/models"
	"hotpot-chat/pkg/logger"
)

const defaultPassword = "hotpot123"

type options struct {
	Customers int
	Managers  int
	Sessions  int
	Messages  int
	Seed      int64
}

type summary struct {
	Users    int
	Sessions int
	Messages int
}

func main() {
	var opts options
	flag.IntVar(&opts.Customers, "customers", 10, "number of customers to create")
	flag.IntVar(&opts.Managers, "managers", 3, "number of managers to create")
	flag.IntVar(&opts.Sessions, "sessions", 8, "number of chat sessions to open")
	flag.IntVar(&opts.Messages, "messages", 4, "messages per assigned session")
	flag.Int64Var(&opts.Seed, "seed", 0, "random seed, 0 picks one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	sum, err := seed(ctx, db, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("Seeding failed")
	}
	logger.Info().
		Int("users", sum.Users).
		Int("sessions", sum.Sessions).
		Int("messages", sum.Messages).
		Str("password", defaultPassword).
		Msg("🌱 Seed data created")
}

func seed(ctx context.Context, db database.Database, opts options) (summary, error) {
	var sum summary
	gofakeit.Seed(opts.Seed)

	hash, err := auth.HashPassword(defaultPassword)
	if err != nil {
		return sum, err
	}

	newUser := func(role models.Role) (*models.User, error) {
		name := strings.ToLower(gofakeit.Username())
		u, err := db.CreateUser(ctx, &models.User{
			Username:     name,
			Email:        fmt.Sprintf("%s.%d@hotpot.test", name, sum.Users),
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", role, err)
		}
		sum.Users++
		return u, nil
	}

	if _, err := newUser(models.RoleAdmin); err != nil {
		return sum, err
	}

	customers := make([]*models.User, 0, opts.Customers)
	for i := 0; i < opts.Customers; i++ {
		u, err := newUser(models.RoleCustomer)
		if err != nil {
			return sum, err
		}
		customers = append(customers, u)
	}

	managers := make([]*models.User, 0, opts.Managers)
	for i := 0; i < opts.Managers; i++ {
		u, err := newUser(models.RoleManager)
		if err != nil {
			return sum, err
		}
		managers = append(managers, u)
	}

	if len(customers) == 0 {
		return sum, nil
	}

	for i := 0; i < opts.Sessions; i++ {
		customer := customers[i%len(customers)]
		session, err := db.CreateSession(ctx, customer.ID, gofakeit.Sentence(4))
		if err != nil {
			return sum, fmt.Errorf("create session: %w", err)
		}
		sum.Sessions++

		// every third session stays in the pending queue
		if len(managers) == 0 || i%3 == 2 {
			continue
		}

		manager := managers[i%len(managers)]
		if _, err := db.UpdateSessionAssignment(ctx, session.ID, manager.ID); err != nil {
			return sum, fmt.Errorf("assign session: %w", err)
		}

		for m := 0; m < opts.Messages; m++ {
			sender, receiver := customer.ID, manager.ID
			if m%2 == 1 {
				sender, receiver = receiver, sender
			}
			if _, err := db.InsertMessage(ctx, &models.ChatMessage{
				SessionID:  session.ID,
				SenderID:   sender,
				ReceiverID: &receiver,
				Body:       gofakeit.Sentence(8),
			}); err != nil {
				return sum, fmt.Errorf("insert message: %w", err)
			}
			sum.Messages++
		}
	}
	return sum, nil
}
