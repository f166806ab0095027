// dbcheck is the operator's connectivity and data sanity tool: it pings the
// database, prints the user count, and with -clear wipes the users
// collection (dev environments only).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/savitara/auth-service/internal/config"
	"github.com/savitara/auth-service/internal/log"
	"github.com/savitara/auth-service/internal/repo"
)

func main() {
	wipe := flag.Bool("clear", false, "delete all user documents (asks for confirmation)")
	yes := flag.Bool("yes", false, "skip the confirmation prompt")
	flag.Parse()

	cfg := config.Load()
	logger, err := log.Init(false)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := repo.Connect(ctx, repo.Options{
		URI:     cfg.MongoURI,
		DB:      cfg.MongoDB,
		MinPool: cfg.MongoMinPool,
		MaxPool: cfg.MongoMaxPool,
	})
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.Ping(ctx); err != nil {
		logger.Fatal("ping", zap.Error(err))
	}
	fmt.Println("connection: ok")

	n, err := store.CountUsers(ctx)
	if err != nil {
		logger.Fatal("count users", zap.Error(err))
	}
	fmt.Printf("users: %d\n", n)

	if !*wipe {
		return
	}
	if !*yes && !confirm(fmt.Sprintf("delete all %d users from %s?", n, cfg.MongoDB)) {
		fmt.Println("aborted")
		return
	}
	deleted, err := store.DeleteAllUsers(ctx)
	if err != nil {
		logger.Fatal("delete users", zap.Error(err))
	}
	fmt.Printf("deleted: %d\n", deleted)
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
