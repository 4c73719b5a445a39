package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/chatpod/chatpod"
)

func main() {
	chatCmd := flag.NewFlagSet("chat", flag.ExitOnError)

	model := chatCmd.String("model", "", "Model identifier (overrides CHATPOD_MODEL)")
	language := chatCmd.String("language", "", "Reply language (overrides CHATPOD_LANGUAGE)")
	budget := chatCmd.Int("budget", 0, "History trim budget in messages (overrides CHATPOD_TRIM_BUDGET)")
	sqlitePath := chatCmd.String("sqlite", "", "SQLite file for durable history (overrides CHATPOD_SQLITE_PATH)")
	sessionID := chatCmd.String("session", "", "Session ID to continue; empty starts a fresh session")
	customerID := chatCmd.String("customer", "cli", "Customer ID attached to the conversation")

	if len(os.Args) < 2 {
		fmt.Println("Expected 'chat' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		chatCmd.Parse(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		fmt.Println("Expected 'chat' subcommand")
		os.Exit(1)
	}

	config, err := chatpod.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *model != "" {
		config.Model = *model
	}
	if *language != "" {
		config.Language = *language
	}
	if *budget > 0 {
		config.TrimBudget = *budget
	}
	if *sqlitePath != "" {
		config.SQLitePath = *sqlitePath
	}

	var durable chatpod.Store
	switch {
	case config.PostgresURI != "":
		store, err := chatpod.NewPostgresStore(config.PostgresURI)
		if err != nil {
			log.Fatalf("Failed to initialize postgres storage: %v", err)
		}
		durable = store
	case config.SQLitePath != "":
		store, err := chatpod.NewSQLiteStore(config.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to initialize sqlite storage: %v", err)
		}
		defer store.Close()
		durable = store
	}

	llm := chatpod.NewLLM(config.APIKey, config.BaseURL, config.Model)
	pod := chatpod.NewPod(config, llm, durable)

	ctx := context.Background()
	currentSessionID := *sessionID

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		if line == "/quit" {
			break
		}

		sess := pod.NewSession(ctx, *customerID, currentSessionID, nil)
		currentSessionID = sess.SessionID

		if err := sess.In(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			fmt.Print("> ")
			continue
		}
		for {
			response := sess.Out()
			switch response.Type {
			case chatpod.ResponseTypePartialText:
				fmt.Print(response.Content)
			case chatpod.ResponseTypeText:
				fmt.Println(response.Content)
			case chatpod.ResponseTypeError:
				fmt.Fprintf(os.Stderr, "error: %s\n", response.Content)
			}
			if response.Type == chatpod.ResponseTypeEnd {
				break
			}
		}
		if config.Stream {
			fmt.Println()
		}

		if details, ok := sess.Cost(); ok {
			fmt.Printf("[tokens in=%d out=%d cost=$%.6f]\n", details.InputTokens, details.OutputTokens, details.TotalCost)
		}
		fmt.Print("> ")
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed reading input: %v", err)
	}
}
