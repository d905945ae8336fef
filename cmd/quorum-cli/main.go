package main

import (
	"context"
	"fmt"
	"os"

	"github.com/slyt3/Quorum/internal/cli/cmd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]
	need := map[string]int{"verify": 0, "stats": 0, "fund": 2, "activate": 1, "role": 2, "journal": 1}
	n, ok := need[command]
	if !ok {
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if len(args) < n {
		fmt.Printf("Error: %s requires %d argument(s)\n", command, n)
		printUsage()
		os.Exit(1)
	}

	env, err := cmd.Open("")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	out := os.Stdout
	switch command {
	case "verify":
		err = cmd.Verify(ctx, env, out)
	case "stats":
		datasetID := ""
		if len(args) > 0 {
			datasetID = args[0]
		}
		err = cmd.Stats(ctx, env, out, datasetID)
	case "fund":
		err = cmd.Fund(ctx, env, out, args[0], args[1])
	case "activate":
		err = cmd.Activate(ctx, env, out, args[0])
	case "role":
		err = cmd.SetRole(ctx, env, out, args[0], args[1])
	case "journal":
		err = cmd.Journal(ctx, env, out, args[0])
	}

	if closeErr := env.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Quorum CLI - labeling ledger operator tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  quorum-cli verify                     Validate the settlement journal chain")
	fmt.Println("  quorum-cli stats [dataset-id]         Show global or per-dataset statistics")
	fmt.Println("  quorum-cli fund <user-id> <amount>    Credit a user's balance")
	fmt.Println("  quorum-cli activate <dataset-id>      Run the funding guard for the dataset owner")
	fmt.Println("  quorum-cli role <user-id> <role>      Set a user's role (WORKER or CLIENT)")
	fmt.Println("  quorum-cli journal <user-id>          List a user's journal entries")
	fmt.Println()
	fmt.Println("Configuration is read from $QUORUM_CONFIG or ./quorum.yaml.")
}
