package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tellerflow/tellerflow"
	"github.com/tellerflow/tellerflow/internal/config"
	"github.com/tellerflow/tellerflow/internal/logging"
	"github.com/tellerflow/tellerflow/pkg/observability"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation loop against a local orchestrator",
	Long: `Starts a REPL that feeds each line through the turn pipeline.

There is no classifier in the loop, so intent and entities are passed inline
after a double colon:

  send money :: intent=transfer_money confidence=0.95
  300 dollars :: amount=300
  from checking :: from_account=checking
  yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		sessionID, _ := cmd.Flags().GetString("session")
		userID, _ := cmd.Flags().GetString("user")

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger := logging.New(parseLevel(cfg.Logging.Level))
		metrics := observability.NewMetrics(prometheus.NewRegistry())

		orch, cleanup, err := buildOrchestrator(cfg, logger, metrics)
		if err != nil {
			return err
		}
		defer cleanup()

		fmt.Printf("session %s as %s, ctrl-d to quit\n", sessionID, userID)

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			input := parseChatLine(line)
			input.SessionID = sessionID
			input.UserID = userID

			result, err := orch.ProcessTurn(context.Background(), input)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}

			fmt.Println(result.Response.Message)
			if len(result.Response.Suggestions) > 0 {
				fmt.Printf("  (%s)\n", strings.Join(result.Response.Suggestions, " / "))
			}
			if result.Record != nil {
				fmt.Printf("  [%s ref=%s]\n", result.Record.Status, result.Record.RefID)
			}
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().String("session", "local-session", "Session ID for the conversation")
	chatCmd.Flags().String("user", "local-user", "User ID for the conversation")
	rootCmd.AddCommand(chatCmd)
}

// parseChatLine splits "message :: key=value ..." into a turn input. Values
// that parse as numbers become float64 entities; intent, confidence and ref
// are lifted out of the entity map.
func parseChatLine(line string) tellerflow.TurnInput {
	input := tellerflow.TurnInput{Message: line}

	message, meta, found := strings.Cut(line, "::")
	if !found {
		return input
	}
	input.Message = strings.TrimSpace(message)

	for _, field := range strings.Fields(meta) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "intent":
			input.Intent = value
		case "confidence":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				input.Confidence = f
			}
		case "ref":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				input.ReferenceAmount = &f
			}
		default:
			if input.Entities == nil {
				input.Entities = make(map[string]any)
			}
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				input.Entities[key] = f
			} else {
				input.Entities[key] = value
			}
		}
	}
	return input
}
