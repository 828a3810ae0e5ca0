package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/931405/mem1/pkg/config"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/mem1"
	"github.com/931405/mem1/pkg/pipeline"
	"github.com/931405/mem1/pkg/session"
)

// Constants for the command-line interface
const (
	cmdHelp     = "!help"
	cmdQuit     = "!quit"
	cmdSession  = "!session"
	cmdTurn     = "!turn"
	cmdRemember = "!remember"
	cmdSearch   = "!search"
	cmdMemories = "!memories"
	cmdRecent   = "!recent"
	cmdSummary  = "!summary"
	cmdStats    = "!stats"
	cmdConfig   = "!config"
)

// Command-line help text
const helpText = `
Mem1 Client - Command Reference:
-----------------------------------------
!help                 - Show this help message
!session <id>         - Set the current session ID
!turn <user> :: <ai>  - Record a full turn and extract facts from it
!remember <text>      - Resolve a fact directly against memory
!search <query>       - Retrieve memories by semantic similarity
!memories             - List the session's memory records
!recent               - Show the session's recent turns
!summary [text]       - Show or replace the session's global summary
!stats                - Show accumulated resolution counters
!config               - Show current configuration
!quit                 - Exit the application

Notes:
- Regular text input is treated as a user turn without an assistant reply
- Tab completion is available for commands
- Use up/down arrows for command history`

// historyFile is the file where command history is stored
const historyFile = ".mem1_history"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	flag.Parse()

	// Pick up OPENAI_API_KEY and friends from a local .env when present
	_ = godotenv.Load()

	log.Setup(log.Config{
		Level:  log.InfoLevel,
		Format: log.TextFormat,
	})

	log.Info("Starting mem1 client")

	client, err := mem1.NewFromConfig(*configPath)
	if err != nil {
		log.Error("Failed to initialize mem1 client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// Load config again for CLI display purposes only
	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		log.Error("Failed to load configuration for CLI", "error", err)
		os.Exit(1)
	}

	runCLI(client, cfg, *stdinMode)
}

// runCLI starts the command-line interface for user interaction
func runCLI(client *mem1.Client, cfg *config.Config, stdinMode bool) {
	currentSession := session.ID("default-session")

	if stdinMode {
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("\n=== Mem1 Client (stdin mode) ===")
		fmt.Println("LTM Backend:", cfg.LTM.Backend)
		fmt.Printf("Current Session: %s\n", currentSession)

		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			// Skip comments for stdin-based testing
			if strings.HasPrefix(input, "#") || strings.HasPrefix(input, "//") {
				continue
			}

			if input == cmdQuit {
				fmt.Println("Goodbye!")
				return
			}

			fmt.Printf("mem1::%s> %s\n", currentSession, input)
			processCommand(input, client, cfg, &currentSession)
		}

		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
		}
		fmt.Println("Goodbye!")
		return
	}

	// Interactive mode
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)

	line.SetCompleter(func(line string) (c []string) {
		commands := []string{cmdHelp, cmdQuit, cmdSession, cmdTurn, cmdRemember, cmdSearch, cmdMemories, cmdRecent, cmdSummary, cmdStats, cmdConfig}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("\n=== Mem1 Client ===")
	fmt.Println("LTM Backend:", cfg.LTM.Backend)
	fmt.Println("LLM Provider:", cfg.LLM.Provider)
	fmt.Printf("Current Session: %s\n", currentSession)
	fmt.Println("Type !help for available commands.")

	for {
		input, err := line.Prompt(fmt.Sprintf("mem1::%s> ", currentSession))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if input == cmdQuit {
			fmt.Println("Goodbye!")
			break
		}

		processCommand(input, client, cfg, &currentSession)
	}
}

// processCommand handles a single command
func processCommand(input string, client *mem1.Client, cfg *config.Config, currentSession *session.ID) {
	ctx := context.Background()

	if !strings.HasPrefix(input, "!") {
		// Treat plain text as a user turn without an assistant reply
		recordTurn(ctx, client, *currentSession, input, "")
		return
	}

	parts := strings.SplitN(input, " ", 2)
	cmd := parts[0]
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}

	switch cmd {
	case cmdHelp:
		fmt.Println(helpText)

	case cmdSession:
		if arg == "" {
			fmt.Printf("Current session: %s\n", *currentSession)
			return
		}
		*currentSession = session.ID(arg)
		fmt.Printf("Session set to: %s\n", *currentSession)

	case cmdTurn:
		userMsg, aiMsg, ok := strings.Cut(arg, "::")
		if !ok || strings.TrimSpace(userMsg) == "" {
			fmt.Println("Usage: !turn <user message> :: <ai response>")
			return
		}
		recordTurn(ctx, client, *currentSession, strings.TrimSpace(userMsg), strings.TrimSpace(aiMsg))

	case cmdRemember:
		if arg == "" {
			fmt.Println("Fact text required")
			return
		}
		result := client.ResolveFacts(ctx, *currentSession, []ltm.Fact{
			{Text: arg, Category: "other", Confidence: 0.95},
		})
		printBatchResult(result)

	case cmdSearch:
		if arg == "" {
			fmt.Println("Search query required")
			return
		}
		results, err := client.Search(ctx, *currentSession, arg, cfg.Pipeline.TopK)
		if err != nil {
			fmt.Printf("Error in search: %v\n", err)
			return
		}
		if len(results) == 0 {
			fmt.Println("No memories found matching your search.")
			return
		}
		fmt.Printf("Found %d memories related to your search:\n\n", len(results))
		for i, result := range results {
			fmt.Printf("Memory %d: %s\n", i+1, result.Fact.Text)
			fmt.Printf("  Category: %s\n", result.Fact.Category)
			fmt.Printf("  Similarity: %.2f%%\n\n", result.Score*100)
		}

	case cmdMemories:
		memories, err := client.Memories(ctx, *currentSession)
		if err != nil {
			fmt.Printf("Error listing memories: %v\n", err)
			return
		}
		if len(memories) == 0 {
			fmt.Println("No memories stored for this session.")
			return
		}
		fmt.Printf("%d memories for session %s:\n\n", len(memories), *currentSession)
		for i, record := range memories {
			fmt.Printf("Memory %d: %s\n", i+1, record.Fact.Text)
			fmt.Printf("  ID: %s\n", record.ID)
			fmt.Printf("  Category: %s (confidence %.2f)\n\n", record.Fact.Category, record.Fact.Confidence)
		}

	case cmdRecent:
		turns := client.Recent(ctx, *currentSession, cfg.ShortTerm.MaxSize)
		if len(turns) == 0 {
			fmt.Println("No recent turns for this session.")
			return
		}
		for i, turn := range turns {
			fmt.Printf("Turn %d:\n  User: %s\n  AI: %s\n", i+1, turn.UserMessage, turn.AIResponse)
		}

	case cmdSummary:
		if arg == "" {
			current, err := client.CurrentSummary(ctx, *currentSession)
			if err != nil {
				fmt.Printf("Error loading summary: %v\n", err)
				return
			}
			if current == "" {
				fmt.Println("No summary for this session.")
				return
			}
			fmt.Println(current)
			return
		}
		if err := client.UpdateSummary(ctx, *currentSession, arg); err != nil {
			fmt.Printf("Error updating summary: %v\n", err)
			return
		}
		fmt.Println("Summary updated.")

	case cmdStats:
		stats := client.Stats()
		fmt.Println("\nResolution counters:")
		fmt.Println("====================")
		fmt.Printf("Turns recorded: %d\n", stats.TurnsRecorded)
		fmt.Printf("Added:   %d\n", stats.Added)
		fmt.Printf("Updated: %d\n", stats.Updated)
		fmt.Printf("Deleted: %d\n", stats.Deleted)
		fmt.Printf("Skipped: %d\n", stats.Skipped)
		fmt.Printf("Failed:  %d\n", stats.Failed)
		if count, err := client.MemoryCount(ctx); err == nil {
			fmt.Printf("Memories stored: %d\n", count)
		}

	case cmdConfig:
		fmt.Println("\nCurrent Configuration:")
		fmt.Println("======================")
		fmt.Printf("LTM Backend: %s\n", cfg.LTM.Backend)
		switch cfg.LTM.Backend {
		case "jsonfile":
			fmt.Printf("LTM Path: %s\n", cfg.LTM.JSONFile.Path)
		case "boltdb":
			fmt.Printf("LTM Path: %s\n", cfg.LTM.BoltDB.Path)
		}
		fmt.Printf("Conversation Backend: %s (%s)\n", cfg.Conversation.Backend, cfg.Conversation.Path)
		fmt.Printf("Summary Path: %s\n", cfg.Summary.Path)
		fmt.Printf("Short-term Max Size: %d\n", cfg.ShortTerm.MaxSize)
		fmt.Printf("\nPipeline TopK: %d\n", cfg.Pipeline.TopK)
		fmt.Printf("Pipeline Workers: %d\n", cfg.Pipeline.Workers)
		fmt.Printf("Pipeline Saturation: %s\n", cfg.Pipeline.Saturation)
		fmt.Printf("\nLLM Provider: %s\n", cfg.LLM.Provider)
		if cfg.LLM.Provider == "openai" {
			fmt.Printf("OpenAI Model: %s\n", cfg.LLM.OpenAI.Model)
			fmt.Printf("OpenAI Embedding Model: %s\n", cfg.LLM.OpenAI.EmbeddingModel)
		}
		fmt.Printf("\nLog Level: %s\n", cfg.Logging.Level)
		fmt.Printf("Session: %s\n", *currentSession)

	default:
		fmt.Printf("Unknown command: %s\nType !help for available commands.\n", cmd)
	}
}

func recordTurn(ctx context.Context, client *mem1.Client, sessionID session.ID, userMsg, aiMsg string) {
	result, err := client.ExtractAndResolve(ctx, sessionID, userMsg, aiMsg)
	if err != nil {
		fmt.Printf("Error processing turn: %v\n", err)
		return
	}
	if len(result.Outcomes) == 0 {
		fmt.Println("Turn recorded. No facts extracted.")
		return
	}
	printBatchResult(result)
}

func printBatchResult(result pipeline.BatchResult) {
	fmt.Printf("Resolved %d candidates: %d added, %d updated, %d deleted, %d skipped, %d failed\n",
		len(result.Outcomes), result.Added, result.Updated, result.Deleted, result.Skipped, result.Failed)
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			fmt.Printf("  %s: %v\n", outcome.Fact.Text, outcome.Err)
		}
	}
}
