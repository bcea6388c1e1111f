package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/core/orchestrator/engine"
	"tasktalk/app/core/orchestrator/task"
	"tasktalk/app/pkg/types"
)

// intent-replay feeds a transcript file through the resolution engine
// line by line and prints, for every turn, how it was classified and
// what the engine decided. Useful for inspecting a conversation that
// went wrong without touching the real database.
func main() {
	inputPath := flag.String("input", "-", "transcript file, one user message per line (- for stdin)")
	dataDir := flag.String("data", "", "data directory for the replay database (default: temp dir, discarded)")
	userID := flag.String("user", "replay_user", "user id to replay as")
	flag.Parse()

	dir := *dataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "intent-replay-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "intent replay failed: temp dir: %v\n", err)
			os.Exit(2)
		}
		defer os.RemoveAll(tmp)
		dir = tmp
	}

	database, err := db.NewSQLiteDB(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "intent replay failed: open db: %v\n", err)
		os.Exit(2)
	}
	defer database.Close()

	input := os.Stdin
	if *inputPath != "-" {
		f, err := os.Open(*inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "intent replay failed: open input: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		input = f
	}

	eng := engine.New(task.NewStore(database), engine.Config{})
	ctx := context.Background()

	var history []types.Message
	scanner := bufio.NewScanner(input)
	turn := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		turn++

		op := engine.Classify(text)
		ext := engine.Extract(text)
		fmt.Printf("--- turn %d ---\n", turn)
		fmt.Printf("user:       %s\n", text)
		fmt.Printf("classified: %s\n", opLabel(op))
		if ext.TaskID != 0 {
			fmt.Printf("task id:    %d\n", ext.TaskID)
		}
		if ext.TaskTitle != "" {
			fmt.Printf("task title: %q\n", ext.TaskTitle)
		}
		for key, value := range ext.Params {
			fmt.Printf("param:      %s=%v\n", key, value)
		}

		outcome, err := eng.HandleTurn(ctx, *userID, text, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "intent replay failed on turn %d: %v\n", turn, err)
			os.Exit(1)
		}
		if !outcome.Handled {
			fmt.Println("decision:   not handled (would fall through to the model)")
			continue
		}
		fmt.Printf("reply:      %s\n", strings.ReplaceAll(outcome.Reply, "\n", "\n            "))
		for _, call := range outcome.ToolCalls {
			fmt.Printf("tool call:  %s %v\n", call.Tool, call.Params)
		}

		history = append(history,
			types.Message{Role: "user", UserID: *userID, Content: text},
			types.Message{Role: "assistant", Content: outcome.Reply, ToolCalls: outcome.ToolCalls},
		)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "intent replay failed: read input: %v\n", err)
		os.Exit(2)
	}
}

func opLabel(op engine.Operation) string {
	if op == engine.OpNone {
		return "(none)"
	}
	return string(op)
}
