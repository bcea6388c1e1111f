package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	config "tasktalk/app/configs"
	"tasktalk/app/core/interaction/cli"
	"tasktalk/app/core/interaction/gateway"
	"tasktalk/app/core/interaction/http"
	"tasktalk/app/core/orchestrator/agent"
	"tasktalk/app/core/orchestrator/convo"
	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/core/orchestrator/engine"
	"tasktalk/app/core/orchestrator/llm"
	"tasktalk/app/core/orchestrator/task"
	"tasktalk/app/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgManager.Get()

	if err := logger.Init(cfg.Agent.LogDir); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("TaskTalk starting...")

	database, err := db.NewSQLiteDB(cfg.Agent.DataDir)
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	taskStore := task.NewStore(database)
	convoStore := convo.NewStore(database)

	eng := engine.New(taskStore, engine.Config{
		FuzzyThreshold:    cfg.Engine.FuzzyThreshold,
		ResolveConfidence: cfg.Engine.ResolveConfidence,
	})

	var model agent.LLM
	if !cfg.LLM.Enabled {
		logger.Info("LLM fallback disabled in config")
	} else if apiKey := os.Getenv(cfg.LLM.APIKeyEnv); apiKey != "" {
		model = llm.New(llm.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		logger.Info("LLM fallback enabled (model: %s)", cfg.LLM.Model)
	} else {
		logger.Error("LLM enabled in config but %s is not set; running engine-only", cfg.LLM.APIKeyEnv)
	}

	brain := agent.New(agent.Config{
		Name:          cfg.Agent.Name,
		MaxMessageLen: cfg.Engine.MaxMessageLen,
	}, eng, convoStore, model)

	gw := gateway.NewGateway(brain)
	gw.RegisterChannel(cli.NewCLIChannel(cfg.Agent.CLIUserID))

	if cfg.HTTP.Enabled {
		httpChannel := http.NewServer(cfg.HTTP.Addr, convoStore, func() interface{} {
			return gw.HealthStatus()
		})
		gw.RegisterChannel(httpChannel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := gw.Start(ctx); err != nil {
			logger.Error("Gateway crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("TaskTalk is ready to serve.")
	fmt.Println("- CLI Interface: Interactive")
	if cfg.HTTP.Enabled {
		fmt.Printf("- HTTP Interface: http://localhost%s/api/chat (POST)\n", cfg.HTTP.Addr)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. TaskTalk shutting down...", sig)
	cancel()
}
