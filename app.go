package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"portfolio-bot/internal/agent"
	"portfolio-bot/internal/channel"
	"portfolio-bot/internal/config"
	"portfolio-bot/internal/database"
	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/export"
	"portfolio-bot/internal/format"
	"portfolio-bot/internal/llm"
	"portfolio-bot/internal/memory"
	"portfolio-bot/internal/security"
	"portfolio-bot/internal/sqlcheck"
	"portfolio-bot/internal/tool"
)

const keyringPlaceholder = "[keyring]"

// App holds the wired application: configuration, collaborators, the memory
// store, and the orchestrator. It is constructed once at startup and passed
// nowhere implicitly.
type App struct {
	cfg       *config.Config
	cfgLoader *config.Loader
	bus       *eventbus.Bus
	keyStore  *security.KeyStore
	db        *database.DB
	store     *memory.Store
	csvWriter *export.Writer
	orch      *agent.Orchestrator
	chanMgr   *channel.Manager
	cancel    context.CancelFunc
}

// NewApp creates an unstarted App.
func NewApp() *App {
	return &App{
		bus:     eventbus.New(),
		chanMgr: channel.NewManager(),
	}
}

// Startup loads configuration, opens collaborators, wires the agents, and
// starts the chat channels.
func (a *App) Startup(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	loader, err := config.NewLoader()
	if err != nil {
		return fmt.Errorf("create config loader: %w", err)
	}
	a.cfgLoader = loader

	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	ks, err := security.NewKeyStore(nil)
	if err != nil {
		log.Printf("[app] warning: key store unavailable: %v (secrets stay in config/env)", err)
	}
	a.keyStore = ks
	a.resolveSecrets()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db
	if cfg.Database.Seed {
		if err := db.Seed(); err != nil {
			return fmt.Errorf("seed database: %w", err)
		}
	}

	provider, err := llm.NewProvider(cfg.LLM, cfg.FallbackLLM)
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}
	log.Printf("[app] LLM provider: %s (model %s, key %s)",
		provider.Name(), provider.DefaultModel(), security.MaskKey(cfg.LLM.APIKey))

	a.store = memory.NewStore(memory.Options{
		MaxMessages:  cfg.Memory.MaxMessagesPerThread,
		MaxTokens:    cfg.Memory.MaxConversationTokens,
		TriggerRatio: cfg.Memory.CompressionTriggerRatio,
		KeepRecent:   cfg.Memory.KeepRecentMessages,
		MaxQueries:   cfg.Memory.MaxQueriesPerThread,
	})
	a.csvWriter = export.NewWriter(cfg.Export.Dir)

	formatter := format.New()
	validator := sqlcheck.NewValidator(cfg.Database.TableName)

	registry := tool.NewRegistry()
	registry.Register(tool.NewGenerateSQLTool(provider))
	registry.Register(tool.NewExecuteSQLTool(db, validator, a.bus))
	registry.Register(tool.NewFormatResultTool(formatter))
	registry.Register(tool.NewGenerateCSVTool(a.csvWriter))
	registry.Register(tool.NewGetSQLHistoryTool(a.store))
	registry.Register(tool.NewGetCachedResultsTool(a.store))

	a.orch = agent.NewOrchestrator(
		agent.NewRouter(),
		agent.NewSQLQueryAgent(provider, registry, a.store, formatter, a.bus, cfg.Agents.StepLimit),
		agent.NewCSVExportAgent(registry, a.bus),
		agent.NewSQLRetrievalAgent(registry),
		agent.NewOffTopicAgent(provider),
		a.store,
		a.bus,
		time.Duration(cfg.Agents.MessageTimeoutSecs)*time.Second,
	)

	a.bus.Subscribe(eventbus.TopicError, func(e eventbus.Event) {
		log.Printf("[app] error event: %v", e.Payload)
	})

	if cfg.Channels.Console {
		a.chanMgr.Register(channel.NewConsoleChannel())
	}
	if tg := cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		a.chanMgr.Register(channel.NewTelegramChannel(channel.TelegramConfig{
			Token:      tg.Token,
			AllowedIDs: tg.AllowedIDs,
		}))
	}
	if len(a.chanMgr.List()) == 0 {
		return fmt.Errorf("no channels configured")
	}

	for _, ch := range a.chanMgr.List() {
		ch.OnMessage(func(msg channel.InboundMessage) {
			a.bus.Publish(eventbus.TopicInboundMessage, msg)
			go a.handleMessage(ctx, msg)
		})
	}

	if err := a.chanMgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	log.Println("[app] started and listening for messages")
	return nil
}

// handleMessage streams one message's response back through its channel and
// uploads any generated CSV file into the thread.
func (a *App) handleMessage(ctx context.Context, msg channel.InboundMessage) {
	ch, ok := a.chanMgr.Get(msg.ChannelName)
	if !ok {
		log.Printf("[app] channel %s not found", msg.ChannelName)
		return
	}

	chunks := a.orch.Stream(ctx, msg.ThreadID, msg.Text)

	text := make(chan string)
	var filePath string
	go func() {
		defer close(text)
		for chunk := range chunks {
			if chunk.FilePath != "" {
				filePath = chunk.FilePath
			}
			if chunk.Text == "" {
				continue
			}
			select {
			case text <- chunk.Text:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := ch.SendStream(ctx, msg.ThreadID, text); err != nil {
		log.Printf("[app] stream delivery failed: %v", err)
		return
	}

	if filePath != "" {
		if err := ch.UploadFile(ctx, msg.ThreadID, filePath); err != nil {
			log.Printf("[app] file upload failed: %v", err)
		}
		a.csvWriter.Cleanup(filePath)
	}
}

// resolveSecrets fills missing credentials from the OS key store, and
// migrates plaintext config secrets into it.
func (a *App) resolveSecrets() {
	if a.keyStore == nil {
		return
	}

	resolve := func(current *string, name string) {
		switch *current {
		case "", keyringPlaceholder:
			if v, err := a.keyStore.Get(name); err == nil && v != "" {
				*current = v
			}
		default:
			if err := a.keyStore.Set(name, *current); err == nil {
				log.Printf("[app] stored %s in key store", name)
			}
		}
	}

	resolve(&a.cfg.LLM.APIKey, security.SecretLLMAPIKey)
	if a.cfg.Channels.Telegram != nil {
		resolve(&a.cfg.Channels.Telegram.Token, security.SecretTelegramToken)
	}
}

// Shutdown stops channels and closes the database.
func (a *App) Shutdown(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.chanMgr.StopAll(ctx)
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Printf("[app] database close: %v", err)
		}
	}
	log.Println("[app] shut down")
}
