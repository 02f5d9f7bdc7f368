package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsradar/classifier"
	"newsradar/config"
	"newsradar/naver"
	"newsradar/notify"
	"newsradar/pipeline"
	"newsradar/scheduler"
	"newsradar/scraper"
	"newsradar/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	slog.Info("starting news monitor")

	// Missing configuration is the only condition that exits nonzero;
	// every failure past this point degrades to a thinner run instead.
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", configPath, "query", cfg.Query)

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	var sender notify.MessageSender
	if tgBot, err := tgbotapi.NewBotAPI(cfg.TelegramToken); err != nil {
		slog.Error("failed to initialize telegram bot, notifications disabled", "error", err)
	} else {
		sender = tgBot
		slog.Info("telegram bot initialized", "username", tgBot.Self.UserName)
	}

	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second

	newsClient := naver.NewClient(
		cfg.NaverClientID,
		cfg.NaverClientSecret,
		naver.WithTimeout(fetchTimeout),
	)

	classifierOpts := []classifier.Option{
		classifier.WithModel(cfg.GeminiModel),
	}
	if cfg.LegacyParser {
		classifierOpts = append(classifierOpts, classifier.WithLegacyParser())
	}
	newsClassifier := classifier.NewClassifier(cfg.GeminiAPIKey, classifierOpts...)

	runnerOpts := []pipeline.Option{
		pipeline.WithQuery(cfg.Query),
		pipeline.WithFetchCount(cfg.FetchCount),
		pipeline.WithDenylist(cfg.Denylist),
		pipeline.WithRetentionDays(store.DefaultRetentionDays),
	}
	if cfg.EnrichContent {
		runnerOpts = append(runnerOpts,
			pipeline.WithScraper(scraper.NewScraper(scraper.WithTimeout(fetchTimeout))))
	}

	runner := pipeline.NewRunner(
		&fetcherAdapter{newsClient},
		&classifierAdapter{newsClassifier},
		&storeAdapter{db},
		&notifierAdapter{notify.NewNotifier(sender, cfg.TelegramChatID)},
		runnerOpts...,
	)

	if cfg.Schedule == "" {
		// Single run: the normal mode under an external scheduler.
		if err := runner.Run(context.Background()); err != nil {
			slog.Error("run failed", "error", err)
		}
		return
	}

	runDaemon(cfg, runner)
}

// runDaemon keeps the process alive and runs the pipeline daily at the
// configured local time.
func runDaemon(cfg *config.Config, runner *pipeline.Runner) {
	sched, err := scheduler.NewScheduler(cfg.Timezone)
	if err != nil {
		slog.Error("failed to initialize scheduler", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	if err := sched.Schedule(cfg.Schedule, func() {
		if err := runner.Run(context.Background()); err != nil {
			slog.Error("scheduled run failed", "error", err)
		}
	}); err != nil {
		slog.Error("failed to schedule run", "error", err)
		os.Exit(1)
	}

	sched.Start()
	defer sched.Stop()
	slog.Info("monitor scheduled", "time", cfg.Schedule, "timezone", cfg.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig.String())
}

// Adapter types bridging the concrete clients to the pipeline interfaces.

type fetcherAdapter struct {
	client *naver.Client
}

func (f *fetcherAdapter) Search(ctx context.Context, query string, count int) ([]pipeline.RawItem, error) {
	items, err := f.client.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}
	raw := make([]pipeline.RawItem, len(items))
	for i, item := range items {
		raw[i] = pipeline.RawItem{
			Title:       naver.Sanitize(item.Title),
			Description: naver.Sanitize(item.Description),
			Link:        item.Link,
			PubDate:     item.PubDate,
		}
	}
	return raw, nil
}

type classifierAdapter struct {
	classifier *classifier.Classifier
}

func (c *classifierAdapter) Classify(ctx context.Context, articles []pipeline.Article) ([]pipeline.Verdict, error) {
	items := make([]classifier.Item, len(articles))
	for i, a := range articles {
		items[i] = classifier.Item{
			ID:      a.ID,
			Title:   a.Title,
			Content: a.Content,
		}
	}

	verdicts, err := c.classifier.Classify(ctx, items)
	if err != nil {
		return nil, err
	}

	result := make([]pipeline.Verdict, len(verdicts))
	for i, v := range verdicts {
		result[i] = pipeline.Verdict{
			ID:        v.ID,
			Status:    v.Status,
			Sentiment: v.Sentiment,
			Summary:   v.Summary,
		}
	}
	return result, nil
}

type storeAdapter struct {
	db *store.DB
}

func (s *storeAdapter) Prune(ctx context.Context, now time.Time, horizonDays int) error {
	return s.db.Prune(ctx, now, horizonDays)
}

func (s *storeAdapter) Exists(ctx context.Context, title string) (bool, error) {
	return s.db.Exists(ctx, title)
}

func (s *storeAdapter) Insert(ctx context.Context, rec *pipeline.StoredRecord) error {
	return s.db.Insert(ctx, &store.Record{
		Title:       rec.Title,
		Link:        rec.Link,
		Description: rec.Description,
		PubDate:     rec.PubDate,
		Summary:     rec.Summary,
		Sentiment:   rec.Sentiment,
		CreatedAt:   rec.CreatedAt,
	})
}

type notifierAdapter struct {
	notifier *notify.Notifier
}

func (n *notifierAdapter) Notify(ctx context.Context, articles []pipeline.KeptArticle) error {
	out := make([]notify.Article, len(articles))
	for i, a := range articles {
		out[i] = notify.Article{
			Title:     a.Title,
			Summary:   a.Summary,
			Sentiment: a.Sentiment,
			Link:      a.Link,
		}
	}
	return n.notifier.Notify(ctx, out)
}
