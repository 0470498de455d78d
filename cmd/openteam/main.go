package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openteam-dev/openteam-go/internal/composer"
	"github.com/openteam-dev/openteam-go/internal/draft"
	"github.com/openteam-dev/openteam-go/internal/markdown"
	"github.com/openteam-dev/openteam-go/internal/projector"
	"github.com/openteam-dev/openteam-go/internal/storeapi"
	"github.com/openteam-dev/openteam-go/internal/upload"
	"github.com/openteam-dev/openteam-go/shared/config"
	"github.com/openteam-dev/openteam-go/shared/domain"
	"github.com/openteam-dev/openteam-go/shared/filetype"
	"github.com/openteam-dev/openteam-go/shared/logger"
)

// A line-based composer frontend: type to send, /attach to add a file,
// /thread to move into a thread, /quit to leave. Live records from the
// store are printed as they arrive.
func main() {
	var configFolder string
	var channel string
	flag.StringVar(&configFolder, "config_folder", "config", "path to folder with configs")
	flag.StringVar(&channel, "channel", "general", "channel to compose into")
	flag.Parse()

	cfg := config.MustLoad(configFolder)
	logger.Initialize(cfg.Public.Log.Level, cfg.Public.Log.Json)
	log := logger.Log

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := storeapi.New(cfg.Public.Store.BaseUrl, cfg.AccessToken())

	notify := domain.NotifierFuncs{
		ErrorFunc:   func(msg string) { fmt.Fprintln(os.Stderr, "! "+msg) },
		WarningFunc: func(msg string) { fmt.Fprintln(os.Stderr, "~ "+msg) },
	}

	renderer := markdown.New()
	proj := projector.New(renderer, log)

	target := domain.TargetContext{Channel: channel}

	newDrafts := func() *draft.Store {
		return draft.NewStore(nil, cfg.Public.Upload.MaxFileBytes)
	}

	// The composer is its own upload tracker, so completions always land
	// in the draft store of the context that started them.
	var comp *composer.Composer
	comp = composer.New(composer.Options{
		Store: client,
		Uploader: uploaderFunc(func(ctx context.Context, correlation domain.CorrelationToken, drafts []domain.AttachmentDraft) *upload.Batch {
			return upload.New(client, comp, notify, log).UploadBatch(ctx, correlation, drafts)
		}),
		Projector:      proj,
		Notifier:       notify,
		Logger:         log,
		Target:         target,
		MaxAttachments: cfg.Public.Upload.MaxAttachments,
		NewDraftStore:  newDrafts,
	})
	defer comp.Close()

	page, err := client.ListMessages(ctx, target, "", cfg.Public.Store.PageSize)
	if err != nil {
		log.Error("failed to load messages", slog.Any("error", err))
		os.Exit(1)
	}
	proj.SeedPage(target, *page)
	for i := len(page.Messages) - 1; i >= 0; i-- {
		printMessage(page.Messages[i])
	}

	sub, err := client.Subscribe(ctx, target)
	if err != nil {
		log.Error("failed to subscribe", slog.Any("error", err))
		os.Exit(1)
	}
	defer sub.Close()

	go func() {
		for record := range sub.Records() {
			proj.Apply(record)
			printMessage(record)
		}
		if err := sub.Err(); err != nil {
			log.Warn("live subscription ended", slog.Any("error", err))
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "/quit":
			return
		case strings.HasPrefix(line, "/attach "):
			attach(ctx, comp, strings.TrimPrefix(line, "/attach "))
		case strings.HasPrefix(line, "/thread "):
			comp.SwitchTarget(domain.TargetContext{
				Channel:       channel,
				ParentMessage: strings.TrimPrefix(line, "/thread "),
			})
		case line == "/channel":
			comp.SwitchTarget(domain.TargetContext{Channel: channel})
		default:
			comp.SetText(line)
			if err := comp.Submit(ctx); err != nil {
				log.Warn("submit skipped", slog.Any("error", err))
			}
		}
	}
}

type uploaderFunc func(ctx context.Context, correlation domain.CorrelationToken, drafts []domain.AttachmentDraft) *upload.Batch

func (f uploaderFunc) UploadBatch(ctx context.Context, correlation domain.CorrelationToken, drafts []domain.AttachmentDraft) *upload.Batch {
	return f(ctx, correlation, drafts)
}

func attach(ctx context.Context, comp *composer.Composer, path string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot read "+path)
		return
	}
	_ = comp.Attach(ctx, domain.BinarySource{
		Bytes:         payload,
		SuggestedName: path,
	})
}

func printMessage(m domain.Message) {
	fmt.Printf("[%s] %s: %s", m.CreatedAt.Format("15:04:05"), m.Author.Name, m.Text)
	for _, a := range m.Attachments {
		kind := filetype.Classify(a.ContentType)
		fmt.Printf(" (%s, %s)", a.Name, kind.Label)
	}
	fmt.Println()
}
