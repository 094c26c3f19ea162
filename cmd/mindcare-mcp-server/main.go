package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mindcare/internal/analytics"
	"mindcare/internal/config"
	"mindcare/internal/history"
	"mindcare/internal/notify"
	"mindcare/internal/server"
	"mindcare/internal/storage"
	"mindcare/internal/store"
)

type TokenParams struct {
	Token string `json:"token" mcp:"identity token: an FCM registration token or tg:<chatID>"`
}

type HistoryParams struct {
	Token string `json:"token" mcp:"identity token"`
	Last  int    `json:"last,omitempty" mcp:"only return the last N entries (default: all)"`
}

type PushParams struct {
	Token string `json:"token" mcp:"identity token to notify"`
	Title string `json:"title,omitempty" mcp:"notification title (default: the check-in title)"`
	Body  string `json:"body,omitempty" mcp:"notification body (default: the check-in question)"`
}

type StatsParams struct {
	Date string `json:"date,omitempty" mcp:"day to summarize as YYYY-MM-DD (default: today, UTC)"`
}

// OperatorServer exposes read-only state and manual pushes to MCP clients.
type OperatorServer struct {
	store       store.Store
	pusher      notify.Pusher
	recorder    storage.Recorder
	pushTimeout time.Duration
}

func errorResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: "❌ " + fmt.Sprintf(format, args...)}},
	}
}

func jsonResult(summary string, v any) (*mcp.CallToolResultFor[any], error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: summary + "\n" + string(b)}},
	}, nil
}

func (s *OperatorServer) record(ctx context.Context, token string) (*store.UserRecord, error) {
	rec, err := store.Snapshot(ctx, s.store, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func (s *OperatorServer) ListEvents(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[TokenParams]) (*mcp.CallToolResultFor[any], error) {
	token := strings.TrimSpace(params.Arguments.Token)
	if token == "" {
		return errorResult("token is required"), nil
	}
	log.Printf("📅 MCP Server: listing events for %s", notify.Redact(token))

	rec, err := s.record(ctx, token)
	if err != nil {
		return errorResult("failed to load store: %v", err), nil
	}
	events := []store.Event{}
	if rec != nil {
		events = rec.Events
	}
	return jsonResult(fmt.Sprintf("✅ %d events", len(events)), events)
}

func (s *OperatorServer) GetHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[HistoryParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	token := strings.TrimSpace(args.Token)
	if token == "" {
		return errorResult("token is required"), nil
	}
	log.Printf("💬 MCP Server: reading history for %s", notify.Redact(token))

	rec, err := s.record(ctx, token)
	if err != nil {
		return errorResult("failed to load store: %v", err), nil
	}
	entries := []history.Entry{}
	if rec != nil {
		entries = rec.History
		if args.Last > 0 {
			entries = history.Tail(entries, args.Last)
		}
	}
	return jsonResult(fmt.Sprintf("✅ %d messages", len(entries)), entries)
}

func (s *OperatorServer) SendPush(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[PushParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	token := strings.TrimSpace(args.Token)
	if token == "" {
		return errorResult("token is required"), nil
	}
	n := notify.Notification{Title: args.Title, Body: args.Body}
	if strings.TrimSpace(n.Title) == "" {
		n.Title = server.DefaultPushTitle
	}
	if strings.TrimSpace(n.Body) == "" {
		n.Body = server.DefaultPushBody
	}

	log.Printf("🔔 MCP Server: sending push to %s", notify.Redact(token))
	if err := server.Push(ctx, s.pusher, s.pushTimeout, token, n); err != nil {
		return errorResult("push failed: %v", err), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("✅ Sent %q to %s", n.Title, notify.Redact(token))}},
	}, nil
}

func (s *OperatorServer) DailyStats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[any], error) {
	day := time.Now().UTC()
	if d := strings.TrimSpace(params.Arguments.Date); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			return errorResult("invalid date %q, want YYYY-MM-DD", d), nil
		}
		day = parsed
	}
	items, err := s.recorder.LoadInteractions()
	if err != nil {
		return errorResult("failed to read interaction log: %v", err), nil
	}
	stats := analytics.AnalyzeDailyLogs(items, day)
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: stats.GenerateReportSummary()}},
	}, nil
}

func newMCPServer(op *OperatorServer) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "mindcare-operator-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_events",
		Description: "Lists the reminder events saved for an identity, with their notification flags",
	}, op.ListEvents)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_history",
		Description: "Returns the stored conversation history of an identity",
	}, op.GetHistory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "send_push",
		Description: "Sends a manual check-in notification to an identity",
	}, op.SendPush)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "daily_stats",
		Description: "Summarizes one day of chat activity from the interaction log",
	}, op.DailyStats)

	return srv
}

func main() {
	config.LoadDotEnv(".env")
	cfg := config.New()

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("❌ failed to open store: %v", err)
	}
	defer st.Close()

	var tgAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		tgAPI, err = tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			log.Fatalf("❌ failed to connect telegram: %v", err)
		}
	}
	ctx := context.Background()
	pusher, err := notify.FromConfig(ctx, cfg, tgAPI)
	if err != nil {
		log.Fatalf("❌ failed to init push providers: %v", err)
	}

	var rec storage.Recorder = storage.Nop{}
	if cfg.LogFilePath != "" {
		if fr, err := storage.NewFileRecorder(cfg.LogFilePath); err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			rec = fr
		}
	}

	log.Printf("🚀 Starting MindCare operator MCP Server (store=%s)", cfg.StoreDriver)
	srv := newMCPServer(&OperatorServer{store: st, pusher: pusher, recorder: rec, pushTimeout: cfg.PushTimeout})

	log.Printf("📋 Registered %d tools: list_events, get_history, send_push, daily_stats", 4)
	log.Printf("🔗 Starting server on stdin/stdout...")
	if err := srv.Run(ctx, mcp.NewStdioTransport()); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
