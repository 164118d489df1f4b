package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/agencydesk/dispatch/internal/biz/domain"
	"github.com/agencydesk/dispatch/internal/conf"
	"github.com/agencydesk/dispatch/internal/pkg/logger"
	"github.com/agencydesk/dispatch/internal/server"
)

func main() {
	_ = godotenv.Load()

	memberID := flag.String("member", "", "team member id of the sender (required)")
	displayName := flag.String("name", "", "display name of the sender")
	attachments := flag.String("attach", "", "comma-separated attachment URLs")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: send-message -member <member_id> [-name <display_name>] [-attach <url,...>] <conversation_id> <message>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 || *memberID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logr := logger.Init(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()

	app, err := server.NewApp(ctx, cfg, logr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer app.Close(ctx)

	req := &domain.SendRequest{
		ConversationID: flag.Arg(0),
		Body:           strings.Join(flag.Args()[1:], " "),
		Attachments:    splitList(*attachments),
		Sender:         domain.Identity{MemberID: *memberID, DisplayName: *displayName},
	}

	result := app.Dispatch.Dispatch(ctx, req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(result)

	if result.Outcome == domain.OutcomeSendFailed {
		app.Close(ctx)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
