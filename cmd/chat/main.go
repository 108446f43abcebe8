// Command chat is an interactive terminal client for a running kekari server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/zxlitianshu/Kekari-agent/internal/chat"
	"github.com/zxlitianshu/Kekari-agent/pkg/client"
)

var (
	promptColor  = color.New(color.FgCyan, color.Bold)
	replyColor   = color.New(color.FgGreen)
	pendingColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080/api", "Kekari API base URL")
		session = flag.String("session", "", "Session ID to continue (a new one is generated when empty)")
		timeout = flag.String("timeout", "5m", "Per-turn request timeout")
	)
	flag.Parse()

	cfg := &client.Config{BaseURL: *addr, Timeout: *timeout}
	if err := cfg.Finalize(nil); err != nil {
		errorColor.Fprintf(os.Stderr, "invalid client config: %v\n", err)
		os.Exit(1)
	}
	c := client.New(cfg)

	id := *session
	if id == "" {
		id = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	color.Cyan("kekari chat · session %s", id)
	color.White("type a message, or /quit to exit\n")

	path := "/sessions/" + url.PathEscape(id) + "/turns"
	scanner := bufio.NewScanner(os.Stdin)

	for {
		promptColor.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			break
		}

		var reply chat.Reply
		if err := c.Post(ctx, path, chat.TurnRequest{Message: text}, &reply); err != nil {
			if ctx.Err() != nil {
				break
			}
			errorColor.Printf("error: %v\n", err)
			continue
		}
		render(&reply)
	}
}

func render(r *chat.Reply) {
	replyColor.Println(r.Message)

	if r.AwaitingConfirmation && r.PendingArtifact != nil {
		pendingColor.Printf("  pending %s for %s: %s\n",
			r.PendingArtifact.ID, r.PendingArtifact.SKU, r.PendingArtifact.AssetRef)
	}
	if len(r.ReadyEntities) > 0 {
		fmt.Printf("  ready: %s\n", strings.Join(r.ReadyEntities, ", "))
	}
	if r.Candidates > 0 {
		fmt.Printf("  candidates: %d\n", r.Candidates)
	}
}
