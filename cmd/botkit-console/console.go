package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"connectrpc.com/connect"

	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/client"
)

const promptMarker = "> "

// run reads one message per line from in and prints the replies to out
// until EOF, /quit or ctx is done.
func run(ctx context.Context, in io.Reader, out io.Writer, c *client.Client, cv *client.Conversation) error {
	replies, err := cv.Join(ctx)
	if err != nil {
		return fmt.Errorf("join: %w", err)
	}
	printReplies(out, replies)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptMarker)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := cv.Reset(ctx); err != nil {
				fmt.Fprintf(out, "! reset failed: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "* conversation reset")
			continue
		case "/stack":
			printStack(ctx, out, c, cv)
			continue
		case "/dialogs":
			ids, err := c.Dialogs(ctx)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			fmt.Fprintf(out, "* %s\n", strings.Join(ids, ", "))
			continue
		}

		replies, err := cv.Say(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		printReplies(out, replies)
	}
}

func printStack(ctx context.Context, out io.Writer, c *client.Client, cv *client.Conversation) {
	snap, err := c.Stack(ctx, cv.Ref())
	if connect.CodeOf(err) == connect.CodeNotFound {
		fmt.Fprintln(out, "* stack is empty")
		return
	}
	if err != nil {
		fmt.Fprintf(out, "! %v\n", err)
		return
	}
	if len(snap.Stack) == 0 {
		fmt.Fprintln(out, "* stack is empty")
		return
	}
	for i := len(snap.Stack) - 1; i >= 0; i-- {
		fmt.Fprintf(out, "* %d %s\n", i, snap.Stack[i].ID)
	}
}

func printReplies(out io.Writer, replies []activity.Activity) {
	for _, r := range replies {
		if r.Text != "" {
			fmt.Fprintf(out, "bot: %s\n", r.Text)
		}
		if r.SuggestedActions != nil {
			titles := make([]string, len(r.SuggestedActions.Actions))
			for i, a := range r.SuggestedActions.Actions {
				titles[i] = a.Title
			}
			fmt.Fprintf(out, "     [%s]\n", strings.Join(titles, "] ["))
		}
	}
}
