package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"beacon-chat/internal/chat"
	"beacon-chat/internal/logger"
	"beacon-chat/internal/models"
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Keep the terminal clean, only errors reach stderr
	log, err := logger.New(logger.Config{Level: "error", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.close(ctx)
	}()

	return newREPL(a.controller, os.Stdin, os.Stdout).run(cmd.Context())
}

// repl is the terminal front end on top of a Controller
type repl struct {
	controller *chat.Controller
	in         io.Reader
	out        io.Writer
	updates    chan chat.Change
	// lastAnswer is the assistant message /regen, /like and /dislike act on
	lastAnswer string
}

func newREPL(controller *chat.Controller, in io.Reader, out io.Writer) *repl {
	r := &repl{
		controller: controller,
		in:         in,
		out:        out,
		updates:    make(chan chat.Change, 64),
	}
	controller.Store().Subscribe(func(ch chat.Change) {
		if ch.Kind != chat.ChangeMessageUpdated {
			return
		}
		// Content is cumulative, a dropped update is caught up by the next one
		select {
		case r.updates <- ch:
		default:
		}
	})
	return r
}

func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Fprintln(r.out, "Welcome to Beacon! Ask anything about your Power BI reports.")
	fmt.Fprintln(r.out, "Type /help for commands, 'exit' or 'quit' to stop.")
	fmt.Fprintln(r.out, strings.Repeat("-", 50))

	if _, ok := r.controller.Store().Current(); !ok {
		r.controller.CreateConversation()
	}

	scanner := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out, "\nGoodbye!")
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
			fmt.Fprintln(r.out, "Goodbye!")
			return nil
		case strings.HasPrefix(input, "/"):
			if quit := r.command(ctx, input); quit {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
		default:
			ex, err := r.controller.Send(ctx, input)
			if err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
				continue
			}
			r.lastAnswer = ex.AssistantMessageID
			r.stream(ex)
		}
	}
}

// command runs a slash command and reports whether the REPL should stop
func (r *repl) command(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	name, args := strings.TrimPrefix(fields[0], "/"), fields[1:]

	switch name {
	case "help", "h":
		fmt.Fprintln(r.out, "/new                   start a new conversation")
		fmt.Fprintln(r.out, "/list                  list conversations")
		fmt.Fprintln(r.out, "/regen                 regenerate the last answer")
		fmt.Fprintln(r.out, "/like                  like the last answer")
		fmt.Fprintln(r.out, "/dislike [reason] ...  dislike the last answer (not-helpful, incorrect, offensive, other)")
		fmt.Fprintln(r.out, "/exit                  leave")
	case "exit", "quit", "q":
		return true
	case "new":
		conv := r.controller.CreateConversation()
		r.lastAnswer = ""
		fmt.Fprintf(r.out, "Started conversation %s\n", conv.ID)
	case "list":
		current := r.controller.Store().CurrentID()
		for _, c := range r.controller.Store().List() {
			marker := " "
			if c.ID == current {
				marker = "*"
			}
			fmt.Fprintf(r.out, "%s %s  %s (%d messages)\n", marker, c.ID, c.Title, c.MessageCount)
		}
	case "regen":
		if r.lastAnswer == "" {
			fmt.Fprintln(r.out, "Nothing to regenerate yet.")
			return false
		}
		ex, err := r.controller.Regenerate(ctx, r.lastAnswer)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return false
		}
		r.stream(ex)
	case "like":
		r.report(r.controller.Like(r.lastAnswer), "Thanks for the feedback!")
	case "dislike":
		reason := models.ReasonNotHelpful
		if len(args) > 0 {
			reason = models.DislikeReason(args[0])
		}
		comment := ""
		if len(args) > 1 {
			comment = strings.Join(args[1:], " ")
		}
		r.report(r.controller.Dislike(r.lastAnswer, reason, comment), "Thanks, we'll use this to improve.")
	default:
		fmt.Fprintf(r.out, "Unknown command /%s, type /help\n", name)
	}
	return false
}

func (r *repl) report(err error, ok string) {
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, ok)
}

// stream prints the answer as it grows, writing only the new suffix of each update
func (r *repl) stream(ex *chat.Exchange) {
	// Feedback updates of the same message may still be queued
	r.drain()
	fmt.Fprint(r.out, "\nBeacon: ")

	shown := ""
	show := func(content string) {
		if strings.HasPrefix(content, shown) {
			fmt.Fprint(r.out, content[len(shown):])
		} else {
			fmt.Fprint(r.out, "\n"+content)
		}
		shown = content
	}

	for {
		select {
		case ch := <-r.updates:
			if ch.MessageID == ex.AssistantMessageID && ch.Message != nil {
				show(ch.Message.Content)
			}
		case <-ex.Done():
			r.drain()
			_, msg, ok := r.controller.Store().FindMessage(ex.AssistantMessageID)
			if ok {
				show(msg.Content)
			}
			fmt.Fprintln(r.out)
			if err := ex.Wait(); err != nil {
				fmt.Fprintf(r.out, "Error: %v\n", err)
			}
			return
		}
	}
}

// drain discards queued updates
func (r *repl) drain() {
	for {
		select {
		case <-r.updates:
		default:
			return
		}
	}
}
