package main

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mathgpt/internal/model/chat"
	"github.com/zhouzirui/mathgpt/internal/service/conversation"
)

const replHelp = `Special inputs:
  exit, quit                 leave the chat
  clear                      start a new conversation in the current topic
  history                    show the whole conversation
  /topics                    list topics
  /topic <category> <name>   create a topic and switch to it
  /select <topic-id>         switch topic
  /bookmark                  toggle the bookmark on the current topic
  /categories                list categories
  /help                      show this help`

// chatCmd starts the interactive REPL
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long:  "Start an interactive conversation with the math assistant.\n\n" + replHelp,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, clientCfg, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.repl(ctx, cmd.InOrStdin())
}

func (s *session) repl(ctx context.Context, in io.Reader) error {
	p := s.printer
	p.printf("MathGPT (type 'exit' to quit, '/help' for commands)\n\n")
	for _, r := range s.controller.RenderConversation() {
		p.message(r)
	}

	scanner := bufio.NewScanner(in)
	for {
		p.printf("\nYou: ")
		if !scanner.Scan() {
			p.printf("\n")
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		if s.handleLine(ctx, scanner.Text()) {
			p.printf("Goodbye!\n")
			return nil
		}
	}
}

// handleLine runs one REPL input and reports whether the user asked to leave.
func (s *session) handleLine(ctx context.Context, line string) bool {
	p := s.printer
	input := strings.TrimSpace(line)
	fields := strings.Fields(input)

	switch {
	case input == "":
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return true
	case strings.EqualFold(input, "clear"):
		state := s.controller.ResetConversation(ctx)
		p.printf("Conversation history cleared.\n")
		s.printLast(state)
	case strings.EqualFold(input, "history"):
		for _, r := range s.controller.RenderConversation() {
			p.message(r)
		}
	case fields[0] == "/help":
		p.printf("%s\n", replHelp)
	case fields[0] == "/topics":
		p.topics(s.controller.State(), s.categoryLabel)
	case fields[0] == "/categories":
		for _, c := range s.categories.List() {
			p.printf("%s %-10s %s\n", c.Icon, c.Key, c.Label)
		}
	case fields[0] == "/topic":
		if len(fields) < 2 {
			p.printf("usage: /topic <category> <name>\n")
			break
		}
		if !s.categories.Known(fields[1]) {
			p.printf("Unknown category %q, using %s.\n", fields[1], s.categories.Fallback().Label)
		}
		state := s.controller.CreateTopic(ctx, strings.Join(fields[2:], " "), fields[1], "")
		s.printLast(state)
	case fields[0] == "/select":
		if len(fields) != 2 {
			p.printf("usage: /select <topic-id>\n")
			break
		}
		if _, err := s.controller.SelectTopic(fields[1]); err != nil {
			p.printf("No topic with id %q.\n", fields[1])
			break
		}
		p.printf("Switched topic.\n")
	case fields[0] == "/bookmark":
		state := s.controller.ToggleBookmark(ctx, s.controller.State().CurrentTopicID)
		if topic, ok := state.Topic(state.CurrentTopicID); ok {
			if topic.IsBookmarked {
				p.printf("Bookmarked %s.\n", topic.Name)
			} else {
				p.printf("Removed bookmark from %s.\n", topic.Name)
			}
		}
	default:
		p.printf("\n")
		p.message(s.controller.RenderMessage(chat.Message{
			ID:        "pending",
			Content:   conversation.ComposingText,
			Sender:    chat.SenderAssistant,
			Composing: true,
		}))
		res := s.controller.Send(ctx, input, "")
		if !res.Accepted || res.Stale {
			break
		}
		s.printLast(res.State)
	}
	return false
}

func (s *session) printLast(state chat.SessionState) {
	if last, ok := state.Last(); ok {
		s.printer.message(s.controller.RenderMessage(last))
	}
}

func (s *session) categoryLabel(key string) string {
	c := s.categories.Describe(key)
	return c.Icon + " " + c.Label
}
