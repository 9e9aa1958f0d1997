package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/parley-chat/parley/internal/client"
	"github.com/parley-chat/parley/internal/store"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive session against the relay. Replies stream in as
they are generated. Besides plain prompts, these commands are available:

  /save <name>     save the conversation locally
  /load <name>     load a saved conversation
  /list            list saved conversations
  /export <file>   write the conversation to a JSON file
  /import <file>   read a conversation from a JSON file
  /model <name>    switch the model
  /speak on|off    toggle reading replies aloud
  /stop            silence the current utterance
  /quit            end the session`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		speaker := newSpeaker()
		sess := client.NewSession(newClient(), db, speaker, modelName)
		sess.SetAutoSpeak(autoSpeak)

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  parley")
		dim.Fprintf(os.Stderr, "  Streaming from %s (model %s).\n", relayURL, sess.Model())
		dim.Fprintf(os.Stderr, "  Type /quit to leave, /save <name> to keep the conversation.\n\n")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			green.Fprint(os.Stderr, "  you → ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if strings.HasPrefix(input, "/") {
				if quit := runChatCommand(cmd.Context(), sess, db, input, dim); quit {
					break
				}
				continue
			}

			if err := runTurn(cmd.Context(), sess, input, cyan); err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
			}
		}

		return scanner.Err()
	},
}

// runTurn sends one prompt and renders the streamed reply. A spinner covers
// the wait for the first token; from then on tokens print as they arrive,
// unless markdown rendering is on, in which case the whole reply is rendered
// once complete.
func runTurn(ctx context.Context, sess *client.Session, prompt string, prefix *color.Color) error {
	sp := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(os.Stderr))
	sp.Suffix = "  Thinking..."
	sp.Start()

	firstToken := true
	onDelta := func(token string) {
		if firstToken {
			sp.Stop()
			prefix.Fprint(os.Stderr, "  ai → ")
			firstToken = false
		}
		if !renderMD {
			fmt.Print(token)
		}
	}

	res, err := sess.Send(ctx, prompt, onDelta)
	sp.Stop()
	if errors.Is(err, client.ErrTurnInFlight) {
		return err
	}
	if err != nil {
		return err
	}

	if firstToken {
		// Nothing streamed; still show the reply (or its failure text).
		prefix.Fprint(os.Stderr, "  ai → ")
	}
	if renderMD {
		fmt.Println(renderMarkdown(res.Text))
	} else if firstToken {
		fmt.Println(res.Text)
	} else {
		fmt.Println()
	}
	fmt.Println()

	if res.Err != nil {
		color.New(color.FgHiBlack).Fprintf(os.Stderr, "  (stream ended early: %v)\n\n", res.Err)
	}
	return nil
}

func runChatCommand(ctx context.Context, sess *client.Session, db store.BoltDB, input string, dim *color.Color) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	fail := func(err error) {
		fmt.Fprintf(os.Stderr, "  Error: %v\n\n", err)
	}

	switch cmd {
	case "/quit", "/exit":
		dim.Fprintf(os.Stderr, "\n  Bye.\n\n")
		return true

	case "/save":
		if arg == "" {
			fail(errors.New("usage: /save <name>"))
			return false
		}
		if err := sess.SaveAs(ctx, arg); err != nil {
			fail(err)
			return false
		}
		dim.Fprintf(os.Stderr, "  Saved as %q.\n\n", arg)

	case "/load":
		if arg == "" {
			fail(errors.New("usage: /load <name>"))
			return false
		}
		if err := sess.Load(ctx, arg); err != nil {
			fail(err)
			return false
		}
		printHistory(sess, dim)

	case "/list":
		convs, err := db.List(ctx)
		if err != nil {
			fail(err)
			return false
		}
		if len(convs) == 0 {
			dim.Fprintf(os.Stderr, "  No saved conversations.\n\n")
			return false
		}
		for _, conv := range convs {
			dim.Fprintf(os.Stderr, "  %s  (%d turns, model %s)\n", conv.Name, len(conv.Messages), conv.Model)
		}
		fmt.Fprintln(os.Stderr)

	case "/export":
		if arg == "" {
			fail(errors.New("usage: /export <file>"))
			return false
		}
		f, err := os.Create(arg)
		if err != nil {
			fail(err)
			return false
		}
		defer f.Close()
		if err := store.Export(f, sess.Conversation(arg)); err != nil {
			fail(err)
			return false
		}
		dim.Fprintf(os.Stderr, "  Exported to %s.\n\n", arg)

	case "/import":
		if arg == "" {
			fail(errors.New("usage: /import <file>"))
			return false
		}
		f, err := os.Open(arg)
		if err != nil {
			fail(err)
			return false
		}
		defer f.Close()
		conv, err := store.Import(f)
		if err != nil {
			fail(err)
			return false
		}
		if err := db.Save(ctx, conv); err != nil {
			fail(err)
			return false
		}
		if err := sess.Load(ctx, conv.Name); err != nil {
			fail(err)
			return false
		}
		printHistory(sess, dim)

	case "/model":
		if arg == "" {
			dim.Fprintf(os.Stderr, "  Current model: %s\n\n", sess.Model())
			return false
		}
		sess.SetModel(arg)
		dim.Fprintf(os.Stderr, "  Switched to %s.\n\n", arg)

	case "/speak":
		switch arg {
		case "on":
			sess.SetAutoSpeak(true)
			dim.Fprintf(os.Stderr, "  Speaking replies aloud.\n\n")
		case "off":
			sess.SetAutoSpeak(false)
			dim.Fprintf(os.Stderr, "  Speech off.\n\n")
		default:
			fail(errors.New("usage: /speak on|off"))
		}

	case "/stop":
		sess.StopSpeaking()

	default:
		fail(fmt.Errorf("unknown command %q", cmd))
	}

	return false
}

func printHistory(sess *client.Session, dim *color.Color) {
	for _, turn := range sess.History() {
		who := "ai"
		if turn.FromUser {
			who = "you"
		}
		dim.Fprintf(os.Stderr, "  %s → ", who)
		fmt.Fprintln(os.Stderr, turn.Text)
	}
	fmt.Fprintln(os.Stderr)
}

func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
