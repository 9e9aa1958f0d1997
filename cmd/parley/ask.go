package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Ask a single question and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := strings.Join(args, " ")

		sp := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(os.Stderr))
		sp.Suffix = "  Thinking..."
		sp.Start()

		first := true
		res := newClient().Generate(cmd.Context(), modelName, prompt, func(token string) {
			if first {
				sp.Stop()
				first = false
			}
			if !renderMD {
				fmt.Print(token)
			}
		})
		sp.Stop()

		if renderMD {
			fmt.Println(renderMarkdown(res.Text))
		} else if first {
			fmt.Println(res.Text)
		} else {
			fmt.Println()
		}

		if autoSpeak {
			speaker := newSpeaker()
			speaker.Speak(res.Text)
			speaker.Wait()
		}

		return res.Err
	},
}
