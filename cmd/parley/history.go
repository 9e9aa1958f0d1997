package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/parley-chat/parley/internal/store"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage saved conversations",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved conversations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		convs, err := db.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(convs) == 0 {
			fmt.Println("No saved conversations.")
			return nil
		}

		bold := color.New(color.Bold)
		for _, conv := range convs {
			bold.Printf("%s", conv.Name)
			fmt.Printf("  %d turns, model %s, saved %s\n",
				len(conv.Messages), conv.Model, conv.Timestamp.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		conv, err := db.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen)
		cyan := color.New(color.FgCyan)
		for _, turn := range conv.Messages {
			if turn.FromUser {
				green.Print("you → ")
			} else {
				cyan.Print("ai  → ")
			}
			fmt.Println(turn.Text)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Delete(cmd.Context(), args[0])
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <name> <file>",
	Short: "Write a saved conversation to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		conv, err := db.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		return store.Export(f, conv)
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Read a conversation from a JSON file into the store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		conv, err := store.Import(f)
		if err != nil {
			return err
		}
		if err := db.Save(cmd.Context(), conv); err != nil {
			return err
		}

		fmt.Printf("Imported %q (%d turns).\n", conv.Name, len(conv.Messages))
		return nil
	},
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyImportCmd)
}
