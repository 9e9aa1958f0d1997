package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available behind the relay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, relayURL+"/api/models", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("relay unreachable: %w", err)
		}
		defer resp.Body.Close()

		var res struct {
			Models []string `json:"models"`
			Error  string   `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			return fmt.Errorf("unexpected response from relay: %w", err)
		}
		if res.Error != "" {
			return fmt.Errorf("relay error: %s", res.Error)
		}

		for _, name := range res.Models {
			fmt.Println(name)
		}
		return nil
	},
}
