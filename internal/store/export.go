package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/parley-chat/parley/internal/models"
)

// Export writes a single conversation as an indented standalone JSON
// document, the same shape the store keeps internally. Media turns are
// replaced by the placeholder note, exactly as on save.
func Export(w io.Writer, conv models.Conversation) error {
	data, err := json.MarshalIndent(conv.Sanitized(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	return nil
}

// Import reads a conversation previously written by Export. A document
// without a name or without messages is rejected.
func Import(r io.Reader) (models.Conversation, error) {
	var conv models.Conversation
	if err := json.NewDecoder(r).Decode(&conv); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if conv.Name == "" {
		return models.Conversation{}, fmt.Errorf("conversation has no name")
	}
	if len(conv.Messages) == 0 {
		return models.Conversation{}, fmt.Errorf("conversation %q has no messages", conv.Name)
	}
	return conv, nil
}
