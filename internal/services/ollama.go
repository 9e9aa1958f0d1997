package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Ollama wraps the model runtime's management API for the endpoints that sit
// next to the relay: health reporting and model listing. Generation traffic
// never goes through this client; the relay forwards those bytes itself.
type Ollama struct {
	host string

	client *api.Client
}

// NewOllama creates an Ollama instance for the runtime at the given host
// URL. If the provided host URL is invalid, the function will panic.
func NewOllama(host string) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:   host,
		client: api.NewClient(u, &http.Client{}),
	}
}

// Version returns the runtime's reported version string.
func (o Ollama) Version(ctx context.Context) (string, error) {
	version, err := o.client.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("error requesting runtime version: %w", err)
	}
	return version, nil
}

// Models lists the names of the models the runtime has available locally.
func (o Ollama) Models(ctx context.Context) ([]string, error) {
	resp, err := o.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing models: %w", err)
	}

	names := make([]string, len(resp.Models))
	for i, m := range resp.Models {
		names[i] = m.Name
	}
	return names, nil
}
