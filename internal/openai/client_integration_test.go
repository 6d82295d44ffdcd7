//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_EmbedBatch_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	vectors, err := client.EmbedBatch(ctx, []string{"The sky is blue.", "Grass is green."})

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[1], len(vectors[0]))
}

func TestIntegration_ChatComplete_RealAPI(t *testing.T) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)

	answer, err := client.ChatComplete(context.Background(), "Reply with one word.", "Say hello.")

	require.NoError(t, err)
	assert.NotEmpty(t, answer)
}
