package api

import (
	"os"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey:    "test-key-123",
		Model:     anthropic.ModelClaudeHaiku4_5_20251001,
		MaxTokens: 2048,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if client.Model() != anthropic.ModelClaudeHaiku4_5_20251001 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeHaiku4_5_20251001)
	}
	if client.maxTokens != 2048 {
		t.Errorf("maxTokens = %d, want 2048", client.maxTokens)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
	if client.UsesBedrock() {
		t.Error("UsesBedrock should be false for API key clients")
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("NewClient should fail without API key")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Default model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
	if client.maxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d, want %d", client.maxTokens, defaultMaxTokens)
	}
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{anthropic.ModelClaudeHaiku4_5_20251001, "us.anthropic.claude-haiku-4-5-20251001-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
	}
	for _, tt := range tests {
		if got := translateModelForBedrock(tt.in); got != tt.want {
			t.Errorf("translateModelForBedrock(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenTracker_AddMultiple(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Add(200, 100)
	tracker.Add(50, 25)

	input, output := tracker.Total()
	if input != 350 {
		t.Errorf("Input tokens = %d, want 350", input)
	}
	if output != 175 {
		t.Errorf("Output tokens = %d, want 175", output)
	}
	if tracker.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", tracker.Calls())
	}
}

func TestTokenTracker_Reset(t *testing.T) {
	tracker := NewTokenTracker()

	tracker.Add(100, 50)
	tracker.Reset()

	input, output := tracker.Total()
	if input != 0 || output != 0 {
		t.Errorf("After reset: input=%d, output=%d; want 0, 0", input, output)
	}
	if tracker.Calls() != 0 {
		t.Errorf("Calls after reset = %d, want 0", tracker.Calls())
	}
}

func TestTokenTracker_Cost(t *testing.T) {
	tracker := NewTokenTracker()

	// $3 input + $15 output
	tracker.Add(1_000_000, 1_000_000)

	if cost := tracker.Cost(); cost != 18.0 {
		t.Errorf("Cost = %f, want 18", cost)
	}
}

func TestNewClient_Bedrock(t *testing.T) {
	if os.Getenv("AWS_REGION") == "" && os.Getenv("AWS_DEFAULT_REGION") == "" {
		t.Skip("AWS_REGION not set, skipping Bedrock test")
	}

	client, err := NewClient(ClientConfig{
		UseAWSBedrock: true,
		AWSRegion:     "us-west-2",
		Model:         anthropic.ModelClaudeSonnet4_20250514,
	})
	if err != nil {
		t.Fatalf("NewClient with Bedrock failed: %v", err)
	}
	if client.Model() != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("Model = %q, want Bedrock inference profile", client.Model())
	}
	if !client.UsesBedrock() {
		t.Error("UsesBedrock should be true")
	}
}
