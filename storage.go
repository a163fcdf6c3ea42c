package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// EnsureDataDir ensures the data directory exists.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir, 0755)
}

// GetConversationPath returns the file path for a conversation.
func GetConversationPath(conversationID string) string {
	return filepath.Join(DataDir, conversationID+".json")
}

// CreateConversation creates a new conversation with the given ID and optional
// personality configuration, and saves it to disk.
func CreateConversation(conversationID string, personalityConfig *PersonalityConfig) (*Conversation, error) {
	if err := EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conversation := &Conversation{
		ID:                conversationID,
		CreatedAt:         time.Now().UTC(),
		Title:             "New Conversation",
		Messages:          []Message{},
		PersonalityConfig: personalityConfig,
	}

	if err := SaveConversation(conversation); err != nil {
		return nil, err
	}

	return conversation, nil
}

// GetConversation loads a conversation from storage by ID.
// Returns nil without error if the conversation doesn't exist.
func GetConversation(conversationID string) (*Conversation, error) {
	path := GetConversationPath(conversationID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // Not found, return nil without error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conversation Conversation
	if err := json.Unmarshal(data, &conversation); err != nil {
		return nil, fmt.Errorf("failed to parse conversation JSON: %w", err)
	}

	return &conversation, nil
}

// SaveConversation saves a conversation to storage as formatted JSON.
func SaveConversation(conversation *Conversation) error {
	if err := EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(conversation, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	path := GetConversationPath(conversation.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write conversation file: %w", err)
	}

	return nil
}

// ListConversations lists all conversations with metadata only, sorted by
// creation time (newest first). Silently skips invalid or unreadable files.
func ListConversations() ([]ConversationMetadata, error) {
	if err := EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	entries, err := os.ReadDir(DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	// Initialize with empty slice to avoid null in JSON
	conversations := make([]ConversationMetadata, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(DataDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue // Skip files we can't read
		}

		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			continue // Skip invalid JSON
		}

		conversations = append(conversations, ConversationMetadata{
			ID:           conv.ID,
			CreatedAt:    conv.CreatedAt,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
		})
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
	})

	return conversations, nil
}

// AddUserMessage appends a user message to a conversation and saves it.
func AddUserMessage(conversationID string, content string) error {
	conversation, err := GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Messages = append(conversation.Messages, Message{
		Role:    "user",
		Content: content,
	})

	return SaveConversation(conversation)
}

// AddAssistantMessage appends an assistant message carrying the complete
// council results (stage1, stage2, stage3) and saves the conversation.
func AddAssistantMessage(conversationID string, stage1 []Stage1Response, stage2 []Stage2Ranking, stage3 Stage3Response) error {
	conversation, err := GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Messages = append(conversation.Messages, Message{
		Role:   "assistant",
		Stage1: stage1,
		Stage2: stage2,
		Stage3: &stage3,
	})

	return SaveConversation(conversation)
}

// AddChairmanMessage appends an assistant message carrying a chairman-only
// response (no council stages) and saves the conversation.
func AddChairmanMessage(conversationID string, response Stage3Response) error {
	conversation, err := GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Messages = append(conversation.Messages, Message{
		Role:             "assistant",
		ChairmanResponse: &response,
	})

	return SaveConversation(conversation)
}

// UpdateConversationTitle updates the title of a conversation and saves it.
func UpdateConversationTitle(conversationID string, title string) error {
	conversation, err := GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}

	conversation.Title = title

	return SaveConversation(conversation)
}

// BuildConversationHistory converts stored messages into chat format for
// model queries. Assistant turns contribute their final synthesis (or
// chairman response); intermediate stage output is not replayed.
func BuildConversationHistory(messages []Message) []OpenRouterMessage {
	var history []OpenRouterMessage
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			history = append(history, OpenRouterMessage{Role: "user", Content: msg.Content})
		case "assistant":
			if msg.Stage3 != nil {
				history = append(history, OpenRouterMessage{Role: "assistant", Content: msg.Stage3.Response})
			} else if msg.ChairmanResponse != nil {
				history = append(history, OpenRouterMessage{Role: "assistant", Content: msg.ChairmanResponse.Response})
			}
		}
	}
	return history
}
