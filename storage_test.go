package main

import (
	"testing"
)

// TestCreateAndGetConversation tests conversation creation and retrieval
func TestCreateAndGetConversation(t *testing.T) {
	useTempDataDirs(t)

	created, err := CreateConversation("conv-1", nil)
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if created.Title != "New Conversation" {
		t.Errorf("Title = %q, want New Conversation", created.Title)
	}
	if created.Messages == nil || len(created.Messages) != 0 {
		t.Errorf("New conversation should have an empty message list: %v", created.Messages)
	}

	loaded, err := GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("Saved conversation not found")
	}
	if loaded.ID != "conv-1" {
		t.Errorf("ID = %q, want conv-1", loaded.ID)
	}
}

// TestCreateConversationWithPersonalityConfig tests persisting a persona setup
func TestCreateConversationWithPersonalityConfig(t *testing.T) {
	useTempDataDirs(t)

	pc := &PersonalityConfig{
		Mode: "each_different",
		CouncilAssignments: map[string]string{
			"model/a": "p1",
		},
		ChairmanPersonalityID: "p2",
		ShuffleEachTurn:       true,
	}

	if _, err := CreateConversation("conv-pc", pc); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	loaded, err := GetConversation("conv-pc")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if loaded.PersonalityConfig == nil {
		t.Fatal("PersonalityConfig not persisted")
	}
	if loaded.PersonalityConfig.Mode != "each_different" {
		t.Errorf("Mode = %q", loaded.PersonalityConfig.Mode)
	}
	if loaded.PersonalityConfig.CouncilAssignments["model/a"] != "p1" {
		t.Errorf("Assignments not persisted: %v", loaded.PersonalityConfig.CouncilAssignments)
	}
	if !loaded.PersonalityConfig.ShuffleEachTurn {
		t.Error("ShuffleEachTurn not persisted")
	}
}

// TestGetConversationNotFound tests that a missing ID is not an error
func TestGetConversationNotFound(t *testing.T) {
	useTempDataDirs(t)

	conversation, err := GetConversation("does-not-exist")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if conversation != nil {
		t.Errorf("Expected nil for missing conversation, got %+v", conversation)
	}
}

// TestSaveAndLoadFullConversation tests round-tripping council messages
func TestSaveAndLoadFullConversation(t *testing.T) {
	useTempDataDirs(t)

	conversation := sampleConversation("conv-full")
	if err := SaveConversation(conversation); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	loaded, err := GetConversation("conv-full")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}

	if len(loaded.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(loaded.Messages))
	}

	assistant := loaded.Messages[1]
	if len(assistant.Stage1) != 2 {
		t.Errorf("Stage1: expected 2 responses, got %d", len(assistant.Stage1))
	}
	if len(assistant.Stage2) != 1 {
		t.Errorf("Stage2: expected 1 ranking, got %d", len(assistant.Stage2))
	}
	if assistant.Stage3 == nil || assistant.Stage3.Model != "test/chairman" {
		t.Errorf("Stage3 not preserved: %+v", assistant.Stage3)
	}
	if len(assistant.Stage2[0].ParsedRanking) != 2 {
		t.Errorf("ParsedRanking not preserved: %v", assistant.Stage2[0].ParsedRanking)
	}
}

// TestListConversations tests metadata listing and newest-first ordering
func TestListConversations(t *testing.T) {
	useTempDataDirs(t)

	older := sampleConversation("conv-older")
	newer := sampleConversation("conv-newer")
	newer.CreatedAt = older.CreatedAt.AddDate(0, 0, 1)

	if err := SaveConversation(older); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}
	if err := SaveConversation(newer); err != nil {
		t.Fatalf("SaveConversation failed: %v", err)
	}

	list, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}

	if len(list) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != "conv-newer" || list[1].ID != "conv-older" {
		t.Errorf("Not sorted newest first: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].MessageCount != 2 {
		t.Errorf("MessageCount = %d, want 2", list[0].MessageCount)
	}
}

// TestListConversationsEmpty tests that an empty store lists as empty
func TestListConversationsEmpty(t *testing.T) {
	useTempDataDirs(t)

	list, err := ListConversations()
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if list == nil {
		t.Error("Expected empty slice, not nil")
	}
	if len(list) != 0 {
		t.Errorf("Expected 0 conversations, got %d", len(list))
	}
}

// TestAddMessages tests appending user, council and chairman messages
func TestAddMessages(t *testing.T) {
	useTempDataDirs(t)

	if _, err := CreateConversation("conv-msgs", nil); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := AddUserMessage("conv-msgs", "What is Go?"); err != nil {
		t.Fatalf("AddUserMessage failed: %v", err)
	}

	stage1 := []Stage1Response{{Model: "model/a", Response: "An answer."}}
	stage2 := []Stage2Ranking{{Model: "model/a", Ranking: "FINAL RANKING:\n1. Response A"}}
	stage3 := Stage3Response{Model: "test/chairman", Response: "Final answer."}
	if err := AddAssistantMessage("conv-msgs", stage1, stage2, stage3); err != nil {
		t.Fatalf("AddAssistantMessage failed: %v", err)
	}

	if err := AddUserMessage("conv-msgs", "Follow up?"); err != nil {
		t.Fatalf("AddUserMessage failed: %v", err)
	}
	if err := AddChairmanMessage("conv-msgs", Stage3Response{Model: "test/chairman", Response: "Direct answer."}); err != nil {
		t.Fatalf("AddChairmanMessage failed: %v", err)
	}

	loaded, err := GetConversation("conv-msgs")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if len(loaded.Messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(loaded.Messages))
	}

	council := loaded.Messages[1]
	if council.Stage3 == nil || council.Stage3.Response != "Final answer." {
		t.Errorf("Council message wrong: %+v", council)
	}
	if council.ChairmanResponse != nil {
		t.Error("Council message should not carry a chairman-only response")
	}

	chairman := loaded.Messages[3]
	if chairman.ChairmanResponse == nil || chairman.ChairmanResponse.Response != "Direct answer." {
		t.Errorf("Chairman message wrong: %+v", chairman)
	}
	if chairman.Stage3 != nil {
		t.Error("Chairman message should not carry council stages")
	}
}

// TestAddMessageMissingConversation tests errors on unknown conversations
func TestAddMessageMissingConversation(t *testing.T) {
	useTempDataDirs(t)

	if err := AddUserMessage("does-not-exist", "hello"); err == nil {
		t.Error("Expected error for missing conversation")
	}
	if err := AddChairmanMessage("does-not-exist", Stage3Response{}); err == nil {
		t.Error("Expected error for missing conversation")
	}
}

// TestUpdateConversationTitle tests title updates
func TestUpdateConversationTitle(t *testing.T) {
	useTempDataDirs(t)

	if _, err := CreateConversation("conv-title", nil); err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	if err := UpdateConversationTitle("conv-title", "Go Basics"); err != nil {
		t.Fatalf("UpdateConversationTitle failed: %v", err)
	}

	loaded, err := GetConversation("conv-title")
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if loaded.Title != "Go Basics" {
		t.Errorf("Title = %q, want Go Basics", loaded.Title)
	}
}

// TestBuildConversationHistory tests conversion to chat format
func TestBuildConversationHistory(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "First question"},
		{
			Role: "assistant",
			Stage1: []Stage1Response{
				{Model: "model/a", Response: "Individual answer that must not be replayed."},
			},
			Stage3: &Stage3Response{Model: "chair", Response: "Synthesized answer."},
		},
		{Role: "user", Content: "Second question"},
		{
			Role:             "assistant",
			ChairmanResponse: &Stage3Response{Model: "chair", Response: "Direct answer."},
		},
	}

	history := BuildConversationHistory(messages)

	expected := []OpenRouterMessage{
		{Role: "user", Content: "First question"},
		{Role: "assistant", Content: "Synthesized answer."},
		{Role: "user", Content: "Second question"},
		{Role: "assistant", Content: "Direct answer."},
	}

	if len(history) != len(expected) {
		t.Fatalf("Expected %d history entries, got %d", len(expected), len(history))
	}
	for i := range expected {
		if history[i] != expected[i] {
			t.Errorf("History[%d] = %+v, want %+v", i, history[i], expected[i])
		}
	}
}

// TestBuildConversationHistorySkipsIncomplete tests that assistant messages
// without a final response contribute nothing
func TestBuildConversationHistorySkipsIncomplete(t *testing.T) {
	messages := []Message{
		{Role: "user", Content: "Question"},
		{Role: "assistant"}, // No stage3 and no chairman response
	}

	history := BuildConversationHistory(messages)
	if len(history) != 1 {
		t.Errorf("Expected 1 history entry, got %d", len(history))
	}
}
