package main

import "time"

// Message represents a single message in a conversation.
// User messages carry Content; assistant messages carry either the full
// three-stage council output or a chairman-only response.
type Message struct {
	Role             string           `json:"role"`
	Content          string           `json:"content,omitempty"`
	Stage1           []Stage1Response `json:"stage1,omitempty"`
	Stage2           []Stage2Ranking  `json:"stage2,omitempty"`
	Stage3           *Stage3Response  `json:"stage3,omitempty"`
	ChairmanResponse *Stage3Response  `json:"chairman_response,omitempty"`
}

// Conversation represents a full conversation with all messages
type Conversation struct {
	ID                string             `json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	Title             string             `json:"title"`
	Messages          []Message          `json:"messages"`
	PersonalityConfig *PersonalityConfig `json:"personality_config,omitempty"`
}

// ConversationMetadata represents conversation list metadata
type ConversationMetadata struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
}

// Stage1Response represents a single model's response in Stage 1
type Stage1Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// Stage2Ranking represents a model's ranking of the anonymized responses
type Stage2Ranking struct {
	Model         string   `json:"model"`
	Ranking       string   `json:"ranking"`
	ParsedRanking []string `json:"parsed_ranking"`
}

// Stage3Response represents the chairman's final synthesis
type Stage3Response struct {
	Model    string `json:"model"`
	Response string `json:"response"`
}

// AggregateRanking represents the aggregate ranking across all models
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageRank   float64 `json:"average_rank"`
	RankingsCount int     `json:"rankings_count"`
}

// Metadata contains additional information about the council process
type Metadata struct {
	LabelToModel           map[string]string  `json:"label_to_model"`
	AggregateRankings      []AggregateRanking `json:"aggregate_rankings"`
	PersonalityAssignments map[string]string  `json:"personality_assignments_used,omitempty"`
}

// Personality is a named behavioral profile that can be assigned to council
// members or the chairman for a conversation.
type Personality struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"` // "simple" or "detailed"
	Role               string   `json:"role"`
	Expertise          []string `json:"expertise"`
	Perspective        string   `json:"perspective"`
	CommunicationStyle string   `json:"communication_style"`
}

// PersonalityConfig configures personality assignments for a conversation.
// CouncilAssignments maps model identifiers to personality IDs. When
// ShuffleEachTurn is set, a fresh random assignment is drawn on every turn
// and the stored CouncilAssignments are ignored for that turn.
type PersonalityConfig struct {
	Mode                  string            `json:"mode"` // "all_same", "each_different" or "none"
	CouncilAssignments    map[string]string `json:"council_assignments,omitempty"`
	ChairmanPersonalityID string            `json:"chairman_personality_id,omitempty"`
	ShuffleEachTurn       bool              `json:"shuffle_each_turn,omitempty"`
}

// OpenRouterMessage represents a message for OpenRouter API
type OpenRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OpenRouterRequest represents a request to OpenRouter API
type OpenRouterRequest struct {
	Model    string              `json:"model"`
	Messages []OpenRouterMessage `json:"messages"`
}

// OpenRouterResponse represents a response from OpenRouter API
type OpenRouterResponse struct {
	Content          string      `json:"content"`
	ReasoningDetails interface{} `json:"reasoning_details,omitempty"`
}

// OpenRouterAPIResponse represents the full API response structure
type OpenRouterAPIResponse struct {
	Choices []struct {
		Message struct {
			Content          string      `json:"content"`
			ReasoningDetails interface{} `json:"reasoning_details,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// CreateConversationRequest represents a request to create a new conversation
type CreateConversationRequest struct {
	PersonalityConfig *PersonalityConfig `json:"personality_config,omitempty"`
}

// CreatePersonalityRequest represents a request to create or update a personality
type CreatePersonalityRequest struct {
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	Type               string   `json:"type"`
	Expertise          []string `json:"expertise"`
	Perspective        string   `json:"perspective"`
	CommunicationStyle string   `json:"communication_style"`
}

// SendMessageRequest represents a request to send a message.
// Mode selects "council" or "chairman"; the first message of a conversation
// always runs the full council regardless of the requested mode.
type SendMessageRequest struct {
	Content string `json:"content"`
	Mode    string `json:"mode,omitempty"`
}

// SendMessageResponse represents the response after a full council turn
type SendMessageResponse struct {
	Stage1   []Stage1Response `json:"stage1"`
	Stage2   []Stage2Ranking  `json:"stage2"`
	Stage3   Stage3Response   `json:"stage3"`
	Metadata Metadata         `json:"metadata"`
	Mode     string           `json:"mode"`
}

// ChairmanMessageResponse represents the response after a chairman-only turn
type ChairmanMessageResponse struct {
	ChairmanResponse Stage3Response `json:"chairman_response"`
	Mode             string         `json:"mode"`
}
