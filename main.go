package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	// Load configuration
	LoadConfig()

	// Install seed personalities on first run
	if seeded, err := InitializeSeedPersonalities(); err != nil {
		log.Printf("Failed to initialize seed personalities: %v", err)
	} else if seeded {
		log.Println("Installed seed personalities")
	}

	router := setupRouter()

	// Start server
	log.Println("Starting LLM Council backend on port 8001...")
	if err := router.Run(":8001"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the Gin router with middleware and all routes.
func setupRouter() *gin.Engine {
	router := gin.Default()

	// Request size limit middleware
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxRequestBodySize)
		c.Next()
	})

	// CORS middleware with dynamic origin validation
	router.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			// In production, use environment-configured origins
			if len(CORSAllowedOrigins) > 0 && CORSAllowedOrigins[0] != "" {
				for _, allowedOrigin := range CORSAllowedOrigins {
					if origin == allowedOrigin {
						return true
					}
				}
				return false
			}
			// In development, allow any localhost/127.0.0.1 origin
			return len(origin) > 0 && (len(origin) >= 16 && origin[:16] == "http://localhost" ||
				len(origin) >= 14 && origin[:14] == "http://127.0.0")
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
	}))

	// Routes
	router.GET("/", healthCheck)
	router.GET("/api/config", getConfigHandler)
	router.GET("/api/personalities", listPersonalitiesHandler)
	router.POST("/api/personalities", createPersonalityHandler)
	router.GET("/api/personalities/:id", getPersonalityHandler)
	router.PUT("/api/personalities/:id", updatePersonalityHandler)
	router.DELETE("/api/personalities/:id", deletePersonalityHandler)
	router.GET("/api/conversations", listConversationsHandler)
	router.POST("/api/conversations", createConversationHandler)
	router.GET("/api/conversations/:id", getConversationHandler)
	router.POST("/api/conversations/:id/message", sendMessageHandler)
	router.POST("/api/conversations/:id/message/stream", sendMessageStreamHandler)
	router.POST("/api/fetch-url", fetchURLHandler)

	return router
}

// healthCheck returns a simple health check response.
// GET / - Returns service status information.
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "LLM Council API",
	})
}

// getConfigHandler returns the council configuration.
// GET /api/config - Returns the council roster and chairman model.
func getConfigHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"council_models": CouncilModels,
		"chairman_model": ChairmanModel,
	})
}

// listPersonalitiesHandler lists all personalities.
// GET /api/personalities?type=detailed - Optional type filter.
func listPersonalitiesHandler(c *gin.Context) {
	personalities, err := ListPersonalities(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list personalities: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, personalities)
}

// getPersonalityHandler gets a specific personality by ID.
// GET /api/personalities/:id
func getPersonalityHandler(c *gin.Context) {
	personality, err := GetPersonality(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get personality: %v", err),
		})
		return
	}
	if personality == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Personality not found"})
		return
	}

	c.JSON(http.StatusOK, personality)
}

// createPersonalityHandler creates a new personality.
// POST /api/personalities - Returns 400 when name or role is missing.
func createPersonalityHandler(c *gin.Context) {
	var request CreatePersonalityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	personality, err := CreatePersonality(request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, personality)
}

// updatePersonalityHandler updates an existing personality.
// PUT /api/personalities/:id
func updatePersonalityHandler(c *gin.Context) {
	var request CreatePersonalityRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	personality, err := UpdatePersonality(c.Param("id"), request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to update personality: %v", err),
		})
		return
	}
	if personality == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Personality not found"})
		return
	}

	c.JSON(http.StatusOK, personality)
}

// deletePersonalityHandler deletes a personality.
// DELETE /api/personalities/:id
func deletePersonalityHandler(c *gin.Context) {
	deleted, err := DeletePersonality(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to delete personality: %v", err),
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Personality not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": c.Param("id")})
}

// listConversationsHandler lists all conversations with metadata only.
// GET /api/conversations - Returns array of conversation metadata sorted by date.
func listConversationsHandler(c *gin.Context) {
	conversations, err := ListConversations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to list conversations: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// createConversationHandler creates a new conversation.
// POST /api/conversations - Generates a new UUID and creates an empty
// conversation, optionally storing a personality configuration.
func createConversationHandler(c *gin.Context) {
	var request CreateConversationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Invalid request: %v", err),
			})
			return
		}
	}

	conversationID := uuid.New().String()

	conversation, err := CreateConversation(conversationID, request.PersonalityConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to create conversation: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// getConversationHandler gets a specific conversation by ID.
// GET /api/conversations/:id - Returns full conversation including all messages.
func getConversationHandler(c *gin.Context) {
	conversationID := c.Param("id")

	conversation, err := GetConversation(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}

	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// resolveMode picks the handling mode for a turn. The first message always
// runs the full council; later turns default to chairman-only chat.
func resolveMode(isFirstMessage bool, requested string) string {
	if isFirstMessage {
		return "council"
	}
	if requested == "council" {
		return "council"
	}
	return "chairman"
}

// sendMessageHandler sends a message and routes it to the full council or a
// chairman-only chat based on the requested mode.
// POST /api/conversations/:id/message
func sendMessageHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := GetConversation(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	// Build history before adding the new message
	history := BuildConversationHistory(conversation.Messages)
	isFirstMessage := len(conversation.Messages) == 0
	mode := resolveMode(isFirstMessage, request.Mode)

	if err := AddUserMessage(conversationID, request.Content); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add user message: %v", err),
		})
		return
	}

	ctx := c.Request.Context()

	// Generate title if first message (run in background)
	if isFirstMessage {
		go generateTitleInBackground(conversationID, request.Content)
	}

	if mode == "chairman" {
		result := ChatWithChairman(ctx, DefaultCouncilConfig(), request.Content, history)
		if err := AddChairmanMessage(conversationID, *result); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": fmt.Sprintf("Failed to add chairman message: %v", err),
			})
			return
		}

		c.JSON(http.StatusOK, ChairmanMessageResponse{
			ChairmanResponse: *result,
			Mode:             "chairman",
		})
		return
	}

	// Full 3-stage pipeline. History is only passed on follow-up turns.
	var councilHistory []OpenRouterMessage
	if !isFirstMessage {
		councilHistory = history
	}

	stage1, stage2, stage3, metadata, err := RunFullCouncil(ctx, DefaultCouncilConfig(), request.Content, councilHistory, conversation.PersonalityConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Council process failed: %v", err),
		})
		return
	}

	if err := AddAssistantMessage(conversationID, stage1, stage2, stage3); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to add assistant message: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, SendMessageResponse{
		Stage1:   stage1,
		Stage2:   stage2,
		Stage3:   stage3,
		Metadata: metadata,
		Mode:     "council",
	})
}

// generateTitleInBackground generates a conversation title and stores it,
// falling back to a generic title on failure.
func generateTitleInBackground(conversationID, content string) {
	title, err := GenerateConversationTitle(context.Background(), content)
	if err != nil {
		log.Printf("Failed to generate title: %v", err)
		title = "New Conversation"
	}
	if err := UpdateConversationTitle(conversationID, title); err != nil {
		log.Printf("Failed to update title: %v", err)
	}
}

// sendMessageStreamHandler sends a message and streams progress via SSE.
// POST /api/conversations/:id/message/stream - Events: stage1_start,
// stage1_complete, stage2_start, stage2_complete (with interim metadata),
// stage3_start, stage3_complete, chairman_start, chairman_complete,
// title_complete, complete, error.
func sendMessageStreamHandler(c *gin.Context) {
	conversationID := c.Param("id")

	var request SendMessageRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	conversation, err := GetConversation(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to get conversation: %v", err),
		})
		return
	}
	if conversation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	// Build history before adding the new message
	history := BuildConversationHistory(conversation.Messages)
	isFirstMessage := len(conversation.Messages) == 0
	mode := resolveMode(isFirstMessage, request.Mode)

	if err := AddUserMessage(conversationID, request.Content); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to add user message: %v", err))
		return
	}

	ctx := c.Request.Context()
	cfg := DefaultCouncilConfig()

	if mode == "chairman" {
		sendSSEEvent(c, gin.H{"type": "chairman_start"})

		result := ChatWithChairman(ctx, cfg, request.Content, history)
		if err := AddChairmanMessage(conversationID, *result); err != nil {
			sendSSEError(c, fmt.Sprintf("Failed to save message: %v", err))
			return
		}

		sendSSEEvent(c, gin.H{"type": "chairman_complete", "data": result})
		sendSSEEvent(c, gin.H{"type": "complete", "mode": "chairman"})
		return
	}

	// Start title generation in background if first message
	var titleChan chan string
	if isFirstMessage {
		titleChan = make(chan string, 1)
		go func() {
			title, err := GenerateConversationTitle(context.Background(), request.Content)
			if err != nil {
				log.Printf("Failed to generate title: %v", err)
				UpdateConversationTitle(conversationID, "New Conversation")
			} else {
				UpdateConversationTitle(conversationID, title)
				titleChan <- title
			}
			close(titleChan)
		}()
	}

	// Condensed context for stages 2 and 3
	var councilHistory []OpenRouterMessage
	if !isFirstMessage {
		councilHistory = history
	}
	contextSummary := ""
	if len(councilHistory) > 0 {
		contextSummary = FormatHistorySummary(councilHistory, historySummaryMaxTurns)
	}

	pc := conversation.PersonalityConfig

	// Stage 1
	sendSSEEvent(c, gin.H{"type": "stage1_start"})
	stage1, err := Stage1CollectResponses(ctx, cfg, request.Content, councilHistory, pc)
	if err != nil {
		sendSSEError(c, fmt.Sprintf("Stage 1 failed: %v", err))
		return
	}
	sendSSEEvent(c, gin.H{"type": "stage1_complete", "data": stage1})

	if len(stage1) == 0 {
		sendSSEError(c, allModelsFailedMessage)
		return
	}

	// Stage 2
	sendSSEEvent(c, gin.H{"type": "stage2_start"})
	stage2, labelToModel, err := Stage2CollectRankings(ctx, cfg, request.Content, stage1, contextSummary, pc)
	if err != nil {
		sendSSEError(c, fmt.Sprintf("Stage 2 failed: %v", err))
		return
	}
	aggregateRankings := CalculateAggregateRankings(stage2, labelToModel)
	sendSSEEvent(c, gin.H{
		"type": "stage2_complete",
		"data": stage2,
		"metadata": gin.H{
			"label_to_model":     labelToModel,
			"aggregate_rankings": aggregateRankings,
		},
	})

	// Stage 3
	sendSSEEvent(c, gin.H{"type": "stage3_start"})
	var chairmanPersonality *Personality
	if pc != nil && pc.ChairmanPersonalityID != "" {
		chairmanPersonality, _ = GetPersonality(pc.ChairmanPersonalityID)
	}
	stage3 := Stage3SynthesizeFinal(ctx, cfg, request.Content, stage1, stage2, contextSummary, chairmanPersonality)
	sendSSEEvent(c, gin.H{"type": "stage3_complete", "data": stage3})

	// Wait for title if it was being generated
	if titleChan != nil {
		if title := <-titleChan; title != "" {
			sendSSEEvent(c, gin.H{"type": "title_complete", "data": gin.H{"title": title}})
		}
	}

	if err := AddAssistantMessage(conversationID, stage1, stage2, *stage3); err != nil {
		sendSSEError(c, fmt.Sprintf("Failed to save message: %v", err))
		return
	}

	// Send completion event
	sendSSEEvent(c, gin.H{"type": "complete", "mode": "council"})
}

// sendSSEEvent sends a Server-Sent Event.
// Marshals data to JSON and writes as SSE format with "data: " prefix.
func sendSSEEvent(c *gin.Context, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal SSE event: %v", err)
		return
	}
	c.Writer.WriteString(fmt.Sprintf("data: %s\n\n", string(jsonData)))
	c.Writer.Flush()
}

// sendSSEError sends an error event via SSE.
func sendSSEError(c *gin.Context, message string) {
	sendSSEEvent(c, gin.H{"type": "error", "message": message})
}

// fetchURLHandler fetches and extracts readable content from a given URL.
// POST /api/fetch-url - Body: {"url": "https://..."}
func fetchURLHandler(c *gin.Context) {
	var request struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	content, err := FetchURLContent(c.Request.Context(), request.URL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": fmt.Sprintf("Failed to fetch URL content: %v", err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"content": content})
}
