package main

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

const (
	// synthesisFailedMessage is returned as the Stage 3 response when the
	// chairman invocation fails. The pipeline degrades instead of erroring.
	synthesisFailedMessage = "Error: Unable to generate final synthesis."

	// allModelsFailedMessage is returned as the terminal result when every
	// council member fails in Stage 1.
	allModelsFailedMessage = "All models failed to respond. Please try again."

	// historySummaryMaxTurns bounds how many recent user/assistant turn pairs
	// go into the condensed context for Stage 2 and Stage 3 prompts.
	historySummaryMaxTurns = 3
)

// councilPersonaPrompts resolves the persona system prompt for each council
// member for the given stage. Members without an assignment (or with an
// assignment that no longer resolves to a stored personality) get no entry.
func councilPersonaPrompts(pc *PersonalityConfig, members []string, stage string) map[string]string {
	prompts := make(map[string]string)
	if pc == nil || len(pc.CouncilAssignments) == 0 {
		return prompts
	}

	for _, model := range members {
		personalityID, ok := pc.CouncilAssignments[model]
		if !ok || personalityID == "" {
			continue
		}
		personality, err := GetPersonality(personalityID)
		if err != nil {
			log.Printf("Failed to load personality %s for %s: %v", personalityID, model, err)
			continue
		}
		if prompt := BuildPersonalityPrompt(personality, stage); prompt != "" {
			prompts[model] = prompt
		}
	}

	return prompts
}

// Stage1CollectResponses collects individual responses from all council models.
// Each model independently answers the user's question, optionally primed with
// its assigned persona and the prior conversation history. Failed members are
// omitted; results follow the configured member order so later label
// assignment stays deterministic.
func Stage1CollectResponses(ctx context.Context, cfg CouncilConfig, userQuery string, history []OpenRouterMessage, pc *PersonalityConfig) ([]Stage1Response, error) {
	// Base messages: history (if any) followed by the new user turn
	baseMessages := make([]OpenRouterMessage, 0, len(history)+1)
	baseMessages = append(baseMessages, history...)
	baseMessages = append(baseMessages, OpenRouterMessage{Role: "user", Content: userQuery})

	personaPrompts := councilPersonaPrompts(pc, cfg.Members, "response")

	responses, err := QueryModelsParallelFunc(ctx, cfg.Members, func(model string) []OpenRouterMessage {
		prompt, ok := personaPrompts[model]
		if !ok {
			return baseMessages
		}
		messages := make([]OpenRouterMessage, 0, len(baseMessages)+1)
		messages = append(messages, OpenRouterMessage{Role: "system", Content: prompt})
		messages = append(messages, baseMessages...)
		return messages
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	// Only include successful responses, in configured member order
	var stage1Results []Stage1Response
	for _, model := range cfg.Members {
		if response := responses[model]; response != nil {
			stage1Results = append(stage1Results, Stage1Response{
				Model:    model,
				Response: response.Content,
			})
		}
	}

	return stage1Results, nil
}

// Stage2CollectRankings collects rankings from each model on anonymized
// responses. Models evaluate each other's answers without knowing which model
// produced which response. Returns the rankings plus the label-to-model
// mapping built from the Stage 1 ordering; that mapping is the only bridge
// back from labels to identities and must not be rebuilt from anything else.
func Stage2CollectRankings(ctx context.Context, cfg CouncilConfig, userQuery string, stage1Results []Stage1Response, conversationContext string, pc *PersonalityConfig) ([]Stage2Ranking, map[string]string, error) {
	// Anonymized labels (A, B, C...) assigned by Stage 1 position.
	// Labels past Z are unsupported; council rosters stay far below 26.
	labelToModel := make(map[string]string)
	var responsesText strings.Builder

	for i, result := range stage1Results {
		label := string(rune('A' + i))
		labelKey := fmt.Sprintf("Response %s", label)
		labelToModel[labelKey] = result.Model

		responsesText.WriteString(fmt.Sprintf("Response %s:\n%s\n\n", label, result.Response))
	}

	rankingPrompt := fmt.Sprintf(`%sYou are evaluating different responses to the following question:

Question: %s

Here are the responses from different models (anonymized):

%s

Your task:
1. First, evaluate each response individually. For each response, explain what it does well and what it does poorly.
2. Then, at the very end of your response, provide a final ranking.

IMPORTANT: Your final ranking MUST be formatted EXACTLY as follows:
- Start with the line "FINAL RANKING:" (all caps, with colon)
- Then list the responses from best to worst as a numbered list
- Each line should be: number, period, space, then ONLY the response label (e.g., "1. Response A")
- Do not add any other text or explanations in the ranking section

Example of the correct format for your ENTIRE response:

Response A provides good detail on X but misses Y...
Response B is accurate but lacks depth on Z...
Response C offers the most comprehensive answer...

FINAL RANKING:
1. Response C
2. Response A
3. Response B

Now provide your evaluation and ranking:`, contextSection(conversationContext), userQuery, responsesText.String())

	personaPrompts := councilPersonaPrompts(pc, cfg.Members, "ranking")

	responses, err := QueryModelsParallelFunc(ctx, cfg.Members, func(model string) []OpenRouterMessage {
		messages := make([]OpenRouterMessage, 0, 2)
		if prompt, ok := personaPrompts[model]; ok {
			messages = append(messages, OpenRouterMessage{Role: "system", Content: prompt})
		}
		messages = append(messages, OpenRouterMessage{Role: "user", Content: rankingPrompt})
		return messages
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query models for rankings: %w", err)
	}

	// Only include successful rankings, in configured member order
	var stage2Results []Stage2Ranking
	for _, model := range cfg.Members {
		if response := responses[model]; response != nil {
			fullText := response.Content
			stage2Results = append(stage2Results, Stage2Ranking{
				Model:         model,
				Ranking:       fullText,
				ParsedRanking: ParseRankingFromText(fullText),
			})
		}
	}

	return stage2Results, labelToModel, nil
}

// contextSection renders the optional follow-up context block prepended to
// Stage 2 and Stage 3 prompts. Empty context yields an empty string.
func contextSection(conversationContext string) string {
	if conversationContext == "" {
		return ""
	}
	return fmt.Sprintf(`CONVERSATION CONTEXT:
This is a follow-up question. Here is the recent conversation history:
%s

`, conversationContext)
}

// Stage3SynthesizeFinal synthesizes the final response using the chairman
// model, considering both the individual answers and the peer rankings. A
// failed chairman invocation never propagates: the result then carries a
// fixed error sentinel with the chairman still named as the model.
func Stage3SynthesizeFinal(ctx context.Context, cfg CouncilConfig, userQuery string, stage1Results []Stage1Response, stage2Results []Stage2Ranking, conversationContext string, chairmanPersonality *Personality) *Stage3Response {
	// Build comprehensive context with all stage1 results
	var stage1Text strings.Builder
	for _, result := range stage1Results {
		stage1Text.WriteString(fmt.Sprintf("Model: %s\nResponse: %s\n\n", result.Model, result.Response))
	}

	// Build stage2 rankings text
	var stage2Text strings.Builder
	for _, result := range stage2Results {
		stage2Text.WriteString(fmt.Sprintf("Model: %s\nRanking: %s\n\n", result.Model, result.Ranking))
	}

	chairmanPrompt := fmt.Sprintf(`%sYou are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.

Original Question: %s

STAGE 1 - Individual Responses:
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this information into a single, comprehensive, accurate answer to the user's original question. Consider:
- The individual responses and their insights
- The peer rankings and what they reveal about response quality
- Any patterns of agreement or disagreement

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, contextSection(conversationContext), userQuery, stage1Text.String(), stage2Text.String())

	messages := make([]OpenRouterMessage, 0, 2)
	if prompt := BuildPersonalityPrompt(chairmanPersonality, "synthesis"); prompt != "" {
		messages = append(messages, OpenRouterMessage{Role: "system", Content: prompt})
	}
	messages = append(messages, OpenRouterMessage{Role: "user", Content: chairmanPrompt})

	response, err := QueryModel(ctx, cfg.Chairman, messages, ModelQueryTimeout)
	if err != nil {
		log.Printf("Chairman model query failed: %v", err)
		return &Stage3Response{
			Model:    cfg.Chairman,
			Response: synthesisFailedMessage,
		}
	}

	return &Stage3Response{
		Model:    cfg.Chairman,
		Response: response.Content,
	}
}

var (
	numberedRankingPattern = regexp.MustCompile(`\d+\.\s*Response [A-Z]`)
	responseLabelPattern   = regexp.MustCompile(`Response [A-Z]`)
)

// ParseRankingFromText extracts the ranking from a model's response text,
// most-preferred first. When "FINAL RANKING:" is present only the text after
// the first marker is considered: numbered entries ("1. Response A") first,
// otherwise any "Response X" occurrences in that tail, even if that yields
// nothing. Labels mentioned only in the critique prose before the marker must
// never count as a ranking. Without the marker, any "Response X" occurrences
// anywhere are used. Duplicated labels are kept as-is; aggregation tolerates
// them. The numbered pattern deliberately accepts only "N. Response X" -
// variants like "N) Response X" drop to the weaker tail scan.
func ParseRankingFromText(rankingText string) []string {
	if strings.Contains(rankingText, "FINAL RANKING:") {
		parts := strings.SplitN(rankingText, "FINAL RANKING:", 2)
		rankingSection := parts[1]

		// Try numbered list format first
		numberedMatches := numberedRankingPattern.FindAllString(rankingSection, -1)
		if len(numberedMatches) > 0 {
			var results []string
			for _, match := range numberedMatches {
				if resp := responseLabelPattern.FindString(match); resp != "" {
					results = append(results, resp)
				}
			}
			return results
		}

		// Fallback: any "Response X" patterns after the marker, in order.
		// The scan stays confined to the tail; an empty result is final.
		return responseLabelPattern.FindAllString(rankingSection, -1)
	}

	// No marker: any "Response X" patterns anywhere, in order
	return responseLabelPattern.FindAllString(rankingText, -1)
}

// CalculateAggregateRankings computes the consensus ordering across all
// rankers. Each ranking's raw text is re-parsed, label positions are resolved
// through labelToModel, and every model with at least one observation gets the
// arithmetic mean of its 1-based positions, rounded to 2 decimal places.
// Models no ranker ever mentioned are omitted. Sorted ascending by average
// rank; equal averages keep first-observed order.
func CalculateAggregateRankings(stage2Results []Stage2Ranking, labelToModel map[string]string) []AggregateRanking {
	// Track positions per model, preserving first-observation order so ties
	// come out deterministic.
	modelPositions := make(map[string][]float64)
	var modelOrder []string

	for _, ranking := range stage2Results {
		parsed := ParseRankingFromText(ranking.Ranking)

		for position, label := range parsed {
			modelName, ok := labelToModel[label]
			if !ok {
				continue
			}
			if _, seen := modelPositions[modelName]; !seen {
				modelOrder = append(modelOrder, modelName)
			}
			modelPositions[modelName] = append(modelPositions[modelName], float64(position+1))
		}
	}

	var aggregate []AggregateRanking
	for _, model := range modelOrder {
		positions := modelPositions[model]
		avgRank, err := stats.Mean(positions)
		if err != nil {
			continue
		}
		rounded, _ := stats.Round(avgRank, 2)

		aggregate = append(aggregate, AggregateRanking{
			Model:         model,
			AverageRank:   rounded,
			RankingsCount: len(positions),
		})
	}

	// Sort by average rank (lower is better), stable across ties
	sort.SliceStable(aggregate, func(i, j int) bool {
		return aggregate[i].AverageRank < aggregate[j].AverageRank
	})

	return aggregate
}

// FormatHistorySummary formats recent conversation history as a brief summary
// string for Stage 2 and Stage 3 context blocks. Keeps the last maxTurns
// user/assistant pairs and truncates long messages.
func FormatHistorySummary(history []OpenRouterMessage, maxTurns int) string {
	recent := history
	if limit := maxTurns * 2; len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}

	var lines []string
	for _, msg := range recent {
		role := "Assistant"
		if msg.Role == "user" {
			role = "User"
		}
		content := msg.Content
		if runes := []rune(content); len(runes) > 500 {
			content = string(runes[:500]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, content))
	}

	return strings.Join(lines, "\n")
}

// ChatWithChairman runs a direct conversation with the chairman model only.
// Used for follow-up questions that don't need full council deliberation.
func ChatWithChairman(ctx context.Context, cfg CouncilConfig, userQuery string, history []OpenRouterMessage) *Stage3Response {
	messages := make([]OpenRouterMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, OpenRouterMessage{Role: "user", Content: userQuery})

	response, err := QueryModel(ctx, cfg.Chairman, messages, ModelQueryTimeout)
	if err != nil {
		log.Printf("Chairman chat failed: %v", err)
		return &Stage3Response{
			Model:    cfg.Chairman,
			Response: "Failed to get response",
		}
	}

	return &Stage3Response{
		Model:    cfg.Chairman,
		Response: response.Content,
	}
}

// GenerateConversationTitle generates a short title for a conversation.
// Uses a fast model to create a 3-5 word summary of the user's query.
func GenerateConversationTitle(ctx context.Context, userQuery string) (string, error) {
	titlePrompt := fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, userQuery)

	messages := []OpenRouterMessage{
		{Role: "user", Content: titlePrompt},
	}

	response, err := QueryModel(ctx, TitleModel, messages, TitleGenTimeout)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title := strings.TrimSpace(response.Content)

	// Clean up the title - remove quotes
	title = strings.Trim(title, "\"'")

	// Truncate if too long, counting runes so multi-byte text isn't split
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}

	return title, nil
}

// RunFullCouncil runs the complete 3-stage council process: parallel member
// responses, anonymized peer ranking, aggregation and chairman synthesis.
// If ShuffleEachTurn is set, a fresh persona assignment is drawn for this call
// only. If Stage 1 yields zero successes, the pipeline short-circuits with a
// chairman-attributed error result and Stage 2/3 are never invoked. A
// chairman failure degrades inside Stage 3; it never surfaces as an error.
func RunFullCouncil(ctx context.Context, cfg CouncilConfig, userQuery string, history []OpenRouterMessage, pc *PersonalityConfig) ([]Stage1Response, []Stage2Ranking, Stage3Response, Metadata, error) {
	// Re-shuffle persona assignments for this turn only if requested
	effectiveConfig := pc
	if pc != nil && pc.ShuffleEachTurn {
		personalities, err := ListPersonalities("")
		if err != nil {
			log.Printf("Failed to list personalities for shuffle: %v", err)
		} else if len(personalities) > 0 {
			personalityIDs := make([]string, len(personalities))
			for i, p := range personalities {
				personalityIDs[i] = p.ID
			}

			shuffled := *pc
			shuffled.CouncilAssignments = ShuffleAssignments(cfg.Members, personalityIDs)
			effectiveConfig = &shuffled
		}
	}

	// Condensed context for Stage 2 and Stage 3 prompts
	contextSummary := ""
	if len(history) > 0 {
		contextSummary = FormatHistorySummary(history, historySummaryMaxTurns)
	}

	// Stage 1: collect individual responses
	stage1Results, err := Stage1CollectResponses(ctx, cfg, userQuery, history, effectiveConfig)
	if err != nil {
		return nil, nil, Stage3Response{}, Metadata{}, fmt.Errorf("stage 1 failed: %w", err)
	}

	// If no models responded successfully, short-circuit: Stage 2 and Stage 3
	// are never invoked.
	if len(stage1Results) == 0 {
		return []Stage1Response{}, []Stage2Ranking{}, Stage3Response{
			Model:    cfg.Chairman,
			Response: allModelsFailedMessage,
		}, Metadata{}, nil
	}

	// Stage 2: collect rankings
	stage2Results, labelToModel, err := Stage2CollectRankings(ctx, cfg, userQuery, stage1Results, contextSummary, effectiveConfig)
	if err != nil {
		return nil, nil, Stage3Response{}, Metadata{}, fmt.Errorf("stage 2 failed: %w", err)
	}

	// Calculate aggregate rankings
	aggregateRankings := CalculateAggregateRankings(stage2Results, labelToModel)

	// Resolve chairman personality if configured
	var chairmanPersonality *Personality
	if effectiveConfig != nil && effectiveConfig.ChairmanPersonalityID != "" {
		chairmanPersonality, err = GetPersonality(effectiveConfig.ChairmanPersonalityID)
		if err != nil {
			log.Printf("Failed to load chairman personality: %v", err)
			chairmanPersonality = nil
		}
	}

	// Stage 3: synthesize final answer (runs even with zero rankings)
	stage3Result := Stage3SynthesizeFinal(ctx, cfg, userQuery, stage1Results, stage2Results, contextSummary, chairmanPersonality)

	metadata := Metadata{
		LabelToModel:      labelToModel,
		AggregateRankings: aggregateRankings,
	}
	if effectiveConfig != nil && len(effectiveConfig.CouncilAssignments) > 0 {
		metadata.PersonalityAssignments = effectiveConfig.CouncilAssignments
	}

	return stage1Results, stage2Results, *stage3Result, metadata, nil
}
