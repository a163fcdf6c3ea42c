package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// SeedPersonalities are installed with fixed IDs when the personality store
// is empty, so a fresh installation has something to assign immediately.
var SeedPersonalities = []Personality{
	{
		ID:                 "seed-systems-architect",
		Name:               "Systems Architect",
		Type:               "detailed",
		Role:               "You are a senior systems architect with 20+ years of experience designing large-scale distributed systems. You've led architecture for Fortune 500 companies and have deep expertise in making systems that scale, remain maintainable, and minimize technical debt.",
		Expertise:          []string{"distributed systems", "scalability", "system design", "technical debt management", "microservices"},
		Perspective:        "Evaluate solutions for maintainability, scalability, and long-term technical debt implications. Consider operational complexity and failure modes.",
		CommunicationStyle: "Technical but accessible. Uses architectural diagrams conceptually, references industry patterns, and always considers trade-offs.",
	},
	{
		ID:                 "seed-value-investor",
		Name:               "Value Investor",
		Type:               "detailed",
		Role:               "You are a seasoned value investor in the tradition of Benjamin Graham and Warren Buffett. You focus on fundamental analysis, margin of safety, and long-term wealth building. You're skeptical of hype and always look for intrinsic value.",
		Expertise:          []string{"fundamental analysis", "risk management", "portfolio theory", "behavioral finance", "valuation"},
		Perspective:        "Evaluate ideas through the lens of long-term value creation, risk-adjusted returns, and margin of safety. Be skeptical of speculation and short-term thinking.",
		CommunicationStyle: "Patient and methodical. Uses concrete examples, historical analogies, and always quantifies risk when possible.",
	},
	{
		ID:                 "seed-academic-philosopher",
		Name:               "Academic Philosopher",
		Type:               "detailed",
		Role:               "You are a philosophy professor specializing in logic, epistemology, and ethics. You've spent decades teaching critical thinking and have published extensively on reasoning and argumentation. You value intellectual rigor above all.",
		Expertise:          []string{"logic", "epistemology", "ethics", "critical thinking", "argumentation theory"},
		Perspective:        "Evaluate arguments for logical validity, sound premises, and hidden assumptions. Consider multiple philosophical frameworks and acknowledge genuine uncertainty.",
		CommunicationStyle: "Precise and nuanced. Defines terms carefully, acknowledges counterarguments, and distinguishes between what is known and what is assumed.",
	},
}

// EnsurePersonalitiesDir ensures the personalities data directory exists.
func EnsurePersonalitiesDir() error {
	return os.MkdirAll(PersonalitiesDir, 0755)
}

// GetPersonalityPath returns the file path for a personality.
func GetPersonalityPath(personalityID string) string {
	return filepath.Join(PersonalitiesDir, personalityID+".json")
}

// CreatePersonality creates a new personality with a generated ID and saves it.
// Name and role are required; returns an error if either is blank.
func CreatePersonality(request CreatePersonalityRequest) (*Personality, error) {
	if strings.TrimSpace(request.Name) == "" {
		return nil, fmt.Errorf("personality name is required")
	}
	if strings.TrimSpace(request.Role) == "" {
		return nil, fmt.Errorf("personality role is required")
	}

	personalityType := request.Type
	if personalityType == "" {
		personalityType = "detailed"
	}

	expertise := request.Expertise
	if expertise == nil {
		expertise = []string{}
	}

	personality := &Personality{
		ID:                 uuid.New().String(),
		Name:               strings.TrimSpace(request.Name),
		Type:               personalityType,
		Role:               strings.TrimSpace(request.Role),
		Expertise:          expertise,
		Perspective:        request.Perspective,
		CommunicationStyle: request.CommunicationStyle,
	}

	if err := SavePersonality(personality); err != nil {
		return nil, err
	}

	return personality, nil
}

// SavePersonality writes a personality to storage as formatted JSON.
func SavePersonality(personality *Personality) error {
	if err := EnsurePersonalitiesDir(); err != nil {
		return fmt.Errorf("failed to create personalities directory: %w", err)
	}

	data, err := json.MarshalIndent(personality, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal personality: %w", err)
	}

	path := GetPersonalityPath(personality.ID)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write personality file: %w", err)
	}

	return nil
}

// GetPersonality loads a personality from storage by ID.
// Returns nil without error if the personality doesn't exist.
func GetPersonality(personalityID string) (*Personality, error) {
	path := GetPersonalityPath(personalityID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil // Not found, return nil without error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read personality file: %w", err)
	}

	var personality Personality
	if err := json.Unmarshal(data, &personality); err != nil {
		return nil, fmt.Errorf("failed to parse personality JSON: %w", err)
	}

	return &personality, nil
}

// UpdatePersonality overwrites the updatable fields of an existing
// personality. Returns nil without error if the personality doesn't exist.
func UpdatePersonality(personalityID string, request CreatePersonalityRequest) (*Personality, error) {
	personality, err := GetPersonality(personalityID)
	if err != nil {
		return nil, err
	}
	if personality == nil {
		return nil, nil
	}

	if request.Name != "" {
		personality.Name = strings.TrimSpace(request.Name)
	}
	if request.Role != "" {
		personality.Role = strings.TrimSpace(request.Role)
	}
	if request.Type != "" {
		personality.Type = request.Type
	}
	if request.Expertise != nil {
		personality.Expertise = request.Expertise
	}
	personality.Perspective = strings.TrimSpace(request.Perspective)
	personality.CommunicationStyle = strings.TrimSpace(request.CommunicationStyle)

	if err := SavePersonality(personality); err != nil {
		return nil, err
	}

	return personality, nil
}

// DeletePersonality removes a personality from storage.
// Returns false if the personality doesn't exist.
func DeletePersonality(personalityID string) (bool, error) {
	path := GetPersonalityPath(personalityID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("failed to delete personality file: %w", err)
	}

	return true, nil
}

// ListPersonalities lists all personalities, sorted by name alphabetically.
// typeFilter restricts results to "simple" or "detailed" when non-empty.
// Silently skips invalid or unreadable files.
func ListPersonalities(typeFilter string) ([]Personality, error) {
	if err := EnsurePersonalitiesDir(); err != nil {
		return nil, fmt.Errorf("failed to create personalities directory: %w", err)
	}

	entries, err := os.ReadDir(PersonalitiesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read personalities directory: %w", err)
	}

	personalities := make([]Personality, 0)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(PersonalitiesDir, entry.Name()))
		if err != nil {
			continue // Skip files we can't read
		}

		var personality Personality
		if err := json.Unmarshal(data, &personality); err != nil {
			continue // Skip invalid JSON
		}

		if typeFilter != "" && personality.Type != typeFilter {
			continue
		}

		personalities = append(personalities, personality)
	}

	sort.Slice(personalities, func(i, j int) bool {
		return strings.ToLower(personalities[i].Name) < strings.ToLower(personalities[j].Name)
	})

	return personalities, nil
}

// InitializeSeedPersonalities installs the seed personalities if the store is
// empty. Returns true if seeds were created, false if any personality already
// existed.
func InitializeSeedPersonalities() (bool, error) {
	if err := EnsurePersonalitiesDir(); err != nil {
		return false, fmt.Errorf("failed to create personalities directory: %w", err)
	}

	entries, err := os.ReadDir(PersonalitiesDir)
	if err != nil {
		return false, fmt.Errorf("failed to read personalities directory: %w", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".json" {
			return false, nil
		}
	}

	for i := range SeedPersonalities {
		seed := SeedPersonalities[i]
		if err := SavePersonality(&seed); err != nil {
			return false, err
		}
	}

	return true, nil
}

// ShuffleAssignments randomly assigns a personality to every model, drawn
// uniformly with replacement from personalityIDs. Returns an empty map when
// no personality IDs are available.
func ShuffleAssignments(models []string, personalityIDs []string) map[string]string {
	assignments := make(map[string]string)
	if len(personalityIDs) == 0 {
		return assignments
	}

	for _, model := range models {
		assignments[model] = personalityIDs[rand.Intn(len(personalityIDs))]
	}

	return assignments
}

// BuildPersonalityPrompt builds a system prompt fragment from a personality
// for a specific stage ("response", "ranking" or "synthesis"). Returns an
// empty string for a nil personality or an unknown stage.
func BuildPersonalityPrompt(personality *Personality, stage string) string {
	if personality == nil {
		return ""
	}

	switch stage {
	case "response":
		// Stage 1: full persona context
		lines := []string{fmt.Sprintf("You are responding as a %s. %s", personality.Name, personality.Role)}
		if len(personality.Expertise) > 0 {
			lines = append(lines, fmt.Sprintf("Your areas of expertise: %s", strings.Join(personality.Expertise, ", ")))
		}
		if personality.CommunicationStyle != "" {
			lines = append(lines, fmt.Sprintf("Communication style: %s", personality.CommunicationStyle))
		}
		return strings.Join(lines, "\n")

	case "ranking":
		// Stage 2: perspective-focused
		if personality.Perspective != "" {
			return fmt.Sprintf("Evaluate these responses from your perspective as a %s.\nConsider: %s", personality.Name, personality.Perspective)
		}
		return fmt.Sprintf("Evaluate these responses from your perspective as a %s.", personality.Name)

	case "synthesis":
		// Stage 3: chairman framing
		return fmt.Sprintf("You are synthesizing as a %s. %s\nBring your unique perspective to create a balanced final answer.", personality.Name, personality.Role)

	default:
		return ""
	}
}
