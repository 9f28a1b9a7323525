package elevenlabs

import (
	"context"
	"fmt"
)

// KnowledgeBaseItem references an uploaded knowledge-base document in an
// agent's prompt configuration.
type KnowledgeBaseItem struct {
	Type string `json:"type"` // "file"
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// PromptConfig holds the agent's system prompt and knowledge-base bindings
type PromptConfig struct {
	Prompt        string              `json:"prompt,omitempty"`
	KnowledgeBase []KnowledgeBaseItem `json:"knowledge_base,omitempty"`
}

// AgentConfig holds the conversational behavior of an agent
type AgentConfig struct {
	Prompt       *PromptConfig `json:"prompt,omitempty"`
	FirstMessage string        `json:"first_message,omitempty"`
	Language     string        `json:"language,omitempty"`
}

// ConversationConfig wraps the agent configuration for the API
type ConversationConfig struct {
	Agent *AgentConfig `json:"agent,omitempty"`
}

// CreateAgentRequest represents a request to create a conversational agent
type CreateAgentRequest struct {
	Name               string             `json:"name"`
	ConversationConfig ConversationConfig `json:"conversation_config"`
}

// Agent represents an ElevenLabs conversational agent
type Agent struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// CreateAgent creates a new conversational agent
func (c *Client) CreateAgent(ctx context.Context, req CreateAgentRequest) (*Agent, error) {
	var result Agent
	if err := c.doRequest(ctx, "POST", "/v1/convai/agents/create", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteAgent deletes a conversational agent
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	endpoint := fmt.Sprintf("/v1/convai/agents/%s", agentID)
	return c.doRequest(ctx, "DELETE", endpoint, nil, nil)
}

// UpdateAgentKnowledgeBase replaces the set of knowledge-base documents
// bound to an agent
func (c *Client) UpdateAgentKnowledgeBase(ctx context.Context, agentID string, items []KnowledgeBaseItem) error {
	endpoint := fmt.Sprintf("/v1/convai/agents/%s", agentID)
	body := struct {
		ConversationConfig ConversationConfig `json:"conversation_config"`
	}{
		ConversationConfig: ConversationConfig{
			Agent: &AgentConfig{
				Prompt: &PromptConfig{KnowledgeBase: items},
			},
		},
	}
	return c.doRequest(ctx, "PATCH", endpoint, body, nil)
}
