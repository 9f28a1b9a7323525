package services

import (
	"context"

	"github.com/voicetutor/api/services/elevenlabs"
)

// ElevenLabsProvider adapts the ElevenLabs client to the AgentProvider
// contract used by the session orchestrator.
type ElevenLabsProvider struct {
	client *elevenlabs.Client
}

// NewElevenLabsProvider creates the production agent provider
func NewElevenLabsProvider(client *elevenlabs.Client) *ElevenLabsProvider {
	return &ElevenLabsProvider{client: client}
}

func (p *ElevenLabsProvider) CreateAgent(ctx context.Context, name, prompt, firstMessage string) (string, error) {
	agent, err := p.client.CreateAgent(ctx, elevenlabs.CreateAgentRequest{
		Name: name,
		ConversationConfig: elevenlabs.ConversationConfig{
			Agent: &elevenlabs.AgentConfig{
				Prompt:       &elevenlabs.PromptConfig{Prompt: prompt},
				FirstMessage: firstMessage,
				Language:     "en",
			},
		},
	})
	if err != nil {
		return "", err
	}
	return agent.AgentID, nil
}

func (p *ElevenLabsProvider) DeleteAgent(ctx context.Context, agentID string) error {
	return p.client.DeleteAgent(ctx, agentID)
}

func (p *ElevenLabsProvider) UploadDocument(ctx context.Context, name string, content []byte, mimeType string) (string, error) {
	doc, err := p.client.UploadDocument(ctx, name, content, mimeType)
	if err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (p *ElevenLabsProvider) DeleteDocument(ctx context.Context, fileID string) error {
	return p.client.DeleteDocument(ctx, fileID)
}

func (p *ElevenLabsProvider) UpdateAgentKnowledgeBase(ctx context.Context, agentID string, fileIDs []string) error {
	items := make([]elevenlabs.KnowledgeBaseItem, len(fileIDs))
	for i, id := range fileIDs {
		items[i] = elevenlabs.KnowledgeBaseItem{Type: "file", ID: id}
	}
	return p.client.UpdateAgentKnowledgeBase(ctx, agentID, items)
}
