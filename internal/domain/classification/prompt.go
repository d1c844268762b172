package classification

import "github.com/google/uuid"

// DefaultModel is used when neither the batch prompt nor the prompt record
// names a model.
const DefaultModel = "gpt-3.5-turbo"

// defaultSystemPrompt drives classification when a batch has no prompt of its
// own. The response schema here must stay in sync with the verdict fields the
// inference client parses.
const defaultSystemPrompt = `# MCA Lender & Broker Classification Assistant

You are a domain-classification assistant specializing in identifying MCA
(Merchant Cash Advance) lenders, brokers, and alternative business funding
companies from website content. Determine whether the company provides or
brokers merchant cash advances, business loans, or alternative funding to
small and medium-sized businesses.

High-confidence indicators include: "merchant cash advance", "business cash
advance", "revenue-based financing", "factor rate", "future receivables",
"working capital advance", "invoice factoring", "equipment financing",
"business funding broker", "direct lender", "funding as fast as 24 hours",
"bad credit accepted".

Respond ONLY in valid JSON:
{
  "is_mca_lender_broker": true/false,
  "business_model": "direct_lender" | "broker" | "hybrid" | "unclear" | "not_applicable",
  "confidence": 0.0-1.0,
  "primary_services": ["service1", "service2"],
  "evidence": ["excerpt1", "excerpt2"],
  "exclusion_reason": "reason if false, otherwise null"
}`

// Prompt is a stored classification prompt a batch may reference. Prompt CRUD
// lives outside the core; the pipeline only resolves and reads prompts.
type Prompt struct {
	id           uuid.UUID
	name         string
	systemPrompt string
	model        string
}

// NewPrompt creates a prompt record.
func NewPrompt(id uuid.UUID, name, systemPrompt, model string) *Prompt {
	if model == "" {
		model = DefaultModel
	}
	return &Prompt{id: id, name: name, systemPrompt: systemPrompt, model: model}
}

// DefaultPrompt returns the built-in prompt used when a batch carries no
// prompt reference or the referenced prompt cannot be loaded.
func DefaultPrompt() *Prompt {
	return &Prompt{
		name:         "default",
		systemPrompt: defaultSystemPrompt,
		model:        DefaultModel,
	}
}

// ID returns the unique identifier for this prompt.
func (p *Prompt) ID() uuid.UUID { return p.id }

// Name returns the display name of the prompt.
func (p *Prompt) Name() string { return p.name }

// SystemPrompt returns the system prompt text sent to the inference service.
func (p *Prompt) SystemPrompt() string { return p.systemPrompt }

// Model returns the target model identifier.
func (p *Prompt) Model() string { return p.model }
