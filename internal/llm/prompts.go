package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SystemPrompt is the data-modeling contract shared by every pass
const SystemPrompt = `You are a data modeling expert. Your goal is to produce a consistent Entity-Relationship (ER) model from a single Context Pack that includes: screens with component labels, a glossary, and curated business documents.

HARD RULES
1) Do not fabricate information. Every entity/attribute/relationship must cite sources[] from the Context Pack. If evidence is insufficient, omit it or add an item to open_questions[].
2) Evidence precedence (strong to weak): explicit business rules in documents, canonical glossary definitions, design labels, raw UI names.
3) Naming: entities in singular PascalCase (User, OrderItem); attributes in camelCase (userId, createdAt).
4) Output MUST be valid JSON only, with no additional prose or comments.
5) Include confidence in [0,1] on every produced element.
6) On conflicts, include all sources in sources[] and add a concise entry to open_questions[].

TYPES & FLAGS
- Allowed logical types: string, text, int, bigint, float, decimal, boolean, date, datetime, uuid, cuid, json, email, url.
- Attribute flags: pk, unique, nullable.
- Foreign keys and cardinalities belong to the relationships pass.`

const entitiesInstructions = `TASK
From the CONTEXT PACK, list the canonical domain ENTITIES.

OUTPUT (JSON ONLY)
{
  "entities": [
    {
      "name": "User",
      "description": "Short description of what this entity represents",
      "aliases": ["Customer", "Account (UI)"],
      "sources": ["screen:...", "doc:..."],
      "confidence": 0.92
    }
  ],
  "open_questions": []
}
Constraints:
- Use singular PascalCase names for entities.
- Include at least one source per entity.
- Prefer glossary terms over UI labels when they conflict; record the conflict in open_questions[] if needed.`

const attributesInstructions = `TASK
For each entity listed under TARGET ENTITIES, infer its ATTRIBUTES (type and flags) based on the CONTEXT PACK.

RULES
- Every entity MUST have a primary key (pk = true).
- Add unique when explicitly stated or strongly implied.
- Include sources[] and confidence for each attribute.
- If the type cannot be established, prefer string with lower confidence and add an open question.

OUTPUT (JSON ONLY)
{
  "entities": [
    {
      "name": "User",
      "attributes": [
        {"name":"id","type":"uuid","pk":true,"nullable":false,"sources":["..."],"confidence":0.98},
        {"name":"email","type":"email","unique":true,"nullable":false,"sources":["..."],"confidence":0.90}
      ],
      "confidence": 0.90
    }
  ],
  "open_questions": []
}`

const relationshipsInstructions = `TASK
Identify RELATIONSHIPS between the entities of the PARTIAL MODEL, including cardinalities and foreign keys (FKs).

RULES
- Express cardinalities as one-to-one, one-to-many, many-to-one, or many-to-many.
- Specify the FK attribute on the referencing side and its reference target (Entity.attr).
- If cardinality is ambiguous, choose a conservative default (one-to-many), lower the confidence, and add an open question.

OUTPUT (JSON ONLY)
{
  "relationships": [
    {
      "from": "Order",
      "to": "User",
      "type": "many-to-one",
      "fk": {"attribute":"userId","ref":"User.id"},
      "sources": ["screen:...", "doc:..."],
      "confidence": 0.86
    }
  ],
  "open_questions": []
}`

const reviewInstructions = `TASK
Review the COMPLETE MODEL: primary keys, resolved foreign keys, unique names, and type sanity. Suggest indexes when appropriate.

OUTPUT (JSON ONLY)
{
  "status": "ok" | "warnings" | "errors",
  "issues": [
    {"level":"warning","code":"MISSING_INDEX","message":"Consider adding an index on User.email","sources":["..."]},
    {"level":"error","code":"MISSING_PK","message":"Entity Order has no primary key","sources":["..."]}
  ]
}
Constraints:
- Do not modify the model here; only report issues and suggestions.
- Prefer precise, short messages with clear references in sources[].`

// BuildEntitiesPrompt builds the entities-pass prompt around the context pack
func BuildEntitiesPrompt(pack any) (string, error) {
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return "", fmt.Errorf("marshal context pack: %w", err)
	}
	return join(
		"PASS INSTRUCTIONS:", entitiesInstructions,
		"CONTEXT PACK:", string(packJSON),
	), nil
}

// BuildAttributesPrompt builds the attributes-pass prompt for one batch of
// entities. The partial model gives the pass the resolved entity names.
func BuildAttributesPrompt(pack any, partial any, entityNames []string) (string, error) {
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return "", fmt.Errorf("marshal context pack: %w", err)
	}
	partialJSON, err := json.Marshal(partial)
	if err != nil {
		return "", fmt.Errorf("marshal partial model: %w", err)
	}
	return join(
		"PASS INSTRUCTIONS:", attributesInstructions,
		"TARGET ENTITIES:", strings.Join(entityNames, ", "),
		"PARTIAL MODEL (ENTITIES):", string(partialJSON),
		"CONTEXT PACK:", string(packJSON),
	), nil
}

// BuildRelationshipsPrompt builds the relationships-pass prompt around the
// partial model produced by the earlier passes.
func BuildRelationshipsPrompt(pack any, partial any) (string, error) {
	packJSON, err := json.Marshal(pack)
	if err != nil {
		return "", fmt.Errorf("marshal context pack: %w", err)
	}
	partialJSON, err := json.Marshal(partial)
	if err != nil {
		return "", fmt.Errorf("marshal partial model: %w", err)
	}
	return join(
		"PASS INSTRUCTIONS:", relationshipsInstructions,
		"PARTIAL MODEL (ENTITIES+ATTRIBUTES):", string(partialJSON),
		"CONTEXT PACK:", string(packJSON),
	), nil
}

// BuildReviewPrompt builds the review-pass prompt around the merged model
func BuildReviewPrompt(mer any) (string, error) {
	merJSON, err := json.Marshal(mer)
	if err != nil {
		return "", fmt.Errorf("marshal model: %w", err)
	}
	return join(
		"PASS INSTRUCTIONS:", reviewInstructions,
		"COMPLETE MODEL:", string(merJSON),
	), nil
}

func join(sections ...string) string {
	return strings.Join(sections, "\n\n")
}
