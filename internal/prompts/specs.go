package prompts

const routeSpec = `Respond with a JSON object matching this exact structure:

{
  "action": "search",
  "queries": ["<alternative query>"],
  "filters": {"category": "", "material": "", "scene": "", "sku": ""},
  "target_sku": "",
  "instruction": "",
  "confidence": 0.0
}

Field constraints:
- action: one of search, converse, modify, publish, listing
- queries: at most 2 entries, only when action is search
- filters: omit keys you have no value for
- target_sku: a SKU named by the user, otherwise empty
- instruction: the requested image change when action is modify
- confidence: a number between 0 and 1

Always respond with valid JSON, no markdown fencing.`

const confirmationSpec = `Respond with a JSON object matching this exact structure:

{
  "label": "accept-only",
  "follow_up": ""
}

Field constraints:
- label: one of accept-only, accept-and-publish, reject, reject-but-publish, ambiguous
- follow_up: an additional image instruction, otherwise empty

Always respond with valid JSON, no markdown fencing.`

const selectionSpec = `Respond with a JSON object matching this exact structure:

{
  "selected_skus": ["<sku>"],
  "tier": 2,
  "confidence": 0.0,
  "reasoning": "<short explanation>"
}

Field constraints:
- selected_skus: at least one SKU from the candidate list
- tier: an integer from 2 to 5
- confidence: a number between 0 and 1

Always respond with valid JSON, no markdown fencing.`

const composeSpec = `Respond with plain conversational text. Do not use JSON.`

var specs = map[Stage]string{
	StageRoute:        routeSpec,
	StageConfirmation: confirmationSpec,
	StageSelection:    selectionSpec,
	StageCompose:      composeSpec,
}

// Spec returns the fixed output contract for a stage.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
