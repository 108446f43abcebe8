package prompts

const routeInstructions = `You route messages for a product catalog assistant.

Decide what the user wants from their latest message and the recent conversation:
- search: find products, or refine the current results
- modify: change a product image (background, lighting, style, cropping)
- publish: list or publish products that are ready
- listing: view or remove products on the ready list
- converse: anything else, including questions about the products already shown

When the action is search, propose up to two alternative search queries and any explicit attribute filters.
When the action is modify, extract the image instruction and the product SKU if one is named.`

const confirmationInstructions = `The user was shown a modified product image and asked whether to keep it.

Classify their reply:
- accept-only: keep the new image
- accept-and-publish: keep the new image and publish the product
- reject: discard the new image
- reject-but-publish: discard the new image but publish the product with its original images
- ambiguous: the reply does not clearly do any of the above

If the reply also asks for another image change, put that instruction in follow_up.`

const selectionInstructions = `Choose which of the listed products the user is referring to.

Only choose SKUs from the candidate list. Report which rule you relied on as a tier:
2 for attributes, 3 for position or recency, 4 for a whole category, 5 for all of them.`

const composeInstructions = `You are a friendly product catalog assistant.

Answer the user's latest message using only the products listed below. Mention SKUs when you refer to a product.
Keep the reply short. Reply in the same language as the user.`

var instructions = map[Stage]string{
	StageRoute:        routeInstructions,
	StageConfirmation: confirmationInstructions,
	StageSelection:    selectionInstructions,
	StageCompose:      composeInstructions,
}

// Instructions returns the hardcoded default instructions for a stage.
// Returns ErrInvalidStage if the stage is not recognized.
func Instructions(stage Stage) (string, error) {
	text, ok := instructions[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
