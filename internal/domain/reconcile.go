package domain

// CallbackPayload is an inbound asynchronous result, already verified.
type CallbackPayload struct {
	TransactionID       string `json:"transaction_id"`
	ConversationID      string `json:"conversation_id"`
	ThirdPartyReference string `json:"third_party_reference"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
}

func (p CallbackPayload) Validate() error {
	if p.ResponseCode == "" {
		return ErrInvalidRequest
	}
	if p.TransactionID == "" && p.ConversationID == "" && p.ThirdPartyReference == "" {
		return ErrInvalidRequest
	}
	return nil
}

// CallbackTarget derives the status a callback code implies.
func CallbackTarget(code string) TransactionStatus {
	if code == CodeOK {
		return StatusCompleted
	}
	return StatusFailed
}

type CallbackPlan struct {
	Target   TransactionStatus
	Decision TransitionResult
	Patch    TransactionPatch
}

// PlanCallback decides what applying payload to tx would do without touching
// any storage. A success callback for a record that was reversed afterwards
// describes an earlier state and is treated as a replay.
func PlanCallback(tx *Transaction, p CallbackPayload) (CallbackPlan, error) {
	target := CallbackTarget(p.ResponseCode)
	plan := CallbackPlan{
		Target: target,
		Patch: TransactionPatch{
			Status:                      target,
			ProviderTransactionID:       StringPtr(p.TransactionID),
			ProviderConversationID:      StringPtr(p.ConversationID),
			ProviderResponseCode:        StringPtr(p.ResponseCode),
			ProviderResponseDescription: StringPtr(p.ResponseDescription),
		},
	}
	if err := CheckIdentifiers(tx, plan.Patch); err != nil {
		return plan, err
	}

	plan.Decision = Decide(tx.Type, tx.Status, target)
	if tx.Status == StatusReversed && target == StatusCompleted {
		plan.Decision = TransitionReplay
	}
	if plan.Decision == TransitionReject {
		return plan, ErrInvalidTransition
	}
	return plan, nil
}
