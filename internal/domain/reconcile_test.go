package domain

import (
	"errors"
	"testing"
)

func TestPlanCallback(t *testing.T) {
	cases := []struct {
		name     string
		tx       Transaction
		payload  CallbackPayload
		target   TransactionStatus
		decision TransitionResult
		err      error
	}{
		{
			name:     "success on accepted",
			tx:       Transaction{Type: TypeC2B, Status: StatusAccepted, ProviderTransactionID: StringPtr("MP001")},
			payload:  CallbackPayload{TransactionID: "MP001", ResponseCode: CodeOK},
			target:   StatusCompleted,
			decision: TransitionApply,
		},
		{
			name:     "success before sync response",
			tx:       Transaction{Type: TypeC2B, Status: StatusPending},
			payload:  CallbackPayload{TransactionID: "MP001", ResponseCode: CodeOK},
			target:   StatusCompleted,
			decision: TransitionApply,
		},
		{
			name:     "failure code",
			tx:       Transaction{Type: TypeB2C, Status: StatusAccepted},
			payload:  CallbackPayload{TransactionID: "MP002", ResponseCode: "INS-2006"},
			target:   StatusFailed,
			decision: TransitionApply,
		},
		{
			name:     "replay of completion",
			tx:       Transaction{Type: TypeC2B, Status: StatusCompleted, ProviderTransactionID: StringPtr("MP001")},
			payload:  CallbackPayload{TransactionID: "MP001", ResponseCode: CodeOK},
			target:   StatusCompleted,
			decision: TransitionReplay,
		},
		{
			name:     "completion after reversal",
			tx:       Transaction{Type: TypeC2B, Status: StatusReversed, ProviderTransactionID: StringPtr("MP001")},
			payload:  CallbackPayload{TransactionID: "MP001", ResponseCode: CodeOK},
			target:   StatusCompleted,
			decision: TransitionReplay,
		},
		{
			name:    "failure after completion",
			tx:      Transaction{Type: TypeC2B, Status: StatusCompleted},
			payload: CallbackPayload{TransactionID: "MP001", ResponseCode: "INS-6"},
			target:  StatusFailed,
			err:     ErrInvalidTransition,
		},
		{
			name:    "conflicting provider id",
			tx:      Transaction{Type: TypeC2B, Status: StatusAccepted, ProviderTransactionID: StringPtr("MP001")},
			payload: CallbackPayload{TransactionID: "MP777", ResponseCode: CodeOK},
			target:  StatusCompleted,
			err:     ErrIdentifierConflict,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := PlanCallback(&tc.tx, tc.payload)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if plan.Target != tc.target {
				t.Fatalf("target = %s, want %s", plan.Target, tc.target)
			}
			if tc.err == nil && plan.Decision != tc.decision {
				t.Fatalf("decision = %s, want %s", plan.Decision, tc.decision)
			}
		})
	}
}

func TestCallbackPayloadValidate(t *testing.T) {
	if err := (CallbackPayload{ResponseCode: CodeOK}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("payload without identifiers: got %v", err)
	}
	if err := (CallbackPayload{ConversationID: "C1"}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("payload without code: got %v", err)
	}
	if err := (CallbackPayload{ThirdPartyReference: "abc", ResponseCode: CodeOK}).Validate(); err != nil {
		t.Fatalf("valid payload: %v", err)
	}
}

func TestLookupCode(t *testing.T) {
	cases := []struct {
		code   string
		status int
		class  CodeClass
	}{
		{"INS-0", 201, CodeSuccess},
		{"INS-2006", 422, CodeFailure},
		{"INS-9", 408, CodeIndeterminate},
		{"INS-10", 409, CodeIndeterminate},
		{"INS-16", 503, CodeIndeterminate},
		{"INS-4242", 500, CodeFailure},
	}
	for _, tc := range cases {
		rc := LookupCode(tc.code)
		if rc.HTTPStatus != tc.status || rc.Class != tc.class {
			t.Errorf("LookupCode(%s) = %d/%d, want %d/%d", tc.code, rc.HTTPStatus, rc.Class, tc.status, tc.class)
		}
	}
}
