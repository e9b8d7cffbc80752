package capability

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func sampleCapability() Capability {
	return Capability{
		Name:        "interactions.log",
		Description: "Log an interaction.",
		Input: []Field{
			{Name: "campaignId", Type: FieldString, Required: true, Description: "Campaign record id"},
			{Name: "actorType", Type: FieldString, Required: true, Enum: []string{"brand", "influencer"}},
			{Name: "meta", Type: FieldObject},
		},
		Run: func(ctx context.Context, input map[string]any) (any, error) {
			return map[string]any{"ok": true}, nil
		},
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	_, err := New(sampleCapability(), sampleCapability())
	if err == nil {
		t.Fatal("duplicate registration must fail")
	}
}

func TestInvokeUnknownCapability(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}
	_, err = reg.Invoke(context.Background(), "does.not.exist", nil)
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("err = %v, want ErrUnknown", err)
	}
	if err := reg.Validate("does.not.exist", nil); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Validate err = %v, want ErrUnknown", err)
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}

	err = reg.Validate("interactions.log", map[string]any{
		"actorType": "robot",
		"meta":      "not an object",
	})
	if err == nil {
		t.Fatal("expected validation failure")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	if len(verr.Violations) != 3 {
		t.Fatalf("violations = %v, want 3", verr.Violations)
	}
	msg := verr.Error()
	for _, want := range []string{
		"campaignId: required",
		"actorType: must be one of brand|influencer",
		"meta: expected object",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("violations missing %q: %s", want, msg)
		}
	}
}

func TestValidateAcceptsOptionalAbsence(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}
	err = reg.Validate("interactions.log", map[string]any{
		"campaignId": "c1",
		"actorType":  "brand",
	})
	if err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
}

func TestValidateRejectsEmptyRequiredString(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}
	err = reg.Validate("interactions.log", map[string]any{
		"campaignId": "",
		"actorType":  "brand",
	})
	if err == nil {
		t.Fatal("empty required string must be rejected")
	}
}

func TestInvokeValidatesBeforeRunning(t *testing.T) {
	ran := false
	logCap := sampleCapability()
	logCap.Run = func(ctx context.Context, input map[string]any) (any, error) {
		ran = true
		return map[string]any{"ok": true}, nil
	}
	reg, err := New(logCap)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := reg.Invoke(context.Background(), "interactions.log", map[string]any{}); err == nil {
		t.Fatal("expected validation failure")
	}
	if ran {
		t.Fatal("executor ran despite invalid input")
	}

	out, err := reg.Invoke(context.Background(), "interactions.log", map[string]any{
		"campaignId": "c1",
		"actorType":  "brand",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("executor did not run")
	}
	if m, ok := out.(map[string]any); !ok || m["ok"] != true {
		t.Fatalf("output = %v", out)
	}
}

func TestInputSchemaProjection(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}

	listings := reg.List()
	if len(listings) != 1 || listings[0].Name != "interactions.log" {
		t.Fatalf("listings = %+v", listings)
	}

	var schema struct {
		Type       string `json:"type"`
		Properties map[string]struct {
			Type string   `json:"type"`
			Enum []string `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(listings[0].InputSchema, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("schema type = %s", schema.Type)
	}
	if len(schema.Required) != 2 || schema.Required[0] != "actorType" || schema.Required[1] != "campaignId" {
		t.Errorf("required = %v", schema.Required)
	}
	if got := schema.Properties["actorType"].Enum; len(got) != 2 {
		t.Errorf("actorType enum = %v", got)
	}
	if schema.Properties["meta"].Type != "object" {
		t.Errorf("meta type = %s", schema.Properties["meta"].Type)
	}
}

func TestContract(t *testing.T) {
	reg, err := New(sampleCapability())
	if err != nil {
		t.Fatal(err)
	}
	fields, ok := reg.Contract("interactions.log")
	if !ok || len(fields) != 3 {
		t.Fatalf("contract = %v ok=%v", fields, ok)
	}
	if _, ok := reg.Contract("missing"); ok {
		t.Fatal("unknown contract reported as present")
	}
}
