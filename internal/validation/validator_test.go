// Wayfarer - Tourist Telemetry Anomaly Detection and Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/wayfarer

package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Name  string  `validate:"required"`
	Limit int     `validate:"min=1,max=100"`
	Lat   float64 `validate:"latitude"`
	Mode  string  `validate:"oneof=memory badger"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{Name: "ok", Limit: 10, Lat: 28.6, Mode: "memory"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructCollectsAllFailures(t *testing.T) {
	req := sampleRequest{Name: "", Limit: 500, Lat: 120, Mode: "duckdb"}

	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var ve *RequestValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *RequestValidationError, got %T", err)
	}
	if len(ve.Fields()) != 4 {
		t.Errorf("expected 4 field errors, got %d: %v", len(ve.Fields()), ve)
	}
}

func TestTranslatedMessages(t *testing.T) {
	req := sampleRequest{Name: "ok", Limit: 500, Lat: 28.6, Mode: "memory"}

	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "Limit must be at most 100") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestGetValidatorIsSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("expected the same validator instance")
	}
}
