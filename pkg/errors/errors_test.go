package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
	}{
		{CodeValidation, http.StatusBadRequest, false},
		{CodeAuthRequired, http.StatusUnauthorized, false},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false},
		{CodeSubscribeTimeout, http.StatusGatewayTimeout, true},
		{CodeRemoteCommit, http.StatusBadGateway, true},
		{CodePartialFailure, http.StatusMultiStatus, false},
		{CodeDependency, http.StatusServiceUnavailable, true},
	}

	for _, tc := range tests {
		meta := MetadataFor(tc.code)
		if meta.HTTPStatus != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.code, tc.status, meta.HTTPStatus)
		}
		if meta.Retryable != tc.retryable {
			t.Fatalf("%s: expected retryable=%v", tc.code, tc.retryable)
		}
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("socket closed")
	err := Wrap(CodeChannelError, cause, "transport failed")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if typed := As(err); typed == nil || typed.Code() != CodeChannelError {
		t.Fatalf("expected typed CHANNEL_ERROR, got %v", err)
	}
}

func TestIsCode(t *testing.T) {
	err := New(CodeInvalidTransition, "already bumped")
	if !IsCode(err, CodeInvalidTransition) {
		t.Fatalf("expected IsCode to match")
	}
	if IsCode(err, CodeValidation) {
		t.Fatalf("did not expect validation code")
	}
	if IsCode(nil, CodeValidation) {
		t.Fatalf("nil error should never match")
	}
}

func TestDumpWalksChain(t *testing.T) {
	inner := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, inner, "publish event")

	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
}
