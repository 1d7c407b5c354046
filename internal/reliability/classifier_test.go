package reliability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("connection reset"), false},
		{"quota text", errors.New("429: quota exceeded for model"), true},
		{"resource exhausted text", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"api 429", genai.APIError{Code: 429, Message: "too many requests"}, true},
		{"api status", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, true},
		{"api other", genai.APIError{Code: 500, Message: "internal"}, false},
		{"wrapped", fmt.Errorf("generate content: %w", genai.APIError{Code: 429}), true},
	}
	for _, tc := range cases {
		if got := IsQuotaError(tc.err); got != tc.want {
			t.Fatalf("IsQuotaError(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := IsRetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("IsRetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := ExponentialBackoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := ExponentialBackoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}
