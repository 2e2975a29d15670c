package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"

	"github.com/tenxcards/tenxcards-backend/internal/platform/apierr"
)

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&googleapi.Error{Code: http.StatusForbidden}, apierr.KindAuthentication},
		{fmt.Errorf("wrapped: %w", &googleapi.Error{Code: http.StatusTooManyRequests}), apierr.KindRateLimit},
		{&googleapi.Error{Code: http.StatusNotFound, Message: "models/nope is not found"}, apierr.KindInvalidModel},
		{&googleapi.Error{Code: http.StatusBadRequest, Message: "input token count exceeds the maximum"}, apierr.KindContextLength},
		{errors.New("dial tcp: timeout"), apierr.KindUnavailable},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.kind {
			t.Fatalf("%v: want=%s got=%s", tc.err, tc.kind, got)
		}
	}
}

func TestResponseTextJoinsTextParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"cards":`), genai.Text(`[]}`)}},
		}},
	}
	if got := responseText(resp); got != `{"cards":[]}` {
		t.Fatalf("unexpected text %q", got)
	}
	if responseText(nil) != "" {
		t.Fatalf("nil response yields empty text")
	}
}
