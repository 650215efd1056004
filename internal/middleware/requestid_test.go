package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDFor(inbound string) (response, context string) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		id, _ := c.Get(RequestIDKey)
		c.Header("X-Context-Request-ID", id.(string))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if inbound != "" {
		req.Header.Set(RequestIDHeader, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w.Header().Get(RequestIDHeader), w.Header().Get("X-Context-Request-ID")
}

func TestRequestIDMiddleware_GeneratesValidUUID(t *testing.T) {
	response, _ := requestIDFor("")
	if response == "" {
		t.Fatal("no X-Request-ID on response")
	}
	if _, err := uuid.Parse(response); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", response, err)
	}
}

func TestRequestIDMiddleware_KeepsInboundID(t *testing.T) {
	const gatewayID = "edge-proxy-7f3a91"

	response, context := requestIDFor(gatewayID)
	if response != gatewayID {
		t.Errorf("response ID = %q, want the inbound %q", response, gatewayID)
	}
	if context != gatewayID {
		t.Errorf("context ID = %q, want the inbound %q", context, gatewayID)
	}
}

func TestRequestIDMiddleware_ReplacesOversizedInboundID(t *testing.T) {
	stuffed := strings.Repeat("x", maxInboundIDLength+1)

	response, _ := requestIDFor(stuffed)
	if response == stuffed {
		t.Fatal("oversized inbound ID was echoed back")
	}
	if _, err := uuid.Parse(response); err != nil {
		t.Errorf("replacement ID %q is not a UUID: %v", response, err)
	}
}

func TestRequestIDMiddleware_ContextMatchesResponse(t *testing.T) {
	response, context := requestIDFor("")
	if context == "" {
		t.Fatal("request ID missing from gin.Context")
	}
	if response != context {
		t.Errorf("response ID %q differs from context ID %q", response, context)
	}
}

func TestRequestIDMiddleware_UniquePerRequest(t *testing.T) {
	seen := make(map[string]struct{}, 10)
	for i := 0; i < 10; i++ {
		response, _ := requestIDFor("")
		if _, dup := seen[response]; dup {
			t.Errorf("duplicate request ID %q on iteration %d", response, i)
		}
		seen[response] = struct{}{}
	}
}
