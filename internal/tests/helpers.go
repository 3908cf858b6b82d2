package tests

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-querystring/query"
	"github.com/stretchr/testify/require"
)

// StaticAuthenticator accepts every request.
type StaticAuthenticator struct{}

func (s StaticAuthenticator) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Next()
	}
}

// RandCkey returns a random, valid ckey.
func RandCkey() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)

	return "t" + hex.EncodeToString(buf)
}

// RandDiscordID returns a random 18 digit snowflake.
func RandDiscordID() string {
	minID := big.NewInt(100000000000000000)
	value, _ := rand.Int(rand.Reader, big.NewInt(800000000000000000))

	return value.Add(value, minID).String()
}

func EndpointReceiver(t *testing.T, router http.Handler, method string,
	path string, body any, expectedStatus int, token string, receiver any,
) {
	t.Helper()

	resp := Endpoint(t, router, method, path, body, expectedStatus, token)
	if receiver != nil {
		if err := json.NewDecoder(resp.Body).Decode(receiver); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// Endpoint performs a request against router. GET bodies are encoded as query values.
func Endpoint(t *testing.T, router http.Handler, method string, path string, body any, expectedStatus int, token string) *httptest.ResponseRecorder {
	t.Helper()

	reqCtx, cancel := context.WithTimeout(t.Context(), time.Second*10)
	defer cancel()

	recorder := httptest.NewRecorder()

	var bodyReader io.Reader

	if body != nil && method == http.MethodGet {
		values, err := query.Values(body)
		if err != nil {
			t.Fatalf("failed to encode values: %v", err)
		}

		path += "?" + values.Encode()
	} else if body != nil {
		bodyJSON, errJSON := json.Marshal(body)
		if errJSON != nil {
			t.Fatalf("Failed to encode request: %v", errJSON)
		}

		bodyReader = bytes.NewReader(bodyJSON)
	}

	request, errRequest := http.NewRequestWithContext(reqCtx, method, path, bodyReader)
	if errRequest != nil {
		t.Fatalf("Failed to make request: %v", errRequest)
	}

	if bodyReader != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	if token != "" {
		request.Header.Add("Authorization", "Bearer "+token)
	}

	router.ServeHTTP(recorder, request)

	require.Equal(t, expectedStatus, recorder.Code, "Received invalid response code. method: %s path: %s body: %s",
		method, path, recorder.Body.String())

	return recorder
}
