package extraction

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestClient_Extract(t *testing.T) {
	t.Run("sends the pipeline envelope and maps the response", func(t *testing.T) {
		imageData := []byte("fake image bytes")

		var received pipelineRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "secret-key", r.Header.Get("X-API-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"success": true,
				"data": {
					"name": {"given_name": "Jane", "family_name": "Doe", "prefix": ""},
					"work": {"job_title": "Engineer", "organization_name": "Acme"},
					"contact": {
						"phone_numbers": ["+1 555 0100"],
						"email_addresses": ["jane@acme.test"],
						"url_addresses": [],
						"postal_addresses": [
							{"street": "1 Main St", "city": "Springfield", "state": "IL", "postal_code": "62704", "country": "USA"}
						]
					},
					"metadata": {
						"execution_info": {
							"execution_id": "exec-42",
							"program_version": "2.1.0"
						}
					}
				},
				"metadata": {
					"model_id": "gpt-4o-mini",
					"program_name": "Contact Extractor",
					"program_version": "1.0.0",
					"model_info": {"provider": "openai", "base_model": "gpt-4o"}
				}
			}`))
		}))
		defer server.Close()

		client := NewClient(Config{
			Endpoint: server.URL,
			APIKey:   "secret-key",
			ModelID:  "gpt-4o-mini",
		}, noopLogger())

		result, err := client.Extract(context.Background(), imageData)
		require.NoError(t, err)

		assert.Equal(t, PipelineID, received.Request.PipelineID)
		assert.Equal(t, "image", received.Request.MediaType)
		assert.Equal(t, "gpt-4o-mini", received.Request.Params["model_id"])
		decoded, err := base64.StdEncoding.DecodeString(received.Request.Content)
		require.NoError(t, err)
		assert.Equal(t, imageData, decoded)

		require.NotNil(t, result.Fields.GivenName)
		assert.Equal(t, "Jane", *result.Fields.GivenName)
		require.NotNil(t, result.Fields.FamilyName)
		assert.Equal(t, "Doe", *result.Fields.FamilyName)
		assert.Nil(t, result.Fields.NamePrefix, "blank scalars stay absent")
		require.NotNil(t, result.Fields.JobTitle)
		assert.Equal(t, "Engineer", *result.Fields.JobTitle)
		assert.Equal(t, []string{"+1 555 0100"}, result.Fields.PhoneNumbers)
		assert.Equal(t, []string{"jane@acme.test"}, result.Fields.EmailAddresses)
		require.Len(t, result.Fields.PostalAddresses, 1)
		assert.Equal(t, "Springfield", result.Fields.PostalAddresses[0].City)

		assert.Equal(t, "gpt-4o-mini", result.Metadata.ModelID)
		assert.Equal(t, "exec-42", result.Metadata.ExecutionID)
		assert.Equal(t, "2.1.0", result.Metadata.ProgramVersion, "execution info wins over envelope metadata")
		assert.Equal(t, "openai", result.Metadata.Provider)
		assert.Equal(t, "gpt-4o", result.Metadata.BaseModel)
		assert.False(t, result.Metadata.ExtractedAt.IsZero())
	})

	t.Run("defaults missing metadata", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success": true, "data": {"name": {"given_name": "Jo"}, "work": {}, "contact": {}}}`))
		}))
		defer server.Close()

		client := NewClient(Config{Endpoint: server.URL, ModelID: "gpt-4o-mini"}, noopLogger())

		result, err := client.Extract(context.Background(), []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, "unknown-model", result.Metadata.ModelID)
		assert.Equal(t, "0.0.0", result.Metadata.ProgramVersion)
		assert.Equal(t, "Contact Extractor", result.Metadata.ProgramName)
	})

	t.Run("server reported failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "error": "pipeline exploded"}`))
		}))
		defer server.Close()

		client := NewClient(Config{Endpoint: server.URL}, noopLogger())

		_, err := client.Extract(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline exploded")
	})

	t.Run("http error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(Config{Endpoint: server.URL}, noopLogger())

		_, err := client.Extract(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("success with no data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success": true}`))
		}))
		defer server.Close()

		client := NewClient(Config{Endpoint: server.URL}, noopLogger())

		_, err := client.Extract(context.Background(), []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no data")
	})
}
