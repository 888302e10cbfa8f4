package sendmessage

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflowhq/leadflow/pkg/models"
	"github.com/leadflowhq/leadflow/pkg/protocol"
	"github.com/leadflowhq/leadflow/pkg/whatsapp"
)

type fakeSender struct {
	instance string
	number   string
	text     string
	err      error
}

func (f *fakeSender) SendText(ctx context.Context, instance, number, text string) error {
	f.instance = instance
	f.number = number
	f.text = text

	return f.err
}

func actionContext(lead *models.Lead) protocol.ActionContext {
	return protocol.ActionContext{
		Lead:      lead,
		Execution: &models.Execution{ID: "exec-1", FlowID: "flow-1"},
		Logger:    slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
}

func TestFactory_CreateRequiresConfig(t *testing.T) {
	factory := NewActionFactory(&fakeSender{})

	_, err := factory.Create(map[string]any{"message": "hi"})
	require.Error(t, err)

	_, err = factory.Create(map[string]any{"instance": "sales"})
	require.Error(t, err)

	action, err := factory.Create(map[string]any{"instance": "sales", "message": "hi"})
	require.NoError(t, err)
	assert.NotNil(t, action)
}

func TestAction_ExecuteSendsTemplatedMessage(t *testing.T) {
	sender := &fakeSender{}
	factory := NewActionFactory(sender)

	action, err := factory.Create(map[string]any{
		"instance": "sales",
		"message":  "Hi {{.lead.name}}, welcome!",
	})
	require.NoError(t, err)

	lead := &models.Lead{ID: "lead-1", Name: "Ada", Phone: "+5511999999999"}

	output, err := action.Execute(t.Context(), actionContext(lead))
	require.NoError(t, err)

	assert.Equal(t, "sales", sender.instance)
	assert.Equal(t, "+5511999999999", sender.number)
	assert.Equal(t, "Hi Ada, welcome!", sender.text)
	assert.Equal(t, map[string]any{"sent_to": "+5511999999999"}, output)
}

func TestAction_ExecuteFailsWithoutPhone(t *testing.T) {
	factory := NewActionFactory(&fakeSender{})

	action, err := factory.Create(map[string]any{"instance": "sales", "message": "hi"})
	require.NoError(t, err)

	lead := &models.Lead{ID: "lead-1", Name: "Ada"}

	_, err = action.Execute(t.Context(), actionContext(lead))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no phone number")
}

func TestAction_ExecuteAgainstGateway(t *testing.T) {
	var gotPath, gotAPIKey string

	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := whatsapp.NewClient(server.URL, "secret-key")
	factory := NewActionFactory(client)

	action, err := factory.Create(map[string]any{"instance": "sales", "message": "hello"})
	require.NoError(t, err)

	lead := &models.Lead{ID: "lead-1", Phone: "+5511999999999"}

	_, err = action.Execute(t.Context(), actionContext(lead))
	require.NoError(t, err)

	assert.Equal(t, "/message/sendText/sales", gotPath)
	assert.Equal(t, "secret-key", gotAPIKey)
	assert.Equal(t, "+5511999999999", gotBody["number"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestAction_ExecuteGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "instance offline", http.StatusBadGateway)
	}))
	defer server.Close()

	client := whatsapp.NewClient(server.URL, "secret-key")
	factory := NewActionFactory(client)

	action, err := factory.Create(map[string]any{"instance": "sales", "message": "hello"})
	require.NoError(t, err)

	lead := &models.Lead{ID: "lead-1", Phone: "+5511999999999"}

	_, err = action.Execute(t.Context(), actionContext(lead))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
