package llm

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot/tools"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"court", 10, "court"},
		{"Velouté de potiron", 10, "Velouté..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.in, tt.n))
		})
	}
}

func TestSystemText(t *testing.T) {
	msgs := []Message{System("un"), User("x"), System("  "), System("deux")}
	assert.Equal(t, "un\n\ndeux", SystemText(msgs))
	assert.Empty(t, SystemText([]Message{User("x")}))
}

type specTool struct{}

func (specTool) Kind() tools.Kind    { return tools.KindCalculate }
func (specTool) Name() string        { return "calculate" }
func (specTool) Title() string       { return "Calculate" }
func (specTool) Description() string { return "calc" }
func (specTool) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Required: []string{"expression"}}
}
func (specTool) Run(context.Context, map[string]any) (string, error) { return "", nil }

func TestSpecs(t *testing.T) {
	specs := Specs([]tools.Tool{specTool{}})
	require.Len(t, specs, 1)
	assert.Equal(t, "calculate", specs[0].Name)
	assert.Equal(t, []string{"expression"}, specs[0].Parameters.Required)
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(ctx context.Context, req Request) (Response, error) {
		return Response{Content: req.Model}, nil
	})
	res, err := c.Complete(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", res.Content)
}
