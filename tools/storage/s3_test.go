package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	body  string
	err   error
	input *s3.GetObjectInput
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(m.body))}, nil
}

func TestS3State_Load(t *testing.T) {
	client := &mockS3{body: `{"dishes": []}`}
	st := NewS3State(client, "chefbot-artifacts", "menu.json")

	b, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"dishes": []}`, string(b))
	assert.Equal(t, "chefbot-artifacts", aws.ToString(client.input.Bucket))
	assert.Equal(t, "menu.json", aws.ToString(client.input.Key))

	client.err = errors.New("access denied")
	_, err = st.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://chefbot-artifacts/menu.json")
}
