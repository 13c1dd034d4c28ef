package param

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSSM struct {
	values map[string]string
	calls  []string
}

func (m *mockSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	m.calls = append(m.calls, name)
	if !aws.ToBool(in.WithDecryption) {
		return nil, errors.New("expected decryption")
	}
	v, ok := m.values[name]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: in.Name, Value: aws.String(v)}}, nil
}

func TestParameterStoreFetcher_Fetch(t *testing.T) {
	m := &mockSSM{values: map[string]string{"/chatbot/key": "s3cr3t"}}
	f := &ParameterStoreFetcher{client: m}

	v, err := f.Fetch(context.Background(), "/chatbot/key")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", v)

	_, err = f.Fetch(context.Background(), "/chatbot/missing")
	var nf *types.ParameterNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	m := &mockSSM{values: map[string]string{"/chatbot/key": "from-ssm"}}
	f := &ParameterStoreFetcher{client: m}

	v, err := Resolve(ctx, f, "literal", "/chatbot/key")
	require.NoError(t, err)
	assert.Equal(t, "literal", v)
	assert.Empty(t, m.calls)

	v, err = Resolve(ctx, f, "", "/chatbot/key")
	require.NoError(t, err)
	assert.Equal(t, "from-ssm", v)

	v, err = Resolve(ctx, f, "", "")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = Resolve(ctx, f, "", "/chatbot/missing")
	assert.ErrorContains(t, err, "/chatbot/missing")
}

func TestResolve_FetcherFuncIsLazy(t *testing.T) {
	called := false
	f := FetcherFunc(func(context.Context, string) (string, error) {
		called = true
		return "v", nil
	})

	_, err := Resolve(context.Background(), f, "set", "/p")
	require.NoError(t, err)
	assert.False(t, called)

	v, err := Resolve(context.Background(), f, "", "/p")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "v", v)
}
