package remote

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesClientsPerProject(t *testing.T) {
	created := 0
	reg := NewRegistry(func(organization, project string) (*Client, error) {
		created++
		return NewClient(Options{Organization: organization, Project: project, Token: "pat"})
	})

	a, err := reg.Get("contoso", "web")
	require.NoError(t, err)
	b, err := reg.Get("Contoso", "WEB")
	require.NoError(t, err)
	assert.Same(t, a, b)

	c, err := reg.Get("contoso", "api")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, reg.Len())

	reg.Forget("contoso", "web")
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDoesNotCacheFailures(t *testing.T) {
	fail := true
	reg := NewRegistry(func(organization, project string) (*Client, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return NewClient(Options{Organization: organization, Project: project, Token: "pat"})
	})

	_, err := reg.Get("contoso", "web")
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())

	fail = false
	_, err = reg.Get("contoso", "web")
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())
}
