package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstore3 = `openapi: 3.0.3
info:
  title: Swagger Petstore
  version: 1.0.0
paths:
  /pets:
    get:
      summary: List all pets
      responses:
        "200":
          description: A list of pets
`

const petstore2 = `{
  "swagger": "2.0",
  "info": {"title": "Petstore", "version": "1.0.0"},
  "paths": {"/pets": {}, "/pets/{id}": {}}
}`

func TestDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("openapi 3 yaml", func(t *testing.T) {
		report, err := Document(ctx, []byte(petstore3))
		require.NoError(t, err)
		assert.Equal(t, KindOpenAPI3, report.Kind)
		assert.Equal(t, "3.0.3", report.Version)
		assert.Equal(t, "Swagger Petstore", report.Title)
		assert.Equal(t, "1.0.0", report.APIVersion)
		assert.Equal(t, 1, report.Paths)
	})

	t.Run("swagger 2 json", func(t *testing.T) {
		report, err := Document(ctx, []byte(petstore2))
		require.NoError(t, err)
		assert.Equal(t, KindSwagger2, report.Kind)
		assert.Equal(t, "Petstore", report.Title)
		assert.Equal(t, 2, report.Paths)
	})

	t.Run("openapi 3 missing info", func(t *testing.T) {
		_, err := Document(ctx, []byte("openapi: 3.0.3\npaths: {}\n"))
		assert.Error(t, err)
	})

	t.Run("swagger 2 missing title", func(t *testing.T) {
		_, err := Document(ctx, []byte(`{"swagger": "2.0", "info": {}, "paths": {}}`))
		assert.ErrorContains(t, err, "info.title")
	})

	t.Run("swagger 2 paths not an object", func(t *testing.T) {
		_, err := Document(ctx, []byte(`{"swagger": "2.0", "info": {"title": "x"}, "paths": []}`))
		assert.ErrorContains(t, err, "paths")
	})

	t.Run("unsupported swagger version", func(t *testing.T) {
		_, err := Document(ctx, []byte(`{"swagger": "1.2", "info": {"title": "x"}, "paths": {}}`))
		assert.Error(t, err)
	})

	t.Run("plain yaml", func(t *testing.T) {
		_, err := Document(ctx, []byte("name: not a spec\n"))
		assert.ErrorIs(t, err, ErrNotOpenAPI)
	})

	t.Run("unparseable", func(t *testing.T) {
		_, err := Document(ctx, []byte("{: ["))
		assert.Error(t, err)
	})
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petstore3), 0644))

	report, err := File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Swagger Petstore", report.Title)

	_, err = File(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
