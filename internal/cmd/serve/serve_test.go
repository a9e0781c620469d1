package serve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/resonancelabs/resonance-service/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildEmbedderMockChain(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbedType = "mock"
	cfg.EmbedFallbackType = ""
	cfg.EmbedDimensions = 8
	ctx := config.WithContext(context.Background(), &cfg)

	embedder, err := BuildEmbedder(ctx, &cfg)
	require.NoError(t, err)
	require.Equal(t, 8, embedder.Dimension())

	vecs, err := embedder.EmbedTexts(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 8)
}

func TestBuildEmbedderRequiresProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbedType = "none"
	cfg.EmbedFallbackType = ""
	ctx := config.WithContext(context.Background(), &cfg)

	_, err := BuildEmbedder(ctx, &cfg)
	require.Error(t, err)
}

func TestBuildGeneratorUnknownKind(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GenerateType = "does-not-exist"
	ctx := config.WithContext(context.Background(), &cfg)

	_, err := BuildGenerator(ctx, &cfg)
	require.Error(t, err)
}

func TestAccessLogMiddlewarePassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(accessLogMiddleware("/health"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/v1/thing", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for path, want := range map[string]int{
		"/health":   http.StatusOK,
		"/v1/thing": http.StatusNoContent,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, want, w.Code, path)
	}
}
