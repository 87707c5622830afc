package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"

	"github.com/inboxia/mailcore/interfaces"
	er "github.com/inboxia/mailcore/internal/errors"
	"github.com/inboxia/mailcore/internal/tracing"
)

type SearchHandler struct {
	retrieval interfaces.RetrievalService
}

func NewSearchHandler(retrieval interfaces.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

// Search handles GET /v1/accounts/:id/search?q=...&mode=lexical
func (h *SearchHandler) Search() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "SearchHandler.Search")
		defer span.Finish()
		tracing.TagComponentRest(span)

		accountID := c.Param("id")
		tracing.TagAccount(span, accountID)

		term := strings.TrimSpace(c.Query("q"))
		if term == "" {
			respondWithError(c, span, http.StatusBadRequest, "Missing search term", errors.New("query parameter q is required"))
			return
		}
		mode := c.DefaultQuery("mode", "hybrid")
		span.LogFields(log.String("term", term), log.String("mode", mode))

		var hits interface{}
		var err error
		switch mode {
		case "lexical":
			hits, err = h.retrieval.LexicalSearch(ctx, accountID, term)
		case "hybrid":
			hits, err = h.retrieval.HybridSearch(ctx, accountID, term)
		default:
			respondWithError(c, span, http.StatusBadRequest, "Unknown search mode", errors.Errorf("mode %q is not supported", mode))
			return
		}
		if err != nil {
			if errors.Cause(err) == er.ErrIndexCorrupted {
				respondWithError(c, span, http.StatusInternalServerError, "Search index needs a rebuild", err)
				return
			}
			respondWithError(c, span, http.StatusInternalServerError, "Search failed", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"results": hits})
	}
}
