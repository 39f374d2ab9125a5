package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mdcards/mdcards/internal/anki"
	"github.com/mdcards/mdcards/internal/store"
	"github.com/mdcards/mdcards/pkg/models"
)

func (s *Server) listDecks(c *gin.Context) {
	decks, err := s.store.ListDecks(c.Request.Context())
	if err != nil {
		s.log.Warn("failed to list decks: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to list decks"))
		return
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	c.JSON(http.StatusOK, decks)
}

func (s *Server) getDeck(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	deck, err := s.store.GetDeck(c.Request.Context(), id)
	if errors.Is(err, store.ErrDeckNotFound) {
		c.JSON(http.StatusNotFound, errorBody("deck not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to load deck"))
		return
	}
	c.JSON(http.StatusOK, deck)
}

func (s *Server) createDeck(c *gin.Context) {
	var input models.CreateDeckInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Name == "" {
		c.JSON(http.StatusBadRequest, errorBody("deck name is required"))
		return
	}
	deck, err := s.store.CreateDeck(c.Request.Context(), input)
	if err != nil {
		s.log.Warn("failed to create deck: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to create deck"))
		return
	}
	c.JSON(http.StatusCreated, deck)
}

func (s *Server) updateDeck(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input models.CreateDeckInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Name == "" {
		c.JSON(http.StatusBadRequest, errorBody("deck name is required"))
		return
	}
	deck, err := s.store.UpdateDeck(c.Request.Context(), id, input)
	if errors.Is(err, store.ErrDeckNotFound) {
		c.JSON(http.StatusNotFound, errorBody("deck not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to update deck"))
		return
	}
	c.JSON(http.StatusOK, deck)
}

func (s *Server) deleteDeck(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := s.store.DeleteDeck(c.Request.Context(), id)
	if errors.Is(err, store.ErrDeckNotFound) {
		c.JSON(http.StatusNotFound, errorBody("deck not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to delete deck"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deck deleted"})
}

// exportDeck streams the deck as an .apkg attachment.
func (s *Server) exportDeck(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	deck, err := s.store.GetDeck(ctx, id)
	if errors.Is(err, store.ErrDeckNotFound) {
		c.JSON(http.StatusNotFound, errorBody("deck not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to load deck"))
		return
	}

	cards, err := s.store.ListCards(ctx, id, store.OrderCustom)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to load cards"))
		return
	}

	apkg, err := s.exporter.Export(ctx, deck, cards)
	if errors.Is(err, anki.ErrNoCards) {
		c.JSON(http.StatusBadRequest, errorBody("deck has no cards"))
		return
	}
	if err != nil {
		s.log.Warn("export of deck %d failed: %v", id, err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to export deck"))
		return
	}

	filename := url.PathEscape(deck.Name) + ".apkg"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/apkg", apkg)
}

// importDeck accepts a multipart .apkg upload and persists the decoded
// deck with all its cards.
func (s *Server) importDeck(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("missing .apkg file"))
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("unreadable upload"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("unreadable upload"))
		return
	}

	ctx := c.Request.Context()
	imported, err := s.importer.Import(ctx, data)
	if err != nil {
		s.log.Warn("import failed: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, anki.ErrInvalidPackage) || errors.Is(err, anki.ErrMissingCollection) {
			status = http.StatusBadRequest
		}
		c.JSON(status, errorBody("failed to import package"))
		return
	}
	if imported.Name == "" {
		imported.Name = s.cfg.Import.DefaultDeckName
	}

	deck, count, err := s.store.CreateDeckFromImport(ctx, imported)
	if err != nil {
		s.log.Warn("failed to persist imported deck: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to save imported deck"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deck": deck, "card_count": count})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, errorBody("invalid id"))
		return 0, false
	}
	return id, true
}
