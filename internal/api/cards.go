package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mdcards/mdcards/internal/media"
	"github.com/mdcards/mdcards/internal/store"
	"github.com/mdcards/mdcards/pkg/models"
)

func (s *Server) listCards(c *gin.Context) {
	var deckID int64
	if raw := c.Query("deck_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid deck_id"))
			return
		}
		deckID = parsed
	}

	order := store.CardOrder(c.DefaultQuery("order", string(store.OrderCustom)))
	cards, err := s.store.ListCards(c.Request.Context(), deckID, order)
	if err != nil {
		s.log.Warn("failed to list cards: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to list cards"))
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	c.JSON(http.StatusOK, cards)
}

func (s *Server) getCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	card, err := s.store.GetCard(c.Request.Context(), id)
	if errors.Is(err, store.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, errorBody("card not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to load card"))
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) createCard(c *gin.Context) {
	var input models.CreateCardInput
	if err := c.ShouldBindJSON(&input); err != nil || input.DeckID == 0 {
		c.JSON(http.StatusBadRequest, errorBody("deck_id is required"))
		return
	}
	card, err := s.store.CreateCard(c.Request.Context(), input)
	if err != nil {
		s.log.Warn("failed to create card: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to create card"))
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (s *Server) updateCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var input models.UpdateCardInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid card payload"))
		return
	}
	card, err := s.store.UpdateCard(c.Request.Context(), id, input)
	if errors.Is(err, store.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, errorBody("card not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to update card"))
		return
	}
	c.JSON(http.StatusOK, card)
}

func (s *Server) deleteCard(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := s.store.DeleteCard(c.Request.Context(), id)
	if errors.Is(err, store.ErrCardNotFound) {
		c.JSON(http.StatusNotFound, errorBody("card not found"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("failed to delete card"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "card deleted"})
}

// uploadImage stores a user-provided image and returns its /uploads/ URL.
func (s *Server) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("no file uploaded"))
		return
	}
	if file.Size > s.cfg.Upload.MaxSizeBytes {
		c.JSON(http.StatusBadRequest, errorBody("file too large"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !media.AllowedExt(ext) {
		c.JSON(http.StatusBadRequest, errorBody("only JPEG, PNG, GIF and WebP images are supported"))
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

	url, err := s.media.Save(data, ext)
	if err != nil {
		s.log.Warn("failed to store upload: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to store image"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
