package api

import (
	"github.com/gin-gonic/gin"

	"github.com/mdcards/mdcards/internal/anki"
	"github.com/mdcards/mdcards/internal/config"
	"github.com/mdcards/mdcards/internal/media"
	"github.com/mdcards/mdcards/internal/store"
	"github.com/mdcards/mdcards/pkg/logger"
)

// Server wires the deck store, media store and the package codec behind
// the HTTP routes.
type Server struct {
	store    *store.Store
	media    *media.Store
	importer *anki.Importer
	exporter *anki.Exporter
	cfg      *config.Config
	log      *logger.Logger
}

func NewServer(st *store.Store, md *media.Store, cfg *config.Config, log *logger.Logger) *Server {
	return &Server{
		store:    st,
		media:    md,
		importer: anki.NewImporter(md, log),
		exporter: anki.NewExporter(md, log),
		cfg:      cfg,
		log:      log,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	{
		decks := api.Group("/decks")
		{
			decks.GET("", s.listDecks)
			decks.POST("", s.createDeck)
			decks.POST("/import", s.importDeck)
			decks.GET("/:id", s.getDeck)
			decks.PUT("/:id", s.updateDeck)
			decks.DELETE("/:id", s.deleteDeck)
			decks.GET("/:id/export", s.exportDeck)
		}

		cards := api.Group("/cards")
		{
			cards.GET("", s.listCards)
			cards.POST("", s.createCard)
			cards.POST("/upload", s.uploadImage)
			cards.GET("/:id", s.getCard)
			cards.PUT("/:id", s.updateCard)
			cards.DELETE("/:id", s.deleteCard)
		}
	}

	router.Static(media.URLPrefix, s.media.Root())

	return router
}

func errorBody(message string) gin.H {
	return gin.H{"error": message}
}
