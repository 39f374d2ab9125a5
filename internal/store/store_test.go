package store_test

import (
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mdcards/mdcards/internal/store"
	"github.com/mdcards/mdcards/pkg/models"
	"github.com/mdcards/mdcards/pkg/utils"
)

var _ = Describe("Store", func() {
	var (
		s   *store.Store
		ctx context.Context
	)

	BeforeEach(func() {
		var err error
		s, err = store.Open(filepath.Join(GinkgoT().TempDir(), "test.db"), storeTestLogger())
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		Expect(s.Close()).To(Succeed())
	})

	newDeck := func(name string) *models.Deck {
		deck, err := s.CreateDeck(ctx, models.CreateDeckInput{Name: name})
		Expect(err).NotTo(HaveOccurred())
		return deck
	}

	appendCard := func(deckID int64, front string) *models.Card {
		card, err := s.CreateCard(ctx, models.CreateCardInput{DeckID: deckID, FrontText: front})
		Expect(err).NotTo(HaveOccurred())
		return card
	}

	Describe("decks", func() {
		It("creates and lists decks with card counts", func() {
			deck := newDeck("Biology")
			appendCard(deck.ID, "cell")
			appendCard(deck.ID, "membrane")

			decks, err := s.ListDecks(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(decks).To(HaveLen(1))
			Expect(decks[0].Name).To(Equal("Biology"))
			Expect(decks[0].CardCount).To(Equal(2))
		})

		It("updates deck name and description", func() {
			deck := newDeck("Old")
			updated, err := s.UpdateDeck(ctx, deck.ID, models.CreateDeckInput{
				Name: "New", Description: "renamed",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("New"))
			Expect(updated.Description).To(Equal("renamed"))
		})

		It("returns not-found errors for unknown decks", func() {
			_, err := s.GetDeck(ctx, 999)
			Expect(err).To(MatchError(store.ErrDeckNotFound))
			Expect(s.DeleteDeck(ctx, 999)).To(MatchError(store.ErrDeckNotFound))
		})

		It("cascades deck deletion to its cards", func() {
			deck := newDeck("Doomed")
			card := appendCard(deck.ID, "gone soon")

			Expect(s.DeleteDeck(ctx, deck.ID)).To(Succeed())
			_, err := s.GetCard(ctx, card.ID)
			Expect(err).To(MatchError(store.ErrCardNotFound))
		})
	})

	Describe("sparse ordering", func() {
		It("appends with a fixed gap starting at 1000", func() {
			deck := newDeck("Order")
			a := appendCard(deck.ID, "a")
			b := appendCard(deck.ID, "b")
			c := appendCard(deck.ID, "c")

			Expect(a.SortKey).To(Equal(1000.0))
			Expect(b.SortKey).To(Equal(2000.0))
			Expect(c.SortKey).To(Equal(3000.0))
		})

		It("inserts before a card at the midpoint of its neighbors", func() {
			deck := newDeck("Order")
			appendCard(deck.ID, "first")
			second := appendCard(deck.ID, "second")

			between, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "between", InsertBeforeID: second.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(between.SortKey).To(Equal(1500.0))
		})

		It("inserts before the first card below its key", func() {
			deck := newDeck("Order")
			first := appendCard(deck.ID, "first")

			before, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "new head", InsertBeforeID: first.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(before.SortKey).To(Equal(0.0))

			cards, err := s.ListCards(ctx, deck.ID, store.OrderCustom)
			Expect(err).NotTo(HaveOccurred())
			Expect(cards[0].FrontText).To(Equal("new head"))
		})

		It("inserts after a card at the midpoint of its neighbors", func() {
			deck := newDeck("Order")
			first := appendCard(deck.ID, "first")
			appendCard(deck.ID, "second")

			after, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "middle", InsertAfterID: first.ID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(after.SortKey).To(Equal(1500.0))
		})

		It("converges under repeated insertions without renumbering", func() {
			deck := newDeck("Order")
			appendCard(deck.ID, "left")
			anchor := appendCard(deck.ID, "right")

			seen := map[float64]bool{1000.0: true, 2000.0: true}
			for i := 0; i < 20; i++ {
				card, err := s.CreateCard(ctx, models.CreateCardInput{
					DeckID: deck.ID, FrontText: "wedge", InsertBeforeID: anchor.ID,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(card.SortKey).To(BeNumerically(">", 1000.0))
				Expect(card.SortKey).To(BeNumerically("<", anchor.SortKey))
				Expect(seen[card.SortKey]).To(BeFalse())
				seen[card.SortKey] = true
			}

			cards, err := s.ListCards(ctx, deck.ID, store.OrderCustom)
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(22))
			Expect(cards[0].FrontText).To(Equal("left"))
			Expect(cards[len(cards)-1].FrontText).To(Equal("right"))
		})
	})

	Describe("guids", func() {
		It("assigns a fresh 64 hex character guid to new cards", func() {
			deck := newDeck("Guids")
			card := appendCard(deck.ID, "x")
			Expect(utils.IsValidGUID(card.GUID)).To(BeTrue())
		})

		It("keeps a supplied well-formed guid", func() {
			deck := newDeck("Guids")
			guid := strings.Repeat("ab", 32)
			card, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "x", GUID: guid,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(card.GUID).To(Equal(guid))
		})

		It("replaces colliding guids so both cards persist", func() {
			deck := newDeck("Guids")
			guid := strings.Repeat("cd", 32)
			first, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "one", GUID: guid,
			})
			Expect(err).NotTo(HaveOccurred())

			second, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "two", GUID: guid,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.GUID).NotTo(Equal(first.GUID))
			Expect(utils.IsValidGUID(second.GUID)).To(BeTrue())
		})

		It("replaces malformed guids", func() {
			deck := newDeck("Guids")
			card, err := s.CreateCard(ctx, models.CreateCardInput{
				DeckID: deck.ID, FrontText: "x", GUID: "not-a-guid",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(utils.IsValidGUID(card.GUID)).To(BeTrue())
		})
	})

	Describe("imports", func() {
		It("persists an imported deck with all cards in order", func() {
			imported := &models.ImportedDeck{
				Name: "Imported",
				Cards: []models.ImportedCard{
					{GUID: strings.Repeat("11", 32), FrontText: "f1", BackText: "b1"},
					{GUID: strings.Repeat("11", 32), FrontText: "f2"}, // colliding guid
					{FrontText: "f3", FrontImage: "/uploads/x.png"},   // missing guid
				},
			}
			deck, count, err := s.CreateDeckFromImport(ctx, imported)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))

			cards, err := s.ListCards(ctx, deck.ID, store.OrderCustom)
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(3))
			Expect(cards[0].FrontText).To(Equal("f1"))
			Expect(cards[1].FrontText).To(Equal("f2"))
			Expect(cards[2].FrontText).To(Equal("f3"))
			Expect(cards[2].FrontImage).To(Equal("/uploads/x.png"))

			guids := map[string]bool{}
			for _, card := range cards {
				Expect(utils.IsValidGUID(card.GUID)).To(BeTrue())
				guids[card.GUID] = true
			}
			Expect(guids).To(HaveLen(3))
		})
	})

	Describe("cards", func() {
		It("updates card content", func() {
			deck := newDeck("Edit")
			card := appendCard(deck.ID, "before")

			updated, err := s.UpdateCard(ctx, card.ID, models.UpdateCardInput{
				FrontText: "after", BackText: "with back",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.FrontText).To(Equal("after"))
			Expect(updated.BackText).To(Equal("with back"))
			Expect(updated.GUID).To(Equal(card.GUID))
		})

		It("deletes cards", func() {
			deck := newDeck("Del")
			card := appendCard(deck.ID, "bye")
			Expect(s.DeleteCard(ctx, card.ID)).To(Succeed())
			Expect(s.DeleteCard(ctx, card.ID)).To(MatchError(store.ErrCardNotFound))
		})

		It("filters card listings by deck", func() {
			deckA := newDeck("A")
			deckB := newDeck("B")
			appendCard(deckA.ID, "a1")
			appendCard(deckB.ID, "b1")

			cards, err := s.ListCards(ctx, deckA.ID, store.OrderCustom)
			Expect(err).NotTo(HaveOccurred())
			Expect(cards).To(HaveLen(1))
			Expect(cards[0].FrontText).To(Equal("a1"))
		})
	})
})
