package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mdcards/mdcards/pkg/models"
)

func (s *Store) CreateDeck(ctx context.Context, input models.CreateDeckInput) (*models.Deck, error) {
	var deck *models.Deck
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deck, err = createDeckTx(tx, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deck, nil
}

func createDeckTx(tx *sql.Tx, input models.CreateDeckInput) (*models.Deck, error) {
	id, err := nextID(tx, "nextDeckId")
	if err != nil {
		return nil, err
	}
	now := nowString()
	if _, err := tx.Exec(
		`INSERT INTO decks (id, name, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, input.Name, input.Description, now, now); err != nil {
		return nil, fmt.Errorf("failed to insert deck: %w", err)
	}
	return &models.Deck{
		ID:          id,
		Name:        input.Name,
		Description: input.Description,
		CreatedAt:   parseTime(now),
		UpdatedAt:   parseTime(now),
	}, nil
}

func (s *Store) GetDeck(ctx context.Context, id int64) (*models.Deck, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT d.id, d.name, COALESCE(d.description, ''), d.created_at, d.updated_at,
		        (SELECT count(*) FROM cards c WHERE c.deck_id = d.id)
		 FROM decks d WHERE d.id = ?`, id)
	return scanDeck(row)
}

// ListDecks returns all decks with their card counts, newest first.
func (s *Store) ListDecks(ctx context.Context) ([]models.Deck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.name, COALESCE(d.description, ''), d.created_at, d.updated_at,
		        (SELECT count(*) FROM cards c WHERE c.deck_id = d.id)
		 FROM decks d
		 ORDER BY datetime(d.created_at) DESC, d.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	defer rows.Close()

	var decks []models.Deck
	for rows.Next() {
		deck, err := scanDeckRows(rows)
		if err != nil {
			return nil, err
		}
		decks = append(decks, *deck)
	}
	return decks, rows.Err()
}

func (s *Store) UpdateDeck(ctx context.Context, id int64, input models.CreateDeckInput) (*models.Deck, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE decks SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		input.Name, input.Description, nowString(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update deck: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrDeckNotFound
	}
	return s.GetDeck(ctx, id)
}

// DeleteDeck removes the deck; the foreign key cascade removes its cards.
func (s *Store) DeleteDeck(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM decks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDeckNotFound
	}
	return nil
}

// CreateDeckFromImport persists an imported deck and all its cards in one
// transaction. Imported guids are kept when well-formed and unused;
// anything else gets a fresh one, so colliding or missing guids still
// yield distinct cards.
func (s *Store) CreateDeckFromImport(ctx context.Context, imported *models.ImportedDeck) (*models.Deck, int, error) {
	var deck *models.Deck
	count := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deck, err = createDeckTx(tx, models.CreateDeckInput{
			Name:        imported.Name,
			Description: imported.Description,
		})
		if err != nil {
			return err
		}

		sortKey := 0.0
		for _, card := range imported.Cards {
			sortKey += sortKeyStep
			guid, err := claimGUID(tx, card.GUID)
			if err != nil {
				return err
			}
			if err := insertCardTx(tx, insertCardParams{
				deckID:     deck.ID,
				guid:       guid,
				frontText:  card.FrontText,
				frontImage: card.FrontImage,
				backText:   card.BackText,
				backImage:  card.BackImage,
				sortKey:    sortKey,
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	deck.CardCount = count
	return deck, count, nil
}

type deckScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeck(row *sql.Row) (*models.Deck, error) {
	deck, err := scanDeckFrom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeckNotFound
	}
	return deck, err
}

func scanDeckRows(rows *sql.Rows) (*models.Deck, error) {
	return scanDeckFrom(rows)
}

func scanDeckFrom(sc deckScanner) (*models.Deck, error) {
	var deck models.Deck
	var created, updated string
	if err := sc.Scan(&deck.ID, &deck.Name, &deck.Description, &created, &updated, &deck.CardCount); err != nil {
		return nil, err
	}
	deck.CreatedAt = parseTime(created)
	deck.UpdatedAt = parseTime(updated)
	return &deck, nil
}
