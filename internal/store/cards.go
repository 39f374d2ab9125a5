package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mdcards/mdcards/pkg/models"
	"github.com/mdcards/mdcards/pkg/utils"
)

// sortKeyStep is the gap between appended cards. Insertions take the
// midpoint of their neighbors, so reordering never renumbers the deck.
const sortKeyStep = 1000.0

// CardOrder selects the listing order for ListCards.
type CardOrder string

const (
	OrderCustom  CardOrder = "custom"
	OrderCreated CardOrder = "created"
	OrderUpdated CardOrder = "updated"
)

const cardColumns = `id, deck_id, guid,
	COALESCE(front_text, ''), COALESCE(front_image, ''),
	COALESCE(back_text, ''), COALESCE(back_image, ''),
	sort_key, created_at, updated_at`

func (s *Store) CreateCard(ctx context.Context, input models.CreateCardInput) (*models.Card, error) {
	var card *models.Card
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		sortKey, err := chooseSortKey(tx, input)
		if err != nil {
			return err
		}
		guid, err := claimGUID(tx, input.GUID)
		if err != nil {
			return err
		}
		id, err := insertCardTxReturning(tx, insertCardParams{
			deckID:     input.DeckID,
			guid:       guid,
			frontText:  input.FrontText,
			frontImage: input.FrontImage,
			backText:   input.BackText,
			backImage:  input.BackImage,
			sortKey:    sortKey,
		})
		if err != nil {
			return err
		}
		card = &models.Card{ID: id}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetCard(ctx, card.ID)
}

// chooseSortKey implements the sparse ordering scheme: append assigns
// last+1000 (1000 on an empty deck); insert-before/after assigns the
// midpoint between the anchor and its neighbor on that side.
func chooseSortKey(tx *sql.Tx, input models.CreateCardInput) (float64, error) {
	anchorID := input.InsertBeforeID
	if anchorID == 0 {
		anchorID = input.InsertAfterID
	}

	if anchorID != 0 {
		var anchorKey float64
		var anchorDeck int64
		err := tx.QueryRow("SELECT sort_key, deck_id FROM cards WHERE id = ?", anchorID).
			Scan(&anchorKey, &anchorDeck)
		if err == nil && anchorDeck == input.DeckID {
			if input.InsertBeforeID != 0 {
				var left float64
				err = tx.QueryRow(
					`SELECT sort_key FROM cards WHERE deck_id = ? AND sort_key < ?
					 ORDER BY sort_key DESC LIMIT 1`,
					input.DeckID, anchorKey).Scan(&left)
				if err == nil {
					return (left + anchorKey) / 2, nil
				}
				return anchorKey - sortKeyStep, nil
			}
			var right float64
			err = tx.QueryRow(
				`SELECT sort_key FROM cards WHERE deck_id = ? AND sort_key > ?
				 ORDER BY sort_key ASC LIMIT 1`,
				input.DeckID, anchorKey).Scan(&right)
			if err == nil {
				return (right + anchorKey) / 2, nil
			}
			return anchorKey + sortKeyStep, nil
		}
		// unknown or cross-deck anchor falls through to append
	}

	var last float64
	err := tx.QueryRow(
		"SELECT sort_key FROM cards WHERE deck_id = ? ORDER BY sort_key DESC LIMIT 1",
		input.DeckID).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return sortKeyStep, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read last sort key: %w", err)
	}
	return last + sortKeyStep, nil
}

// claimGUID returns candidate when it is well-formed and not yet taken,
// otherwise a fresh collision-checked guid.
func claimGUID(tx *sql.Tx, candidate string) (string, error) {
	if utils.IsValidGUID(candidate) {
		taken, err := guidTaken(tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}

	for {
		guid, err := utils.NewGUID()
		if err != nil {
			return "", err
		}
		taken, err := guidTaken(tx, guid)
		if err != nil {
			return "", err
		}
		if !taken {
			return guid, nil
		}
	}
}

func guidTaken(tx *sql.Tx, guid string) (bool, error) {
	var n int
	if err := tx.QueryRow("SELECT count(*) FROM cards WHERE guid = ?", guid).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check guid: %w", err)
	}
	return n > 0, nil
}

type insertCardParams struct {
	deckID     int64
	guid       string
	frontText  string
	frontImage string
	backText   string
	backImage  string
	sortKey    float64
}

func insertCardTx(tx *sql.Tx, p insertCardParams) error {
	_, err := insertCardTxReturning(tx, p)
	return err
}

func insertCardTxReturning(tx *sql.Tx, p insertCardParams) (int64, error) {
	id, err := nextID(tx, "nextCardId")
	if err != nil {
		return 0, err
	}
	now := nowString()
	if _, err := tx.Exec(
		`INSERT INTO cards (id, deck_id, guid, front_text, front_image,
		                    back_text, back_image, sort_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.deckID, p.guid,
		nullable(p.frontText), nullable(p.frontImage),
		nullable(p.backText), nullable(p.backImage),
		p.sortKey, now, now); err != nil {
		return 0, fmt.Errorf("failed to insert card: %w", err)
	}
	return id, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+cardColumns+" FROM cards WHERE id = ?", id)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	return card, err
}

// ListCards returns a deck's cards (all cards when deckID is 0) in the
// requested order. Custom order is the user-visible one: sort_key
// ascending with created_at as the tiebreak.
func (s *Store) ListCards(ctx context.Context, deckID int64, order CardOrder) ([]models.Card, error) {
	orderBy := "ORDER BY sort_key ASC, datetime(created_at) ASC"
	switch order {
	case OrderCreated:
		orderBy = "ORDER BY datetime(created_at) DESC"
	case OrderUpdated:
		orderBy = "ORDER BY datetime(updated_at) DESC"
	}

	query := "SELECT " + cardColumns + " FROM cards "
	args := []interface{}{}
	if deckID != 0 {
		query += "WHERE deck_id = ? "
		args = append(args, deckID)
	}
	query += orderBy

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

func (s *Store) UpdateCard(ctx context.Context, id int64, input models.UpdateCardInput) (*models.Card, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE cards SET front_text = ?, front_image = ?, back_text = ?,
		        back_image = ?, updated_at = ?
		 WHERE id = ?`,
		nullable(input.FrontText), nullable(input.FrontImage),
		nullable(input.BackText), nullable(input.BackImage),
		nowString(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrCardNotFound
	}
	return s.GetCard(ctx, id)
}

func (s *Store) DeleteCard(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM cards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrCardNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(sc rowScanner) (*models.Card, error) {
	var card models.Card
	var created, updated string
	if err := sc.Scan(&card.ID, &card.DeckID, &card.GUID,
		&card.FrontText, &card.FrontImage,
		&card.BackText, &card.BackImage,
		&card.SortKey, &created, &updated); err != nil {
		return nil, err
	}
	card.CreatedAt = parseTime(created)
	card.UpdatedAt = parseTime(updated)
	return &card, nil
}
