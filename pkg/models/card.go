package models

import (
	"time"
)

// Deck groups cards under a user-visible name.
type Deck struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CardCount   int       `json:"card_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Card is one flashcard. Text fields hold Markdown; image fields hold
// relative upload paths like "/uploads/abc.png". GUID is a 64 hex character
// identifier that survives export/import round trips.
type Card struct {
	ID         int64     `json:"id"`
	DeckID     int64     `json:"deck_id"`
	GUID       string    `json:"guid"`
	FrontText  string    `json:"front_text,omitempty"`
	FrontImage string    `json:"front_image,omitempty"`
	BackText   string    `json:"back_text,omitempty"`
	BackImage  string    `json:"back_image,omitempty"`
	SortKey    float64   `json:"sort_key"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ImportedDeck is the transient result of decoding an .apkg package,
// before anything is persisted to the deck store.
type ImportedDeck struct {
	Name        string
	Description string
	Cards       []ImportedCard
}

// ImportedCard mirrors Card minus persistence fields. Image paths point at
// files the importer already wrote to the media store.
type ImportedCard struct {
	GUID       string
	FrontText  string
	FrontImage string
	BackText   string
	BackImage  string
}

// CreateCardInput carries the card-creation payload. InsertBeforeID and
// InsertAfterID select a neighbor for sparse-order insertion; when both are
// zero the card is appended to the end of the deck.
type CreateCardInput struct {
	DeckID         int64  `json:"deck_id"`
	GUID           string `json:"guid,omitempty"`
	FrontText      string `json:"front_text,omitempty"`
	FrontImage     string `json:"front_image,omitempty"`
	BackText       string `json:"back_text,omitempty"`
	BackImage      string `json:"back_image,omitempty"`
	InsertBeforeID int64  `json:"insert_before_id,omitempty"`
	InsertAfterID  int64  `json:"insert_after_id,omitempty"`
}

// UpdateCardInput carries the full replacement content for a card.
type UpdateCardInput struct {
	FrontText  string `json:"front_text,omitempty"`
	FrontImage string `json:"front_image,omitempty"`
	BackText   string `json:"back_text,omitempty"`
	BackImage  string `json:"back_image,omitempty"`
}

// CreateDeckInput carries the deck-creation payload.
type CreateDeckInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
