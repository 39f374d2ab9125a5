package anki

import (
	"context"
	"fmt"

	"github.com/mdcards/mdcards/pkg/logger"
	"github.com/mdcards/mdcards/pkg/models"
)

// Importer decodes .apkg packages into the application's card model.
type Importer struct {
	store MediaStore
	open  DBOpener
	log   *logger.Logger
}

// ImporterOption tweaks importer construction.
type ImporterOption func(*Importer)

// WithDBOpener overrides the database opener used for the embedded
// collection. Tests inject failing or instrumented openers here.
func WithDBOpener(open DBOpener) ImporterOption {
	return func(imp *Importer) {
		imp.open = open
	}
}

func NewImporter(store MediaStore, log *logger.Logger, options ...ImporterOption) *Importer {
	imp := &Importer{
		store: store,
		open:  OpenSQLite,
		log:   log,
	}
	for _, opt := range options {
		opt(imp)
	}
	return imp
}

// Import decodes one complete package. Every unrecovered failure comes
// back wrapped in ErrImportFailed; localized failures (one image, one
// manifest) degrade instead of aborting.
func (imp *Importer) Import(ctx context.Context, apkg []byte) (*models.ImportedDeck, error) {
	container, err := OpenContainer(apkg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}

	media, strategy := ResolveManifest(container, imp.log)
	imp.log.Debug("media manifest resolved via %s (%d entries)", strategy, len(media))

	col, err := LoadCollection(ctx, container, imp.open, imp.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	imp.log.Info("importing deck %q with %d notes", col.DeckName, len(col.Notes))

	classifier := NewClassifier(container, media, imp.store, imp.log)

	deck := &models.ImportedDeck{Name: col.DeckName}
	for _, note := range col.Notes {
		content := classifier.Classify(note.Fields, col.FieldNames[note.ModelID])
		deck.Cards = append(deck.Cards, models.ImportedCard{
			GUID:       note.GUID,
			FrontText:  content.FrontText,
			FrontImage: content.FrontImage,
			BackText:   content.BackText,
			BackImage:  content.BackImage,
		})
	}
	return deck, nil
}
