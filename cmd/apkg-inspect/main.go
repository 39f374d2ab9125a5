// apkg-inspect decodes an .apkg file and prints what the importer would
// create, without touching the application database. Extracted media lands
// in a throwaway directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mdcards/mdcards/internal/anki"
	"github.com/mdcards/mdcards/internal/media"
	"github.com/mdcards/mdcards/pkg/logger"
)

func main() {
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	keepMedia := flag.Bool("keep-media", false, "keep extracted media on disk")
	flag.Parse()

	log := logger.New(logger.WithPrefix("[apkg-inspect] "))
	log.SetVerbose(*verbose)

	if flag.NArg() != 1 {
		log.Fatal("usage: apkg-inspect [-verbose] [-keep-media] <file.apkg>")
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal("Error reading %s: %v", path, err)
	}

	mediaDir, err := os.MkdirTemp("", "apkg-inspect-*")
	if err != nil {
		log.Fatal("Error creating media directory: %v", err)
	}
	if !*keepMedia {
		defer os.RemoveAll(mediaDir)
	}

	md, err := media.NewStore(mediaDir, log)
	if err != nil {
		log.Fatal("Error opening media store: %v", err)
	}

	importer := anki.NewImporter(md, log)
	deck, err := importer.Import(context.Background(), data)
	if err != nil {
		log.Fatal("Error decoding package: %v", err)
	}

	fmt.Printf("Deck: %s\n", deck.Name)
	fmt.Printf("Cards: %d\n", len(deck.Cards))
	for i, card := range deck.Cards {
		fmt.Printf("--- card %d (guid %s)\n", i+1, card.GUID)
		if card.FrontText != "" {
			fmt.Printf("  front: %s\n", firstLine(card.FrontText))
		}
		if card.FrontImage != "" {
			fmt.Printf("  front image: %s\n", card.FrontImage)
		}
		if card.BackText != "" {
			fmt.Printf("  back: %s\n", firstLine(card.BackText))
		}
		if card.BackImage != "" {
			fmt.Printf("  back image: %s\n", card.BackImage)
		}
	}
	if *keepMedia {
		fmt.Printf("Media extracted to %s\n", mediaDir)
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
