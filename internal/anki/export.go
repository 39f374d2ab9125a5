package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/mdcards/mdcards/pkg/logger"
	"github.com/mdcards/mdcards/pkg/models"
	"github.com/mdcards/mdcards/pkg/utils"
)

// MediaReader resolves a card's stored image path ("/uploads/...") back to
// bytes. The read half of the application's upload store.
type MediaReader interface {
	Read(relPath string) ([]byte, error)
}

// Every generated note carries this stylesheet inline so its HTML is
// self-contained in any Anki client.
const noteCSS = `<style>
.card {
  font-family: arial;
  font-size: 20px;
  text-align: left;
  color: black;
  background-color: white;
}
img { max-width: 100%; }
</style>`

const exportModelName = "mdcards Basic"

var markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// Exporter renders decks into .apkg packages readable by standard Anki
// clients.
type Exporter struct {
	media MediaReader
	open  DBOpener
	log   *logger.Logger
}

// ExporterOption tweaks exporter construction.
type ExporterOption func(*Exporter)

// WithExportDBOpener overrides the opener used for the generated
// collection database.
func WithExportDBOpener(open DBOpener) ExporterOption {
	return func(e *Exporter) {
		e.open = open
	}
}

func NewExporter(media MediaReader, log *logger.Logger, options ...ExporterOption) *Exporter {
	e := &Exporter{
		media: media,
		open:  OpenSQLite,
		log:   log,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// mediaRegistry assigns consecutive numeric archive names to referenced
// media, deduplicating by original filename.
type mediaRegistry struct {
	names []string
	data  [][]byte
	index map[string]int
}

func newMediaRegistry() *mediaRegistry {
	return &mediaRegistry{index: map[string]int{}}
}

func (r *mediaRegistry) add(name string, data []byte) {
	if _, ok := r.index[name]; ok {
		return
	}
	r.index[name] = len(r.names)
	r.names = append(r.names, name)
	r.data = append(r.data, data)
}

func (r *mediaRegistry) manifest() ([]byte, error) {
	m := make(map[string]string, len(r.names))
	for i, name := range r.names {
		m[strconv.Itoa(i)] = name
	}
	return json.Marshal(m)
}

type exportNote struct {
	guid  string
	front string
	back  string
}

// Export serializes deck and cards into a complete .apkg byte buffer.
// An empty deck is a caller precondition failure (ErrNoCards), not a
// codec defect.
func (e *Exporter) Export(ctx context.Context, deck *models.Deck, cards []models.Card) ([]byte, error) {
	if len(cards) == 0 {
		return nil, ErrNoCards
	}

	md := goldmark.New(
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithUnsafe(),
		),
	)
	registry := newMediaRegistry()

	notes := make([]exportNote, 0, len(cards))
	for _, card := range cards {
		front, err := e.renderSide(md, card.FrontText, card.FrontImage, registry)
		if err != nil {
			return nil, err
		}
		back, err := e.renderSide(md, card.BackText, card.BackImage, registry)
		if err != nil {
			return nil, err
		}
		guid := card.GUID
		if guid == "" {
			guid, err = utils.NewGUID()
			if err != nil {
				return nil, err
			}
		}
		notes = append(notes, exportNote{guid: guid, front: front, back: back})
	}

	dbBytes, err := e.buildCollectionDB(ctx, deck, notes)
	if err != nil {
		return nil, err
	}

	return e.assemblePackage(dbBytes, registry)
}

// renderSide turns one side's Markdown plus optional image field into the
// note HTML stored in the package.
func (e *Exporter) renderSide(md goldmark.Markdown, markdown, imagePath string, registry *mediaRegistry) (string, error) {
	rendered, err := e.renderMarkdown(md, markdown, registry)
	if err != nil {
		return "", err
	}

	if imagePath != "" {
		name, ok := e.registerUpload(imagePath, registry)
		if ok {
			img := fmt.Sprintf(`<img src="%s">`, name)
			if rendered == "" {
				rendered = img
			} else {
				rendered = img + "<br>" + rendered
			}
		}
	}

	if rendered == "" {
		return "", nil
	}
	return noteCSS + rendered, nil
}

// renderMarkdown rehomes /uploads/ image references into the package and
// converts the Markdown to HTML, soft line breaks becoming <br>.
func (e *Exporter) renderMarkdown(md goldmark.Markdown, markdown string, registry *mediaRegistry) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	for _, m := range markdownImageRe.FindAllStringSubmatch(markdown, -1) {
		url := m[1]
		if !strings.HasPrefix(url, "/uploads/") {
			continue
		}
		name, ok := e.registerUpload(url, registry)
		if ok {
			markdown = strings.ReplaceAll(markdown, url, name)
		}
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (e *Exporter) registerUpload(relPath string, registry *mediaRegistry) (string, bool) {
	data, err := e.media.Read(relPath)
	if err != nil {
		e.log.Warn("skipping unreadable media %s: %v", relPath, err)
		return "", false
	}
	name := path.Base(relPath)
	registry.add(name, data)
	return name, true
}

// Anki collection schema version 11, the legacy format every client still
// reads.
const collectionSchema = `
CREATE TABLE col (
  id integer primary key,
  crt integer not null, mod integer not null, scm integer not null,
  ver integer not null, dty integer not null, usn integer not null,
  ls integer not null,
  conf text not null, models text not null, decks text not null,
  dconf text not null, tags text not null
);
CREATE TABLE notes (
  id integer primary key, guid text not null, mid integer not null,
  mod integer not null, usn integer not null, tags text not null,
  flds text not null, sfld text not null, csum integer not null,
  flags integer not null, data text not null
);
CREATE TABLE cards (
  id integer primary key, nid integer not null, did integer not null,
  ord integer not null, mod integer not null, usn integer not null,
  type integer not null, queue integer not null, due integer not null,
  ivl integer not null, factor integer not null, reps integer not null,
  lapses integer not null, left integer not null, odue integer not null,
  odid integer not null, flags integer not null, data text not null
);
CREATE TABLE revlog (
  id integer primary key, cid integer not null, usn integer not null,
  ease integer not null, ivl integer not null, lastIvl integer not null,
  factor integer not null, time integer not null, type integer not null
);
CREATE TABLE graves (
  usn integer not null, oid integer not null, type integer not null
);
CREATE INDEX ix_notes_usn ON notes (usn);
CREATE INDEX ix_cards_usn ON cards (usn);
CREATE INDEX ix_cards_nid ON cards (nid);
CREATE INDEX ix_cards_sched ON cards (did, queue, due);
CREATE INDEX ix_notes_csum ON notes (csum);
CREATE INDEX ix_revlog_usn ON revlog (usn);
CREATE INDEX ix_revlog_cid ON revlog (cid);
`

func (e *Exporter) buildCollectionDB(ctx context.Context, deck *models.Deck, notes []exportNote) ([]byte, error) {
	scratch, err := os.CreateTemp("", "mdcards-export-"+uuid.NewString()+"-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch database: %w", err)
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer os.Remove(scratchPath)

	if err := e.writeCollectionDB(ctx, scratchPath, deck, notes); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(scratchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated collection: %w", err)
	}
	return data, nil
}

func (e *Exporter) writeCollectionDB(ctx context.Context, dbPath string, deck *models.Deck, notes []exportNote) error {
	db, err := e.open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open scratch database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, collectionSchema); err != nil {
		return fmt.Errorf("failed to create collection schema: %w", err)
	}

	now := time.Now()
	base := now.UnixMilli()
	modelID := base
	deckID := base + 1
	epoch := now.Unix()

	conf, err := colConfJSON(modelID)
	if err != nil {
		return err
	}
	modelsBlob, err := modelJSON(modelID, deckID, now)
	if err != nil {
		return err
	}
	decksBlob, err := decksJSON(deckID, deck.Name, deck.Description, now)
	if err != nil {
		return err
	}
	dconf, err := dconfJSON(now)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		 VALUES (1, ?, ?, ?, 11, 0, 0, 0, ?, ?, ?, ?, '{}')`,
		epoch, base, base, conf, modelsBlob, decksBlob, dconf); err != nil {
		return fmt.Errorf("failed to write col row: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, note := range notes {
		noteID := base + 2 + int64(i)*2
		cardID := base + 3 + int64(i)*2
		flds := note.front + fieldSeparator + note.back
		sfld := tagRe.ReplaceAllString(styleRe.ReplaceAllString(note.front, ""), "")

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
			 VALUES (?, ?, ?, ?, -1, '', ?, ?, ?, 0, '')`,
			noteID, note.guid, modelID, epoch, flds, sfld, fieldChecksum(sfld)); err != nil {
			return fmt.Errorf("failed to write note: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due,
			                    ivl, factor, reps, lapses, left, odue, odid, flags, data)
			 VALUES (?, ?, ?, 0, ?, -1, 0, 0, ?, 0, 0, 0, 0, 0, 0, 0, 0, '')`,
			cardID, noteID, deckID, epoch, i+1); err != nil {
			return fmt.Errorf("failed to write card: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit notes: %w", err)
	}
	return nil
}

// fieldChecksum is Anki's sort-field checksum: the first 8 hex digits of
// the sha1 of the field text, as an integer.
func fieldChecksum(text string) int64 {
	sum := sha1.Sum([]byte(text))
	n, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return n
}

func colConfJSON(modelID int64) (string, error) {
	return marshalBlob(map[string]interface{}{
		"nextPos":       1,
		"estTimes":      true,
		"activeDecks":   []int64{1},
		"sortType":      "noteFld",
		"timeLim":       0,
		"sortBackwards": false,
		"addToCur":      true,
		"curDeck":       1,
		"newBury":       true,
		"newSpread":     0,
		"dueCounts":     true,
		"curModel":      strconv.FormatInt(modelID, 10),
		"collapseTime":  1200,
	})
}

func modelJSON(modelID, deckID int64, now time.Time) (string, error) {
	model := map[string]interface{}{
		"id":    modelID,
		"name":  exportModelName,
		"type":  0,
		"mod":   now.Unix(),
		"usn":   -1,
		"sortf": 0,
		"did":   deckID,
		"tmpls": []map[string]interface{}{{
			"name":  "Card 1",
			"ord":   0,
			"qfmt":  "{{Front}}",
			"afmt":  "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}",
			"did":   nil,
			"bqfmt": "",
			"bafmt": "",
		}},
		"flds": []map[string]interface{}{
			{"name": "Front", "ord": 0, "sticky": false, "rtl": false, "font": "Arial", "size": 20, "media": []string{}},
			{"name": "Back", "ord": 1, "sticky": false, "rtl": false, "font": "Arial", "size": 20, "media": []string{}},
		},
		"css":       ".card { font-family: arial; font-size: 20px; text-align: left; color: black; background-color: white; }",
		"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
		"latexPost": "\\end{document}",
		"req":       []interface{}{[]interface{}{0, "all", []int{0}}},
		"vers":      []string{},
		"tags":      []string{},
	}
	return marshalBlob(map[string]interface{}{
		strconv.FormatInt(modelID, 10): model,
	})
}

func decksJSON(deckID int64, name, desc string, now time.Time) (string, error) {
	mkDeck := func(id int64, deckName, deckDesc string) map[string]interface{} {
		return map[string]interface{}{
			"id":        id,
			"name":      deckName,
			"desc":      deckDesc,
			"mod":       now.Unix(),
			"usn":       -1,
			"lrnToday":  []int{0, 0},
			"revToday":  []int{0, 0},
			"newToday":  []int{0, 0},
			"timeToday": []int{0, 0},
			"conf":      1,
			"dyn":       0,
			"collapsed": false,
			"extendNew": 10,
			"extendRev": 50,
		}
	}
	return marshalBlob(map[string]interface{}{
		"1":                            mkDeck(1, "Default", ""),
		strconv.FormatInt(deckID, 10): mkDeck(deckID, name, desc),
	})
}

func dconfJSON(now time.Time) (string, error) {
	return marshalBlob(map[string]interface{}{
		"1": map[string]interface{}{
			"id":       1,
			"name":     "Default",
			"mod":      now.Unix(),
			"usn":      -1,
			"autoplay": true,
			"timer":    0,
			"maxTaken": 60,
			"replayq":  true,
			"dyn":      false,
			"new": map[string]interface{}{
				"delays": []int{1, 10}, "ints": []int{1, 4, 7}, "initialFactor": 2500,
				"order": 1, "perDay": 20, "bury": true, "separate": true,
			},
			"rev": map[string]interface{}{
				"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "ivlFct": 1.0,
				"maxIvl": 36500, "bury": true, "minSpace": 1,
			},
			"lapse": map[string]interface{}{
				"delays": []int{10}, "mult": 0.0, "minInt": 1, "leechFails": 8, "leechAction": 0,
			},
		},
	})
}

func marshalBlob(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal collection blob: %w", err)
	}
	return string(data), nil
}

func (e *Exporter) assemblePackage(dbBytes []byte, registry *mediaRegistry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	write := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("failed to create entry %q: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write entry %q: %w", name, err)
		}
		return nil
	}

	if err := write("collection.anki2", dbBytes); err != nil {
		return nil, err
	}

	manifest, err := registry.manifest()
	if err != nil {
		return nil, err
	}
	if err := write(MediaManifestName, manifest); err != nil {
		return nil, err
	}
	for i, data := range registry.data {
		if err := write(strconv.Itoa(i), data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize package: %w", err)
	}
	return buf.Bytes(), nil
}
