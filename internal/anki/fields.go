package anki

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mdcards/mdcards/pkg/logger"
)

// MediaStore persists extracted media. The importer only needs the write
// half of the application's upload store.
type MediaStore interface {
	Save(data []byte, ext string) (string, error)
}

// FrontDemotionLength is the text length past which a field slotted to the
// front moves to the back when the front is already occupied. Empirically
// tuned, pinned by the classifier regression tests.
const FrontDemotionLength = 120

var (
	imgSrcRe     = regexp.MustCompile(`(?i)<img[^>]+src="([^"]+)"`)
	styleRe      = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	sizeLeftRe   = regexp.MustCompile(`(?i)^((width|height)\s*=\s*"?\d+%?"?\s*)+$`)
	backLabelRe  = regexp.MustCompile(`(?i)^(back|answer|背面|答案)$`)
	frontLabelRe = regexp.MustCompile(`(?i)^(front|question|正面|问题)$`)
)

// SideContent is the classifier's card-shaped output for one note.
type SideContent struct {
	FrontText  string
	FrontImage string
	BackText   string
	BackImage  string
}

// Classifier turns a note's raw ordered field values into front/back
// content, extracting embedded images into the media store along the way.
type Classifier struct {
	container *Container
	media     MediaMap
	store     MediaStore
	log       *logger.Logger
}

func NewClassifier(c *Container, media MediaMap, store MediaStore, log *logger.Logger) *Classifier {
	return &Classifier{container: c, media: media, store: store, log: log}
}

type side int

const (
	sideFront side = iota
	sideBack
)

// Classify applies the side-assignment rule chain field by field. Rules in
// precedence order:
//
//  1. a back label (back/answer, English or Chinese) sends the field back
//  2. a front label (front/question) sends it front
//  3. otherwise position decides: 0 front, 1 back, 2+ front while the
//     front is still empty, back after
//  4. a front-slotted field is demoted to back when the front already has
//     content and the field is back-labeled, longer than 120 characters,
//     or not at index 0
//
// Auxiliary labels (matching neither front nor back) are kept as "Label: "
// prefixes. The first extracted image lands on the front, the second on
// the back, the rest are dropped.
func (cl *Classifier) Classify(values, names []string) SideContent {
	var content SideContent
	var frontParts, backParts []string
	imageCount := 0

	for i, value := range values {
		text, image := cl.processField(value)

		if image != "" {
			switch imageCount {
			case 0:
				content.FrontImage = image
			case 1:
				content.BackImage = image
			}
			imageCount++
		}
		if text == "" {
			continue
		}

		label := ""
		if i < len(names) {
			label = strings.TrimSpace(names[i])
		}
		backLabeled := label != "" && backLabelRe.MatchString(label)
		frontLabeled := label != "" && frontLabelRe.MatchString(label)

		target := sideFront
		switch {
		case backLabeled:
			target = sideBack
		case frontLabeled:
			target = sideFront
		case i == 1:
			target = sideBack
		case i >= 2 && len(frontParts) > 0:
			target = sideBack
		}

		if target == sideFront && len(frontParts) > 0 &&
			(backLabeled || utf8.RuneCountInString(text) > FrontDemotionLength || i != 0) {
			target = sideBack
		}

		if label != "" && !frontLabeled && !backLabeled {
			text = label + ": " + text
		}

		if target == sideFront {
			frontParts = append(frontParts, text)
		} else {
			backParts = append(backParts, text)
		}
	}

	content.FrontText = strings.Join(frontParts, "\n")
	content.BackText = strings.Join(backParts, "\n\n")
	return content
}

// processField extracts at most one image reference and reduces the
// field's HTML to plain text.
func (cl *Classifier) processField(field string) (text, image string) {
	if m := imgSrcRe.FindStringSubmatch(field); m != nil {
		image = cl.extractImage(m[1])
	}
	return cleanFieldText(field), image
}

// extractImage copies one referenced archive member into the media store
// and returns its new relative path, or "" when anything along the way
// fails. A lost image never aborts the note.
func (cl *Classifier) extractImage(original string) string {
	entry := original
	if key, ok := cl.media.KeyFor(original); ok {
		entry = key
	}
	if !cl.container.Has(entry) {
		cl.log.Debug("media %q not present in package", original)
		return ""
	}

	data, err := cl.container.ReadEntry(entry)
	if err != nil {
		cl.log.Warn("%v: %s: %v", ErrMediaWrite, original, err)
		return ""
	}
	if LooksCompressed(data) {
		data, err = Decompress(data)
		if err != nil {
			cl.log.Warn("%v: %s: %v", ErrMediaWrite, original, err)
			return ""
		}
	}

	stored, err := cl.store.Save(data, path.Ext(original))
	if err != nil {
		cl.log.Warn("%v: %s: %v", ErrMediaWrite, original, err)
		return ""
	}
	return stored
}

func cleanFieldText(field string) string {
	s := styleRe.ReplaceAllString(field, "")
	s = brRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	out := strings.Join(lines, "\n")

	// leftover attribute fragments from stripped img tags
	if sizeLeftRe.MatchString(strings.TrimSpace(out)) {
		return ""
	}
	return out
}
