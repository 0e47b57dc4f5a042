package content

import (
	"github.com/noteleaf/noteleaf/internal/models"
)

// knownKinds is the closed set of payload discriminants the store accepts.
var knownKinds = map[models.PayloadKind]bool{
	models.KindFolder:         true,
	models.KindNote:           true,
	models.KindFile:           true,
	models.KindHTML:           true,
	models.KindCode:           true,
	models.KindFolderSettings: true,
	models.KindExternalLink:   true,
	models.KindChat:           true,
	models.KindVisualization:  true,
	models.KindTabularData:    true,
	models.KindGoal:           true,
	models.KindWorkflow:       true,
}

// KnownKind reports whether k is an accepted payload kind.
func KnownKind(k models.PayloadKind) bool {
	return knownKinds[k]
}

// resolvePayload checks that exactly one variant matching the declared kind
// is populated and returns the effective kind. A nil payload is a folder.
func resolvePayload(p *models.Payload) (models.PayloadKind, error) {
	if p == nil {
		return models.KindFolder, nil
	}
	if p.Kind == "" {
		p.Kind = deriveKind(p)
	}
	if !knownKinds[p.Kind] {
		return "", models.BadRequest("unknown payload kind").WithDetail("kind", string(p.Kind))
	}
	if err := checkVariant(p); err != nil {
		return "", err
	}
	return p.Kind, nil
}

// deriveKind infers the kind from which variant pointer is set. Doc-shaped
// payloads cannot be derived and must declare their kind explicitly.
func deriveKind(p *models.Payload) models.PayloadKind {
	switch {
	case p.Note != nil:
		return models.KindNote
	case p.File != nil:
		return models.KindFile
	case p.HTML != nil:
		return models.KindHTML
	case p.Code != nil:
		return models.KindCode
	case p.Link != nil:
		return models.KindExternalLink
	case p.FolderSettings != nil:
		return models.KindFolderSettings
	default:
		return models.KindFolder
	}
}

// checkVariant enforces the exactly-one-variant rule: the pointer matching
// Kind must be set and every other pointer must be nil.
func checkVariant(p *models.Payload) error {
	variants := map[models.PayloadKind]bool{
		models.KindNote:           p.Note != nil,
		models.KindFile:           p.File != nil,
		models.KindHTML:           p.HTML != nil,
		models.KindCode:           p.Code != nil,
		models.KindExternalLink:   p.Link != nil,
		models.KindFolderSettings: p.FolderSettings != nil,
	}
	docSet := p.Doc != nil
	want := p.Kind
	isDocKind := want == models.KindChat || want == models.KindVisualization ||
		want == models.KindTabularData || want == models.KindGoal || want == models.KindWorkflow

	count := 0
	for _, set := range variants {
		if set {
			count++
		}
	}
	if docSet {
		count++
	}

	switch {
	case want == models.KindFolder:
		if count != 0 {
			return models.BadRequest("folder nodes cannot carry a payload")
		}
	case isDocKind:
		if !docSet || count != 1 {
			return models.BadRequest("payload must carry exactly the variant matching its kind").
				WithDetail("kind", string(want))
		}
	default:
		if !variants[want] || count != 1 {
			return models.BadRequest("payload must carry exactly the variant matching its kind").
				WithDetail("kind", string(want))
		}
	}
	return nil
}
