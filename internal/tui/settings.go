package tui

import (
	"fmt"
	"strings"

	"github.com/csheth/paperproducer/internal/api"
	"github.com/csheth/paperproducer/internal/report"
)

const maxTopPapers = 50

type settingsField int

const (
	fieldLLMModel settingsField = iota
	fieldEmbeddingModel
	fieldIndexer
	fieldTopPapers
	fieldCount
)

func (f settingsField) label() string {
	switch f {
	case fieldLLMModel:
		return "LLM model"
	case fieldEmbeddingModel:
		return "Embedding model"
	case fieldIndexer:
		return "Indexer"
	case fieldTopPapers:
		return "Top papers"
	default:
		return ""
	}
}

// settingsForm edits a copy of the generation options; nothing changes until it is saved.
type settingsForm struct {
	draft  report.Options
	cursor settingsField
	saving bool
}

func newSettingsForm(current report.Options) settingsForm {
	return settingsForm{draft: current}
}

func (f *settingsForm) move(delta int) {
	next := (int(f.cursor) + delta) % int(fieldCount)
	if next < 0 {
		next += int(fieldCount)
	}
	f.cursor = settingsField(next)
}

// cycle steps the focused field through the service's catalog, or adjusts the paper count.
func (f *settingsForm) cycle(catalog api.Catalog, delta int) {
	switch f.cursor {
	case fieldLLMModel:
		f.draft.LLMModel = cycleChoice(catalog.LLMModels, f.draft.LLMModel, delta)
	case fieldEmbeddingModel:
		f.draft.EmbeddingModel = cycleChoice(catalog.EmbeddingModels, f.draft.EmbeddingModel, delta)
	case fieldIndexer:
		f.draft.IndexerType = cycleChoice(catalog.IndexerTypes, f.draft.IndexerType, delta)
	case fieldTopPapers:
		next := f.draft.TopPapers + delta
		if next < 1 {
			next = 1
		}
		if next > maxTopPapers {
			next = maxTopPapers
		}
		f.draft.TopPapers = next
	}
}

func (f settingsForm) value(field settingsField) string {
	switch field {
	case fieldLLMModel:
		return f.draft.LLMModel
	case fieldEmbeddingModel:
		if f.draft.EmbeddingModel == "" {
			return "(service default)"
		}
		return f.draft.EmbeddingModel
	case fieldIndexer:
		return f.draft.IndexerType
	case fieldTopPapers:
		return fmt.Sprintf("%d", f.draft.TopPapers)
	default:
		return ""
	}
}

// cycleChoice returns the choice delta steps away from current. A current value missing from
// choices starts from the first entry; an empty catalog keeps current.
func cycleChoice(choices []string, current string, delta int) string {
	if len(choices) == 0 {
		return current
	}
	idx := -1
	for i, choice := range choices {
		if strings.EqualFold(choice, current) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return choices[0]
	}
	next := (idx + delta) % len(choices)
	if next < 0 {
		next += len(choices)
	}
	return choices[next]
}
