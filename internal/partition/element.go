package partition

import "context"

type Kind string

const (
	KindText  Kind = "text"
	KindTitle Kind = "title"
	KindTable Kind = "table"
	KindImage Kind = "image"
	KindOther Kind = "other"
)

// Element is one atomic unit produced by partitioning a document.
// Immutable once produced; Page is nil when the source format has no
// page concept (plain text, scraped HTML).
type Element struct {
	Kind        Kind
	Text        string
	Page        *int
	TableHTML   string // populated for KindTable when structure was inferred
	ImageBase64 string // populated for KindImage on file sources
}

// SourceKind distinguishes uploaded files from scraped pages. Position-based
// element mapping is only valid for files, where partition order tracks
// reading order.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

type Request struct {
	// Exactly one of URL or FilePath is set.
	URL      string
	FilePath string
	FileType string
}

type Partitioner interface {
	Partition(ctx context.Context, req Request) ([]Element, error)
}

// Summary tallies element kinds for the partitioning status detail.
type Summary struct {
	Text   int `json:"text"`
	Tables int `json:"tables"`
	Images int `json:"images"`
	Titles int `json:"titles"`
	Other  int `json:"other"`
}

func Summarize(elements []Element) Summary {
	var s Summary
	for _, el := range elements {
		switch el.Kind {
		case KindTable:
			s.Tables++
		case KindImage:
			s.Images++
		case KindTitle:
			s.Titles++
		case KindText:
			s.Text++
		default:
			s.Other++
		}
	}
	return s
}
