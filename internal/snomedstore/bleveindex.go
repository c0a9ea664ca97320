package snomedstore

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/index/scorch"

	"github.com/wardle/go-terminology/internal/bin"
)

// SearchIndex is an optional on-disk bleve index over the store's active
// description terms. The in-memory segment scan of SearchFilter is the
// primary path; a built index accelerates free-text search on large
// editions where the linear scan is too slow for interactive use.
type SearchIndex struct {
	index bleve.Index
}

// searchDocument is the document indexed per description.
type searchDocument struct {
	ID       string   // concept offset, the iteration currency of the store
	Term     string   // the description term
	Keywords []string // "ca" marks an active concept
}

// OpenSearchIndex opens an existing index at path, or creates one when
// absent and readOnly is false.
func OpenSearchIndex(path string, readOnly bool) (*SearchIndex, error) {
	config := map[string]interface{}{"read_only": readOnly}
	index, err := bleve.OpenUsing(path, config)
	if err == nil {
		return &SearchIndex{index: index}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, err
	}
	if readOnly {
		return nil, fmt.Errorf("snomedstore: no search index at %s", path)
	}
	indexMapping := bleve.NewIndexMapping()
	documentMapping := bleve.NewDocumentMapping()
	indexMapping.AddDocumentMapping("document", documentMapping)
	indexMapping.DefaultType = "document"

	termMapping := bleve.NewTextFieldMapping()
	termMapping.Analyzer = "en"
	termMapping.Store = false
	documentMapping.AddFieldMappingsAt("Term", termMapping)

	keywordMapping := bleve.NewTextFieldMapping()
	keywordMapping.Analyzer = keyword.Name
	keywordMapping.Store = false
	keywordMapping.IncludeInAll = false
	keywordMapping.IncludeTermVectors = false
	documentMapping.AddFieldMappingsAt("Keywords", keywordMapping)

	index, err = bleve.NewUsing(path, indexMapping, scorch.Name, scorch.Name, nil)
	if err != nil {
		return nil, err
	}
	return &SearchIndex{index: index}, nil
}

// Close releases the index.
func (si *SearchIndex) Close() error { return si.index.Close() }

// Build indexes every active description of the store, batched.
func (si *SearchIndex) Build(svc *Service) error {
	store := svc.Store()
	batch := si.index.NewBatch()
	n := store.Concepts.Count()
	for i := 0; i < n; i++ {
		c, err := store.Concepts.GetByIndex(i)
		if err != nil {
			return err
		}
		off := store.Concepts.OffsetOf(i)
		descs, err := svc.Descriptions(off)
		if err != nil {
			return err
		}
		for j, d := range descs {
			if !d.Active {
				continue
			}
			term, err := store.Strings.Get(d.StrOff)
			if err != nil {
				return err
			}
			doc := searchDocument{
				ID:   strconv.FormatUint(uint64(off), 10) + "-" + strconv.Itoa(j),
				Term: term,
			}
			if c.IsActive() {
				doc.Keywords = []string{"ca"}
			}
			if err := batch.Index(doc.ID, &doc); err != nil {
				return err
			}
		}
		if batch.Size() > 5000 {
			if err := si.index.Batch(batch); err != nil {
				return err
			}
			batch = si.index.NewBatch()
		}
	}
	return si.index.Batch(batch)
}

// Search returns the matching concept offsets ranked by score, capped at
// limit, restricted to active concepts unless includeInactive.
func (si *SearchIndex) Search(text string, includeInactive bool, limit int) ([]bin.Offset, error) {
	query := bleve.NewConjunctionQuery(bleve.NewMatchQuery(text))
	if !includeInactive {
		tq := bleve.NewTermQuery("ca")
		tq.SetField("Keywords")
		query.AddQuery(tq)
	}
	req := bleve.NewSearchRequest(query)
	req.Size = limit
	result, err := si.index.Search(req)
	if err != nil {
		return nil, err
	}
	seen := make(map[bin.Offset]bool)
	out := make([]bin.Offset, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var off uint64
		if _, err := fmt.Sscanf(hit.ID, "%d-", &off); err != nil {
			continue
		}
		o := bin.Offset(off)
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out, nil
}
