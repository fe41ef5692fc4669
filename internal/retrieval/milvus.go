package retrieval

import (
	"context"
	"errors"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"astro-rag/internal/passage"
	"astro-rag/pkg/logging/logging"
)

type MilvusConfig struct {
	Address     string
	Collection  string
	VectorField string // default: vector
	TextField   string // default: text
	SourceField string // default: source
	TopK        int    // default: 5
}

func (c MilvusConfig) withDefaults() MilvusConfig {
	if c.VectorField == "" {
		c.VectorField = "vector"
	}
	if c.TextField == "" {
		c.TextField = "text"
	}
	if c.SourceField == "" {
		c.SourceField = "source"
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	return c
}

// milvusSearcher is the part of client.Client the retriever uses.
type milvusSearcher interface {
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

// MilvusRetriever searches a classical-text collection by cosine similarity.
// Every query must carry an embedding.
type MilvusRetriever struct {
	search milvusSearcher
	cfg    MilvusConfig
	logger *zap.Logger
}

func NewMilvusRetriever(ctx context.Context, cfg MilvusConfig, logger *zap.Logger) (*MilvusRetriever, error) {
	if cfg.Address == "" || cfg.Collection == "" {
		return nil, errors.New("milvus address and collection are required")
	}
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("connect milvus %s: %w", cfg.Address, err)
	}
	return newMilvusRetriever(c, cfg, logger), nil
}

func newMilvusRetriever(s milvusSearcher, cfg MilvusConfig, logger *zap.Logger) *MilvusRetriever {
	return &MilvusRetriever{search: s, cfg: cfg.withDefaults(), logger: logging.Or(logger).Named("milvus")}
}

func (m *MilvusRetriever) RetrievePassages(ctx context.Context, queries []Query) (passage.List, error) {
	if m.search == nil {
		return nil, ErrNoRetriever
	}
	if len(queries) == 0 {
		return passage.List{}, nil
	}

	vectors := make([]entity.Vector, len(queries))
	for i, q := range queries {
		if len(q.Embedding) == 0 {
			return nil, fmt.Errorf("query %q has no embedding", q.Text)
		}
		vectors[i] = entity.FloatVector(q.Embedding)
	}
	sp, err := entity.NewIndexFlatSearchParam()
	if err != nil {
		return nil, fmt.Errorf("milvus search param: %w", err)
	}

	results, err := m.search.Search(ctx, m.cfg.Collection, nil, "",
		[]string{m.cfg.TextField, m.cfg.SourceField},
		vectors, m.cfg.VectorField, entity.COSINE, m.cfg.TopK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	out := passage.List{}
	for qi, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("milvus search: %w", r.Err)
		}
		q := ""
		if qi < len(queries) {
			q = queries[qi].Text
		}
		texts := r.Fields.GetColumn(m.cfg.TextField)
		if texts == nil {
			m.logger.Warn("milvus result missing text field", zap.String("field", m.cfg.TextField))
			continue
		}
		sources := r.Fields.GetColumn(m.cfg.SourceField)

		for i := 0; i < r.ResultCount; i++ {
			text, err := texts.GetAsString(i)
			if err != nil || text == "" {
				continue
			}
			p := passage.Passage{Text: text, Source: passage.DefaultSource, Query: q}
			if sources != nil {
				if s, err := sources.GetAsString(i); err == nil && s != "" {
					p.Source = s
				}
			}
			if r.IDs != nil {
				if id, err := r.IDs.Get(i); err == nil {
					p.ID = fmt.Sprint(id)
				}
			}
			if i < len(r.Scores) {
				p.Distance = passage.Float(1 - float64(r.Scores[i]))
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MilvusRetriever) Close() error {
	if m.search == nil {
		return nil
	}
	return m.search.Close()
}
