package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
)

// NewChromaClient connects to a Chroma server using the v2 API.
func NewChromaClient(baseURL string) (chromago.Client, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}
	return client, nil
}

// ChromaCollection stores documents in one Chroma collection. Embeddings are
// always computed by the caller; Chroma's own embedding function is never used.
type ChromaCollection struct {
	collection chromago.Collection
}

// NewChromaCollection gets or creates the named collection with cosine distance.
func NewChromaCollection(ctx context.Context, client chromago.Client, name, description string) (*ChromaCollection, error) {
	collection, err := client.GetOrCreateCollection(
		ctx,
		name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", description),
				chromago.NewStringAttribute("created_by", "courserag"),
				chromago.NewStringAttribute("hnsw:space", "cosine"),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	return &ChromaCollection{collection: collection}, nil
}

func (c *ChromaCollection) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]chromago.DocumentID, len(docs))
	texts := make([]string, len(docs))
	embs := make([]embeddings.Embedding, len(docs))
	metas := make([]chromago.DocumentMetadata, len(docs))
	for i, d := range docs {
		ids[i] = chromago.DocumentID(d.ID)
		texts[i] = d.Text
		embs[i] = embeddings.NewEmbeddingFromFloat32(d.Embedding)
		metas[i] = toChromaMetadata(d.Metadata)
	}
	err := c.collection.Add(ctx,
		chromago.WithIDs(ids...),
		chromago.WithTexts(texts...),
		chromago.WithEmbeddings(embs...),
		chromago.WithMetadatas(metas...),
	)
	if err != nil {
		return fmt.Errorf("failed to add %d documents to chromadb: %w", len(docs), err)
	}
	return nil
}

func (c *ChromaCollection) Query(ctx context.Context, embedding []float32, n int, where Filter) ([]Match, error) {
	opts := []chromago.CollectionQueryOption{
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(embedding)),
		chromago.WithNResults(n),
	}
	if !where.IsZero() {
		opts = append(opts, chromago.WithWhereQuery(chromago.EqString(where.Field, where.Value)))
	}
	results, err := c.collection.Query(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chromadb: %w", err)
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	metaGroups := results.GetMetadatasGroups()
	distGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		d := Document{ID: string(id)}
		if len(docGroups) > 0 && i < len(docGroups[0]) && docGroups[0][i] != nil {
			d.Text = docGroups[0][i].ContentString()
		}
		if len(metaGroups) > 0 && i < len(metaGroups[0]) {
			d.Metadata = fromChromaMetadata(metaGroups[0][i])
		}
		m := Match{Document: d}
		if len(distGroups) > 0 && i < len(distGroups[0]) {
			m.Distance = float64(distGroups[0][i])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (c *ChromaCollection) Get(ctx context.Context, where Filter) ([]Document, error) {
	var opts []chromago.CollectionGetOption
	if !where.IsZero() {
		opts = append(opts, chromago.WithWhereGet(chromago.EqString(where.Field, where.Value)))
	}
	opts = append(opts, chromago.WithIncludeGet(chromago.IncludeDocuments, chromago.IncludeMetadatas, chromago.IncludeEmbeddings))
	results, err := c.collection.Get(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to get documents from chromadb: %w", err)
	}
	ids := results.GetIDs()
	texts := results.GetDocuments()
	metas := results.GetMetadatas()
	embs := results.GetEmbeddings()
	docs := make([]Document, 0, len(ids))
	for i, id := range ids {
		d := Document{ID: string(id)}
		if i < len(texts) && texts[i] != nil {
			d.Text = texts[i].ContentString()
		}
		if i < len(metas) {
			d.Metadata = fromChromaMetadata(metas[i])
		}
		if i < len(embs) && embs[i] != nil {
			d.Embedding = embs[i].ContentAsFloat32()
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *ChromaCollection) Delete(ctx context.Context, where Filter) error {
	if where.IsZero() {
		return fmt.Errorf("refusing to delete a chroma collection without a filter")
	}
	return c.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(where.Field, where.Value)))
}

func (c *ChromaCollection) Count(ctx context.Context) (int, error) {
	count, err := c.collection.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count items in collection: %w", err)
	}
	return int(count), nil
}

func toChromaMetadata(meta map[string]any) chromago.DocumentMetadata {
	attrs := make([]*chromago.MetaAttribute, 0, len(meta))
	for k, v := range meta {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, chromago.NewStringAttribute(k, val))
		case int:
			attrs = append(attrs, chromago.NewIntAttribute(k, int64(val)))
		case int64:
			attrs = append(attrs, chromago.NewIntAttribute(k, val))
		default:
			attrs = append(attrs, chromago.NewStringAttribute(k, fmt.Sprint(val)))
		}
	}
	return chromago.NewDocumentMetadata(attrs...)
}

// The DocumentMetadata type has no public accessor for all values, so it is
// converted by marshalling to JSON and back.
func fromChromaMetadata(meta chromago.DocumentMetadata) map[string]any {
	out := map[string]any{}
	if meta == nil {
		return out
	}
	jsonBytes, err := json.Marshal(meta)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(jsonBytes, &out); err != nil {
		return map[string]any{}
	}
	return out
}
