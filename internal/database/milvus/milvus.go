package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/vitalio/medsearch/internal/config"
)

// Field names shared by the chunk and table collections.
const (
	FieldID         = "id"
	FieldDocumentID = "document_id"
	FieldUserID     = "user_id"
	FieldCategory   = "category" // table collection only
	FieldEmbedding  = "embedding"
)

// Client wraps the Milvus SDK client together with its configuration. It is
// created once in main and passed into the vector store.
type Client struct {
	Client client.Client
	Config *config.MilvusConfig
}

// New connects to Milvus.
func New(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Milvus: %w", err)
	}
	return &Client{Client: c, Config: cfg}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// EnsureCollections creates and loads the chunk and table collections if
// they do not exist yet.
func (c *Client) EnsureCollections(ctx context.Context) error {
	if err := c.ensureCollection(ctx, c.Config.ChunkCollection, false); err != nil {
		return err
	}
	return c.ensureCollection(ctx, c.Config.TableCollection, true)
}

func (c *Client) ensureCollection(ctx context.Context, name string, withCategory bool) error {
	has, err := c.Client.HasCollection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", name, err)
	}

	if !has {
		fields := []*entity.Field{
			entity.NewField().WithName(FieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true),
			entity.NewField().WithName(FieldDocumentID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64),
			entity.NewField().WithName(FieldUserID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(255),
			entity.NewField().WithName(FieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(c.Config.Dimension)),
		}
		if withCategory {
			fields = append(fields,
				entity.NewField().WithName(FieldCategory).WithDataType(entity.FieldTypeVarChar).WithMaxLength(32))
		}

		schema := &entity.Schema{
			CollectionName: name,
			Fields:         fields,
		}
		if err := c.Client.CreateCollection(ctx, schema, 2); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", name, err)
		}

		index, err := entity.NewIndexIvfFlat(entity.COSINE, 128)
		if err != nil {
			return fmt.Errorf("failed to build index definition: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, name, FieldEmbedding, index, false); err != nil {
			return fmt.Errorf("failed to create index on %q: %w", name, err)
		}
	}

	if err := c.Client.LoadCollection(ctx, name, false); err != nil {
		return fmt.Errorf("failed to load collection %q: %w", name, err)
	}
	return nil
}
