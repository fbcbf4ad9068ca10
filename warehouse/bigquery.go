package warehouse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"github.com/shibukawa/aggcheck"
	"github.com/shibukawa/aggcheck/sqlgen"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// BigQueryClient is a Client backed by the BigQuery API.
type BigQueryClient struct {
	client  *bigquery.Client
	dataset string
	builder *sqlgen.Builder
	logger  *slog.Logger
}

var _ Client = (*BigQueryClient)(nil)

// OpenBigQuery authenticates with the service account file named by the environment.
func OpenBigQuery(ctx context.Context, env *aggcheck.Environment, builder *sqlgen.Builder, logger *slog.Logger) (*BigQueryClient, error) {
	client, err := bigquery.NewClient(ctx, env.ProjectID, option.WithCredentialsFile(env.Credentials))
	if err != nil {
		return nil, wrapWarehouse("create bigquery client", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &BigQueryClient{client: client, dataset: env.DatasetID, builder: builder, logger: logger}, nil
}

func (c *BigQueryClient) Dialect() aggcheck.Dialect { return aggcheck.DialectBigQuery }

func (c *BigQueryClient) Builder() *sqlgen.Builder { return c.builder }

func (c *BigQueryClient) newQuery(q sqlgen.Query) *bigquery.Query {
	query := c.client.Query(q.SQL)
	for i, arg := range q.Args {
		query.Parameters = append(query.Parameters, bigquery.QueryParameter{
			Name:  "p" + strconv.Itoa(i+1),
			Value: arg,
		})
	}

	return query
}

func (c *BigQueryClient) Query(ctx context.Context, q sqlgen.Query) (*ResultSet, error) {
	it, err := c.newQuery(q).Read(ctx)
	if err != nil {
		return nil, wrapWarehouse("query", err)
	}

	var rows []Row

	for {
		var values map[string]bigquery.Value

		err := it.Next(&values)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, wrapWarehouse("read rows", err)
		}

		row := make(Row, len(values))
		for k, v := range values {
			row[k] = normalizeBigQueryValue(v)
		}

		rows = append(rows, row)
	}

	columns := make([]string, len(it.Schema))
	for i, field := range it.Schema {
		columns[i] = field.Name
	}

	return NewResultSet(columns, rows), nil
}

func normalizeBigQueryValue(v bigquery.Value) any {
	switch val := v.(type) {
	case []bigquery.Value:
		res := make([]any, len(val))
		for i, it := range val {
			res[i] = normalizeBigQueryValue(it)
		}
		return res
	case map[string]bigquery.Value:
		res := make(map[string]any, len(val))
		for k, it := range val {
			res[k] = normalizeBigQueryValue(it)
		}
		return res
	default:
		// civil.Date already arrives typed; only numerics need converting
		return normalizeValue(val, "")
	}
}

func (c *BigQueryClient) Exec(ctx context.Context, q sqlgen.Query) error {
	job, err := c.newQuery(q).Run(ctx)
	if err != nil {
		return wrapWarehouse("run job", err)
	}

	return c.wait(ctx, job)
}

func (c *BigQueryClient) wait(ctx context.Context, job *bigquery.Job) error {
	status, err := job.Wait(ctx)
	if err != nil {
		return wrapWarehouse("wait for job "+job.ID(), err)
	}

	if err := status.Err(); err != nil {
		return wrapWarehouse("job "+job.ID(), err)
	}

	return nil
}

func (c *BigQueryClient) EnsureDataset(ctx context.Context) error {
	ds := c.client.Dataset(c.dataset)

	_, err := ds.Metadata(ctx)
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusNotFound {
		return wrapWarehouse("dataset metadata", err)
	}

	c.logger.Info("creating dataset", "dataset", c.dataset)

	return wrapWarehouse("create dataset", ds.Create(ctx, &bigquery.DatasetMetadata{}))
}

// Load submits a newline-delimited JSON load job with WRITE_TRUNCATE and waits for it.
func (c *BigQueryClient) Load(ctx context.Context, table aggcheck.TableSchema, rows []map[string]any) error {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	for i, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to encode row %d of %s: %w", i, table.Name, err)
		}
	}

	source := bigquery.NewReaderSource(&buf)
	source.SourceFormat = bigquery.JSON
	source.Schema = bigQuerySchema(table)
	source.IgnoreUnknownValues = false

	loader := c.client.Dataset(c.dataset).Table(table.Name).LoaderFrom(source)
	loader.WriteDisposition = bigquery.WriteTruncate
	loader.CreateDisposition = bigquery.CreateIfNeeded

	job, err := loader.Run(ctx)
	if err != nil {
		return wrapWarehouse("start load job for "+table.Name, err)
	}

	if err := c.wait(ctx, job); err != nil {
		return err
	}

	c.logger.Debug("table replaced", "table", table.Name, "rows", len(rows), "job", job.ID())

	return nil
}

func bigQuerySchema(table aggcheck.TableSchema) bigquery.Schema {
	schema := make(bigquery.Schema, len(table.Columns))
	for i, col := range table.Columns {
		var fieldType bigquery.FieldType

		switch col.Type {
		case aggcheck.TypeInteger:
			fieldType = bigquery.IntegerFieldType
		case aggcheck.TypeDate:
			fieldType = bigquery.DateFieldType
		default:
			fieldType = bigquery.StringFieldType
		}

		schema[i] = &bigquery.FieldSchema{Name: col.Name, Type: fieldType}
	}

	return schema
}

func (c *BigQueryClient) Close() error {
	return c.client.Close()
}
