package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"outliers_server/models"
)

// createTableInput describes spec as an on-demand table with one GSI per
// index. All key attributes are strings.
func createTableInput(prefix string, spec models.TableSpec) *dynamodb.CreateTableInput {
	attrs := map[string]bool{}
	var defs []types.AttributeDefinition
	define := func(name string) {
		if name == "" || attrs[name] {
			return
		}
		attrs[name] = true
		defs = append(defs, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}

	define(spec.HashKey)
	schema := []types.KeySchemaElement{{AttributeName: aws.String(spec.HashKey), KeyType: types.KeyTypeHash}}
	if spec.RangeKey != "" {
		define(spec.RangeKey)
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(spec.RangeKey), KeyType: types.KeyTypeRange})
	}

	var gsis []types.GlobalSecondaryIndex
	for _, idx := range spec.Indexes {
		define(idx.HashKey)
		gsis = append(gsis, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(idx.HashKey), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	return &dynamodb.CreateTableInput{
		TableName:              aws.String(prefix + spec.Name),
		AttributeDefinitions:   defs,
		KeySchema:              schema,
		GlobalSecondaryIndexes: gsis,
		BillingMode:            types.BillingModePayPerRequest,
	}
}

// Provision creates every missing table and waits until it is active.
func (s *Store) Provision(ctx context.Context, wait time.Duration) error {
	for _, spec := range models.Specs() {
		in := createTableInput(s.Prefix, spec)
		_, err := s.Client.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		switch {
		case errors.As(err, &inUse):
			s.log.DebugContext(ctx, "table already exists", "table", *in.TableName)
			continue
		case err != nil:
			return errors.Wrapf(err, "dynamo.Provision.CreateTable %s", *in.TableName)
		}
		s.log.InfoContext(ctx, "📦 created table", "table", *in.TableName)
		if wait <= 0 {
			continue
		}
		waiter := dynamodb.NewTableExistsWaiter(s.Client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName}, wait); err != nil {
			return errors.Wrapf(err, "dynamo.Provision.Wait %s", *in.TableName)
		}
	}
	return nil
}
