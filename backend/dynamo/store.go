package dynamo

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/backend"
	"outliers_server/models"
)

// maxTransactItems is DynamoDB's limit on items per TransactWriteItems call.
const maxTransactItems = 100

// Store is a DataService backed by one DynamoDB table per models.TableSpec.
// Every successful mutation is published to the feed.
type Store struct {
	Client API
	Prefix string
	Feed   backend.Feed
	log    *slog.Logger
}

// NewStore creates a store whose physical table names are prefix+name.
// feed may be nil.
func NewStore(client API, prefix string, feed backend.Feed) *Store {
	return &Store{Client: client, Prefix: prefix, Feed: feed, log: slog.Default().With("component", "dynamo")}
}

func (s *Store) spec(name string) (models.TableSpec, error) {
	spec, ok := models.Spec(name)
	if !ok {
		return models.TableSpec{}, errors.Wrapf(apperr.ErrInvalid, "unknown table %q", name)
	}
	return spec, nil
}

func (s *Store) tableName(name string) *string {
	return aws.String(s.Prefix + name)
}

// find returns the items matching q, ordered and limited. Only filters
// DynamoDB evaluates identically are sent to the server; all of them are
// re-checked client-side.
func (s *Store) find(ctx context.Context, spec models.TableSpec, q *backend.Query) ([]backend.Item, error) {
	p, err := planQuery(spec, q)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrInvalid, err.Error())
	}

	var raw []backend.Item
	if p.useQuery {
		in := &dynamodb.QueryInput{
			TableName:                 s.tableName(spec.Name),
			KeyConditionExpression:    aws.String(p.keyCond),
			ExpressionAttributeNames:  p.expr.attrNames(),
			ExpressionAttributeValues: p.expr.attrValues(),
		}
		if p.index != "" {
			in.IndexName = aws.String(p.index)
		}
		if p.filter != "" {
			in.FilterExpression = aws.String(p.filter)
		}
		for {
			out, err := s.Client.Query(ctx, in)
			if err != nil {
				return nil, errors.Wrap(err, "dynamo.Select.Query")
			}
			raw = append(raw, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			in.ExclusiveStartKey = out.LastEvaluatedKey
		}
	} else {
		in := &dynamodb.ScanInput{
			TableName:                 s.tableName(spec.Name),
			ExpressionAttributeNames:  p.expr.attrNames(),
			ExpressionAttributeValues: p.expr.attrValues(),
		}
		if p.filter != "" {
			in.FilterExpression = aws.String(p.filter)
		}
		for {
			out, err := s.Client.Scan(ctx, in)
			if err != nil {
				return nil, errors.Wrap(err, "dynamo.Select.Scan")
			}
			raw = append(raw, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			in.ExclusiveStartKey = out.LastEvaluatedKey
		}
	}

	const pos = "\x00pos"
	rows := make([]map[string]any, 0, len(raw))
	for i, item := range raw {
		row := backend.ItemRow(item)
		if !backend.MatchAll(row, q.Filters) {
			continue
		}
		row[pos] = i
		rows = append(rows, row)
	}
	backend.SortRows(rows, q.Order)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	items := make([]backend.Item, len(rows))
	for i, row := range rows {
		items[i] = raw[row[pos].(int)]
	}
	return items, nil
}

func (s *Store) Select(ctx context.Context, q *backend.Query, out any) error {
	spec, err := s.spec(q.Table)
	if err != nil {
		return err
	}
	items, err := s.find(ctx, spec, q)
	if err != nil {
		return err
	}
	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return errors.Wrap(err, "dynamo.Select.Unmarshal")
	}
	return nil
}

func (s *Store) Count(ctx context.Context, q *backend.Query) (int, error) {
	spec, err := s.spec(q.Table)
	if err != nil {
		return 0, err
	}
	cq := *q
	cq.Limit = 0
	cq.Order = nil
	items, err := s.find(ctx, spec, &cq)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// keyOf extracts the primary key attributes of item.
func keyOf(spec models.TableSpec, item backend.Item) backend.Item {
	key := backend.Item{spec.HashKey: item[spec.HashKey]}
	if spec.RangeKey != "" {
		key[spec.RangeKey] = item[spec.RangeKey]
	}
	return key
}

// Insert writes rows that must not exist yet. Several rows are written
// atomically.
func (s *Store) Insert(ctx context.Context, table string, rows ...any) error {
	spec, err := s.spec(table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > maxTransactItems {
		return errors.Wrapf(apperr.ErrInvalid, "%s: at most %d rows per insert", table, maxTransactItems)
	}
	actor := backend.ActorFrom(ctx)

	items := make([]backend.Item, len(rows))
	seen := map[string]bool{}
	for i, row := range rows {
		item, err := backend.MarshalItem(row)
		if err != nil {
			return err
		}
		key, err := backend.KeyString(spec, item)
		if err != nil {
			return err
		}
		if err := backend.CheckCreator(spec, item, actor); err != nil {
			return err
		}
		if seen[key] {
			return errors.Wrapf(apperr.ErrConflict, "%s: duplicate key", table)
		}
		seen[key] = true
		items[i] = item
	}

	cond := "attribute_not_exists(#hk)"
	names := map[string]string{"#hk": spec.HashKey}
	if len(items) == 1 {
		_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                s.tableName(table),
			Item:                     items[0],
			ConditionExpression:      aws.String(cond),
			ExpressionAttributeNames: names,
		})
	} else {
		tx := make([]types.TransactWriteItem, len(items))
		for i, item := range items {
			tx[i] = types.TransactWriteItem{Put: &types.Put{
				TableName:                s.tableName(table),
				Item:                     item,
				ConditionExpression:      aws.String(cond),
				ExpressionAttributeNames: names,
			}}
		}
		_, err = s.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: tx})
	}
	if err != nil {
		if conditionFailed(err) {
			return errors.Wrapf(apperr.ErrConflict, "%s: duplicate key", table)
		}
		return errors.Wrap(err, "dynamo.Insert")
	}

	for _, item := range items {
		s.publish(ctx, backend.NewEvent(table, backend.EventInsert, item, nil))
	}
	return nil
}

// ownerCondition guards a write on the row still existing and, for owned
// tables, still belonging to the actor.
func ownerCondition(spec models.TableSpec, actor string, b *exprBuilder) (string, error) {
	cond := "attribute_exists(" + b.name(spec.HashKey) + ")"
	if spec.Owner == "" {
		return cond, nil
	}
	v, err := b.value(actor)
	if err != nil {
		return "", err
	}
	return cond + " AND " + b.name(spec.Owner) + " = " + v, nil
}

// Update applies set to every row matching q. If any matching row is owned
// by someone else nothing is written. Rows that change concurrently between
// the read and the conditional write are skipped.
func (s *Store) Update(ctx context.Context, q *backend.Query, set backend.Values) (int, error) {
	spec, err := s.spec(q.Table)
	if err != nil {
		return 0, err
	}
	if err := backend.CheckSet(spec, set); err != nil {
		return 0, err
	}
	actor := backend.ActorFrom(ctx)
	items, err := s.find(ctx, spec, q)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := backend.CheckOwner(spec, item, actor); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, item := range items {
		b := newExprBuilder()
		assigns := make([]string, 0, len(set))
		for col, v := range set {
			pv, err := b.value(v)
			if err != nil {
				return n, err
			}
			assigns = append(assigns, b.name(col)+" = "+pv)
		}
		cond, err := ownerCondition(spec, actor, b)
		if err != nil {
			return n, err
		}
		out, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 s.tableName(spec.Name),
			Key:                       keyOf(spec, item),
			UpdateExpression:          aws.String("SET " + strings.Join(assigns, ", ")),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  b.attrNames(),
			ExpressionAttributeValues: b.attrValues(),
			ReturnValues:              types.ReturnValueAllNew,
		})
		if err != nil {
			if conditionFailed(err) {
				s.log.WarnContext(ctx, "row changed during update, skipped", "table", spec.Name)
				continue
			}
			return n, errors.Wrap(err, "dynamo.Update")
		}
		n++
		s.publish(ctx, backend.NewEvent(spec.Name, backend.EventUpdate, out.Attributes, item))
	}
	return n, nil
}

// Delete removes every row matching q, with the same ownership rule as
// Update.
func (s *Store) Delete(ctx context.Context, q *backend.Query) (int, error) {
	spec, err := s.spec(q.Table)
	if err != nil {
		return 0, err
	}
	actor := backend.ActorFrom(ctx)
	items, err := s.find(ctx, spec, q)
	if err != nil {
		return 0, err
	}
	for _, item := range items {
		if err := backend.CheckOwner(spec, item, actor); err != nil {
			return 0, err
		}
	}

	n := 0
	for _, item := range items {
		b := newExprBuilder()
		cond, err := ownerCondition(spec, actor, b)
		if err != nil {
			return n, err
		}
		out, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 s.tableName(spec.Name),
			Key:                       keyOf(spec, item),
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  b.attrNames(),
			ExpressionAttributeValues: b.attrValues(),
			ReturnValues:              types.ReturnValueAllOld,
		})
		if err != nil {
			if conditionFailed(err) {
				continue
			}
			return n, errors.Wrap(err, "dynamo.Delete")
		}
		n++
		old := out.Attributes
		if len(old) == 0 {
			old = item
		}
		s.publish(ctx, backend.NewEvent(spec.Name, backend.EventDelete, old, nil))
	}
	return n, nil
}

func (s *Store) publish(ctx context.Context, ev backend.Event) {
	if s.Feed == nil {
		return
	}
	if err := s.Feed.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.log.WarnContext(ctx, "failed to publish change", "table", ev.Table, "type", ev.Type, "error", err)
	}
}

func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, r := range tce.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}
