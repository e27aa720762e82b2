package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"

	"outliers_server/apperr"
	"outliers_server/models"
)

// Item is a stored row in attribute-value form. Both table stores keep rows
// this way so dynamodbav tags decide which fields persist.
type Item = map[string]types.AttributeValue

// MarshalItem converts a record (struct or map) to an Item.
func MarshalItem(row any) (Item, error) {
	if v, ok := row.(Values); ok {
		row = map[string]any(v)
	}
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrInvalid, err.Error())
	}
	return item, nil
}

// ItemRow converts an Item to plain Go values for filtering and sorting.
func ItemRow(item Item) map[string]any {
	row := map[string]any{}
	if err := attributevalue.UnmarshalMap(item, &row); err != nil {
		return map[string]any{}
	}
	return row
}

// ItemJSON renders an Item as the JSON record carried by events.
func ItemJSON(item Item) json.RawMessage {
	if item == nil {
		return nil
	}
	b, err := json.Marshal(ItemRow(item))
	if err != nil {
		return nil
	}
	return b
}

// KeyString identifies an Item by its table key.
func KeyString(spec models.TableSpec, item Item) (string, error) {
	hash, ok := stringAttr(item, spec.HashKey)
	if !ok || hash == "" {
		return "", errors.Wrapf(apperr.ErrInvalid, "%s: missing key %s", spec.Name, spec.HashKey)
	}
	if spec.RangeKey == "" {
		return hash, nil
	}
	rng, ok := stringAttr(item, spec.RangeKey)
	if !ok || rng == "" {
		return "", errors.Wrapf(apperr.ErrInvalid, "%s: missing key %s", spec.Name, spec.RangeKey)
	}
	return hash + "\x00" + rng, nil
}

// CheckCreator enforces the table's insert ownership rule.
func CheckCreator(spec models.TableSpec, item Item, actor string) error {
	if spec.Creator == "" {
		return nil
	}
	if v, _ := stringAttr(item, spec.Creator); actor == "" || v != actor {
		return errors.Wrapf(apperr.ErrForbidden, "%s: insert as %q", spec.Name, actor)
	}
	return nil
}

// CheckOwner enforces the update/delete ownership rule of spec.
func CheckOwner(spec models.TableSpec, item Item, actor string) error {
	if spec.Owner == "" {
		return nil
	}
	if v, _ := stringAttr(item, spec.Owner); actor == "" || v != actor {
		return errors.Wrapf(apperr.ErrForbidden, "%s: modify as %q", spec.Name, actor)
	}
	return nil
}

// CheckSet rejects updates that touch key columns.
func CheckSet(spec models.TableSpec, set Values) error {
	if len(set) == 0 {
		return errors.Wrap(apperr.ErrInvalid, "empty update")
	}
	for col := range set {
		if col == spec.HashKey || (spec.RangeKey != "" && col == spec.RangeKey) {
			return errors.Wrapf(apperr.ErrInvalid, "%s: cannot update key column %s", spec.Name, col)
		}
	}
	return nil
}

// MarshalValue converts a single column value.
func MarshalValue(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(apperr.ErrInvalid, err.Error())
	}
	return av, nil
}

// NewEvent builds a change event from the stored form of a row.
func NewEvent(table string, typ EventType, record, old Item) Event {
	return Event{
		Table:  table,
		Type:   typ,
		Record: ItemJSON(record),
		Old:    ItemJSON(old),
		At:     time.Now().UTC(),
	}
}

func stringAttr(item Item, name string) (string, bool) {
	av, ok := item[name]
	if !ok {
		return "", false
	}
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Sprint(ItemRow(Item{name: av})[name]), true
	}
	return s.Value, true
}
