package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"outliers_server/backend"
	"outliers_server/models"
)

// exprBuilder accumulates placeholder names and values for one request.
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	n      int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (b *exprBuilder) name(column string) string {
	for k, v := range b.names {
		if v == column {
			return k
		}
	}
	k := fmt.Sprintf("#n%d", len(b.names))
	b.names[k] = column
	return k
}

func (b *exprBuilder) value(v any) (string, error) {
	av, err := backend.MarshalValue(v)
	if err != nil {
		return "", err
	}
	k := fmt.Sprintf(":v%d", b.n)
	b.n++
	b.values[k] = av
	return k, nil
}

func (b *exprBuilder) attrNames() map[string]string {
	if len(b.names) == 0 {
		return nil
	}
	return b.names
}

func (b *exprBuilder) attrValues() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}

// pushable reports whether DynamoDB evaluates f exactly like
// backend.Filter.Eval. Everything else is filtered client-side: range
// comparisons on timestamps need instant ordering, and "<>" does not match
// missing attributes.
func pushable(f backend.Filter) bool {
	switch f.Op {
	case backend.OpEq, backend.OpIn:
		switch f.Value.(type) {
		case string, bool, []string:
			return true
		}
	case backend.OpContains:
		return true
	}
	return false
}

// condition renders f as a condition expression.
func (b *exprBuilder) condition(f backend.Filter) (string, error) {
	n := b.name(f.Column)
	switch f.Op {
	case backend.OpEq:
		v, err := b.value(f.Value)
		if err != nil {
			return "", err
		}
		return n + " = " + v, nil
	case backend.OpContains:
		v, err := b.value(f.Value)
		if err != nil {
			return "", err
		}
		return "contains(" + n + ", " + v + ")", nil
	case backend.OpIn:
		vs, _ := f.Value.([]string)
		if len(vs) == 0 {
			return "", fmt.Errorf("empty IN list for %s", f.Column)
		}
		placeholders := make([]string, len(vs))
		for i, s := range vs {
			v, err := b.value(s)
			if err != nil {
				return "", err
			}
			placeholders[i] = v
		}
		return n + " IN (" + strings.Join(placeholders, ", ") + ")", nil
	}
	return "", fmt.Errorf("operator %s is not pushed down", f.Op)
}

// plan is how a Query is executed: a key Query (optionally on an index)
// or a Scan, plus the server-side filter.
type plan struct {
	index    string
	keyCond  string
	filter   string
	useQuery bool
	expr     *exprBuilder
}

// maxIn is DynamoDB's limit on IN operands.
const maxIn = 100

// planQuery picks the cheapest access path for q on spec: the table key,
// then the first index whose hash key has an equality filter, else a Scan.
func planQuery(spec models.TableSpec, q *backend.Query) (plan, error) {
	p := plan{expr: newExprBuilder()}
	used := make([]bool, len(q.Filters))

	keyEq := func(column string) (int, bool) {
		if column == "" {
			return 0, false
		}
		for i, f := range q.Filters {
			if f.Op != backend.OpEq || f.Column != column {
				continue
			}
			if _, ok := f.Value.(string); ok {
				return i, true
			}
		}
		return 0, false
	}

	if i, ok := keyEq(spec.HashKey); ok {
		p.useQuery = true
		used[i] = true
		if j, ok := keyEq(spec.RangeKey); ok {
			used[j] = true
		}
	} else {
		for _, idx := range spec.Indexes {
			if i, ok := keyEq(idx.HashKey); ok {
				p.useQuery = true
				p.index = idx.Name
				used[i] = true
				break
			}
		}
	}

	var keyConds, conds []string
	for i, f := range q.Filters {
		if used[i] {
			c, err := p.expr.condition(f)
			if err != nil {
				return plan{}, err
			}
			keyConds = append(keyConds, c)
			continue
		}
		if !pushable(f) {
			continue
		}
		if vs, ok := f.Value.([]string); ok && (len(vs) == 0 || len(vs) > maxIn) {
			continue
		}
		c, err := p.expr.condition(f)
		if err != nil {
			return plan{}, err
		}
		conds = append(conds, c)
	}
	p.keyCond = strings.Join(keyConds, " AND ")
	p.filter = strings.Join(conds, " AND ")
	return p, nil
}
