package gateway

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type queryMethod string

const (
	methodEqual     queryMethod = "equal"
	methodContains  queryMethod = "contains"
	methodSearch    queryMethod = "search"
	methodOrderAsc  queryMethod = "orderAsc"
	methodOrderDesc queryMethod = "orderDesc"
	methodLimit     queryMethod = "limit"
	methodOffset    queryMethod = "offset"
)

// Query is one clause of a document listing: a filter, an order, or a window.
type Query struct {
	method    queryMethod
	attribute string
	values    []interface{}
	n         int
}

// Equal matches documents whose attribute equals any of values.
func Equal(attribute string, values ...interface{}) Query {
	return Query{method: methodEqual, attribute: attribute, values: values}
}

// Contains matches documents whose JSON array attribute holds any of values.
func Contains(attribute string, values ...interface{}) Query {
	return Query{method: methodContains, attribute: attribute, values: values}
}

// Search is a full-text match of term against attribute.
func Search(attribute, term string) Query {
	return Query{method: methodSearch, attribute: attribute, values: []interface{}{term}}
}

func OrderAsc(attribute string) Query {
	return Query{method: methodOrderAsc, attribute: attribute}
}

func OrderDesc(attribute string) Query {
	return Query{method: methodOrderDesc, attribute: attribute}
}

func Limit(n int) Query {
	return Query{method: methodLimit, n: n}
}

func Offset(n int) Query {
	return Query{method: methodOffset, n: n}
}

func (q Query) String() string {
	switch q.method {
	case methodLimit, methodOffset:
		return fmt.Sprintf("%s(%d)", q.method, q.n)
	case methodOrderAsc, methodOrderDesc:
		return fmt.Sprintf("%s(%q)", q.method, q.attribute)
	default:
		return fmt.Sprintf("%s(%q, %v)", q.method, q.attribute, q.values)
	}
}

func (q Query) isFilter() bool {
	return q.method == methodEqual || q.method == methodContains || q.method == methodSearch
}

var attributePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func invalidQuery(format string, args ...interface{}) error {
	return NewError(http.StatusBadRequest, TypeInvalidQuery, fmt.Sprintf(format, args...))
}

func (q Query) validate() error {
	switch q.method {
	case methodLimit, methodOffset:
		if q.n < 0 {
			return invalidQuery("Invalid query: %s must not be negative", q.method)
		}
		return nil
	}

	if !attributePattern.MatchString(q.attribute) {
		return invalidQuery("Invalid query: attribute %q is not a valid attribute name", q.attribute)
	}
	if q.isFilter() && len(q.values) == 0 {
		return invalidQuery("Invalid query: %s requires at least one value", q)
	}
	return nil
}

// applyFilters adds the filter clauses of queries to db.
func applyFilters(db *gorm.DB, queries []Query) (*gorm.DB, error) {
	for _, q := range queries {
		if !q.isFilter() {
			continue
		}
		if err := q.validate(); err != nil {
			return nil, err
		}

		column := clause.Column{Name: q.attribute}
		switch q.method {
		case methodEqual:
			if len(q.values) == 1 {
				db = db.Where("? = ?", column, q.values[0])
			} else {
				db = db.Where("? IN ?", column, q.values)
			}

		case methodContains:
			exprs := make([]clause.Expression, 0, len(q.values))
			for _, v := range q.values {
				exprs = append(exprs, datatypes.JSONArrayQuery(q.attribute).Contains(v))
			}
			db = db.Where(clause.Or(exprs...))

		case methodSearch:
			term, _ := q.values[0].(string)
			term = strings.TrimSpace(term)
			if term == "" {
				return nil, invalidQuery("Invalid query: %s requires a non-empty term", q)
			}
			if db.Dialector.Name() == "postgres" {
				db = db.Where("to_tsvector('simple', ?) @@ plainto_tsquery('simple', ?)", column, term)
			} else {
				db = db.Where("LOWER(?) LIKE ? ESCAPE '\\'", column, "%"+escapeLike(strings.ToLower(term))+"%")
			}
		}
	}
	return db, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes term match literally inside a LIKE pattern.
func escapeLike(term string) string {
	return likeEscaper.Replace(term)
}

// applyWindow adds ordering, limit and offset clauses of queries to db.
func applyWindow(db *gorm.DB, queries []Query) (*gorm.DB, error) {
	for _, q := range queries {
		if q.isFilter() {
			continue
		}
		if err := q.validate(); err != nil {
			return nil, err
		}

		switch q.method {
		case methodOrderAsc, methodOrderDesc:
			db = db.Order(clause.OrderByColumn{
				Column: clause.Column{Name: q.attribute},
				Desc:   q.method == methodOrderDesc,
			})
		case methodLimit:
			db = db.Limit(q.n)
		case methodOffset:
			db = db.Offset(q.n)
		}
	}
	return db, nil
}
