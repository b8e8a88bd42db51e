package outlook

import (
	"net/url"
	"strings"
	"time"

	"github.com/nhle/mail-integration/internal/mail"
)

// orderableFields are the Graph fields that may appear both in $filter
// and in $orderby.
var orderableFields = map[string]bool{
	"hasAttachments":          true,
	"receivedDateTime":        true,
	"InferenceClassification": true,
	"flag/flagStatus":         true,
}

const defaultOrderBy = "receivedDateTime desc"

// Query holds the OData parameters produced from a search filter.
// Empty fields are omitted from the request.
type Query struct {
	Filter  string
	Search  string
	OrderBy string
}

// Values returns the non-empty parameters keyed by their OData names.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.Search != "" {
		v.Set("$search", q.Search)
	}
	if q.OrderBy != "" {
		v.Set("$orderby", q.OrderBy)
	}
	return v
}

// IsEmpty reports whether no parameter is set.
func (q Query) IsEmpty() bool {
	return q.Filter == "" && q.Search == "" && q.OrderBy == ""
}

// NeedsEventualConsistency reports whether Graph requires the
// ConsistencyLevel: eventual header for this query.
func (q Query) NeedsEventualConsistency() bool {
	return q.Search != ""
}

// fieldTracker records distinct $filter fields in the order they appear.
type fieldTracker []string

func (t *fieldTracker) add(field string) {
	for _, f := range *t {
		if f == field {
			return
		}
	}
	*t = append(*t, field)
}

// BuildQuery translates filter into Graph $filter, $search and $orderby.
//
// special holds navigational clauses (e.g. InferenceClassification for the
// inbox) that go first in $filter. orderOverride, when non-empty, replaces
// the derived $orderby. Without an override, $orderby lists the orderable
// fields used in $filter, followed by "receivedDateTime desc"; it is left
// empty when no such field is used.
func BuildQuery(
	filter *mail.SearchFilter,
	special []string,
	orderOverride string,
) Query {
	var (
		filterParts []string
		searchParts []string
		tracked     fieldTracker
	)

	for _, clause := range special {
		filterParts = append(filterParts, clause)
		if field := fieldOf(clause); field != "" {
			tracked.add(field)
		}
	}

	if filter != nil {
		if from := filter.FromAddress(); from != "" {
			searchParts = append(searchParts, "from:"+from)
		}
		for _, to := range filter.ToAddresses() {
			searchParts = append(searchParts, "recipients:"+to)
		}
		if subject := filter.SubjectContains(); subject != "" {
			searchParts = append(searchParts, "subject:"+subject)
		}
		if body := filter.BodyContains(); body != "" {
			searchParts = append(searchParts, body)
		}
		searchParts = append(searchParts, filter.HasWords()...)

		if has, set := filter.HasAttachments(); set && has {
			filterParts = append(filterParts, "hasAttachments eq true")
			tracked.add("hasAttachments")
		}

		if read, set := filter.IsRead(); set {
			if read {
				filterParts = append(filterParts, "isRead eq true")
			} else {
				filterParts = append(filterParts, "isRead eq false")
			}
		}

		if start, ok := filter.StartDate(); ok {
			filterParts = append(filterParts, "receivedDateTime ge "+odataTime(start))
			tracked.add("receivedDateTime")
		}
		if end, ok := filter.EndDate(); ok {
			filterParts = append(filterParts, "receivedDateTime le "+odataTime(end))
			tracked.add("receivedDateTime")
		}
	}

	var q Query
	if len(filterParts) > 0 {
		q.Filter = strings.Join(filterParts, " and ")
	}
	if len(searchParts) > 0 {
		q.Search = `"` + strings.Join(searchParts, " ") + `"`
	}

	switch {
	case orderOverride != "":
		q.OrderBy = orderOverride
	case len(tracked) > 0:
		fields := make([]string, 0, len(tracked))
		for _, f := range tracked {
			if f != "receivedDateTime" {
				fields = append(fields, f)
			}
		}
		q.OrderBy = strings.Join(append(fields, defaultOrderBy), ",")
	}

	return q
}

// fieldOf extracts the orderable field named by a clause such as
// "flag/flagStatus eq 'flagged'", or "" when there is none.
func fieldOf(clause string) string {
	if !strings.Contains(clause, " ") {
		return ""
	}
	field := strings.Fields(clause)[0]
	if orderableFields[field] {
		return field
	}
	return ""
}

func odataTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
