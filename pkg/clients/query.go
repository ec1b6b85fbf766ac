package clients

import (
	"fmt"
	"strconv"
	"strings"

	sdkerrors "github.com/coveguard/cove-go-sdk/internal/errors"
)

// FilterCondition is one of the conditions the cache endpoint understands.
type FilterCondition string

const (
	FilterContains    FilterCondition = "contains"
	FilterNotContains FilterCondition = "notContains"
	FilterEq          FilterCondition = "eq"
	FilterNeq         FilterCondition = "neq"
	FilterIsEmpty     FilterCondition = "isEmpty"
)

// Filter is one (column, condition, value) triple. Value is ignored for
// FilterIsEmpty.
type Filter struct {
	Column    string
	Condition FilterCondition
	Value     string
}

// Sort orders the cache listing by one column. Direction is the wire form:
// "1" ascending, "-1" descending.
type Sort struct {
	Column    string
	Direction string
}

// Page selects a window of the cache listing.
type Page struct {
	Start int
	Limit int
}

// QueryRequest is the full specification compiled into the cache endpoint's
// query string.
type QueryRequest struct {
	Fields      []string // logical column names; nil emits the default set
	Sort        *Sort
	Filters     []Filter
	Search      string // free-text term matched across the searchable columns
	Page        *Page
	HardRefresh bool
}

// baseFilter is always the first filter emitted, unconditionally.
const baseFilter = "&fq=clientProperties.isServerClient:eq:true"

// defaultFields is emitted when the caller supplies no field list.
const defaultFields = "&fl=clientProperties.client,clientProperties.clientProps,clientProperties.criticalEntityStatus"

// networkStatusValues translates the display strings callers pass for the
// networkStatus column into the wire enum.
var networkStatusValues = map[string]string{
	"Online":     "ONLINE",
	"Offline":    "OFFLINE",
	"Restricted": "RESTRICTED",
	"Unknown":    "UNKNOWN",
}

// searchableColumns is the fixed subset of columns free-text search runs
// against. Order matters: it is emitted verbatim into the query string.
var searchableColumns = []string{"hostName", "displayName", "companyName", "agents", "version", "osName"}

// QueryCompiler deterministically serializes a QueryRequest into the exact
// query-string fragment the paginated cache endpoint expects. The column
// allow-list is built once at construction and read-only afterward.
type QueryCompiler struct {
	columns map[string]string // logical name -> dotted wire path
}

// NewQueryCompiler builds a compiler with the server's column allow-list.
func NewQueryCompiler() *QueryCompiler {
	return &QueryCompiler{
		columns: map[string]string{
			"clientName":       "clientProperties.client.clientEntity.clientName",
			"clientId":         "clientProperties.client.clientEntity.clientId",
			"hostName":         "clientProperties.client.clientEntity.hostName",
			"displayName":      "clientProperties.client.clientEntity.displayName",
			"companyName":      "clientProperties.clientProps.company.companyName",
			"osName":           "clientProperties.client.osInfo.osDisplayInfo.osName",
			"version":          "clientProperties.client.versionInfo.version",
			"agents":           "clientProperties.client.idaList.idaEntity.appName",
			"updateStatus":     "clientProperties.clientProps.updateStatus",
			"networkStatus":    "clientProperties.clientProps.networkStatus",
			"isDeletedClient":  "clientProperties.clientProps.isDeletedClient",
			"isInfrastructure": "clientProperties.clientProps.isInfrastructure",
			"clientGroups":     "groups.clientGroup.clientGroupName",
			"tags":             "tags",
		},
	}
}

// Columns returns the logical column names the compiler accepts.
func (qc *QueryCompiler) Columns() []string {
	names := make([]string, 0, len(qc.columns))
	for name := range qc.columns {
		names = append(names, name)
	}
	return names
}

// Compile serializes the request. The fragment order is fixed (limit, sort,
// fl, hardRefresh, search, fq) and stable across calls with identical
// inputs; the server uses the string as a cache key.
func (qc *QueryCompiler) Compile(req QueryRequest) (string, error) {
	fl, err := qc.compileFields(req.Fields)
	if err != nil {
		return "", err
	}
	sortParam, err := qc.compileSort(req.Sort)
	if err != nil {
		return "", err
	}
	fq, err := qc.compileFilters(req.Filters)
	if err != nil {
		return "", err
	}

	var limit string
	if req.Page != nil {
		limit = fmt.Sprintf("start=%d&limit=%d", req.Page.Start, req.Page.Limit)
	}

	var hardRefresh string
	if req.HardRefresh {
		hardRefresh = "&hardRefresh=true"
	}

	var search string
	if req.Search != "" {
		paths := make([]string, len(searchableColumns))
		for i, col := range searchableColumns {
			paths[i] = qc.columns[col]
		}
		search = "&search=" + strings.Join(paths, ",") + ":contains:" + req.Search
	}

	return limit + sortParam + fl + hardRefresh + search + fq, nil
}

func (qc *QueryCompiler) compileFields(fields []string) (string, error) {
	if fields == nil {
		return defaultFields, nil
	}
	paths := make([]string, len(fields))
	for i, column := range fields {
		path, ok := qc.columns[column]
		if !ok {
			return "", sdkerrors.InvalidColumn("compile_fl", column)
		}
		paths[i] = path
	}
	return "&fl=" + strings.Join(paths, ","), nil
}

func (qc *QueryCompiler) compileSort(sort *Sort) (string, error) {
	if sort == nil {
		return "", nil
	}
	path, ok := qc.columns[sort.Column]
	if !ok {
		return "", sdkerrors.InvalidColumn("compile_sort", sort.Column)
	}
	if sort.Direction != "1" && sort.Direction != "-1" {
		return "", sdkerrors.InvalidSortDirection("compile_sort", sort.Direction)
	}
	return "&sort=" + path + ":" + sort.Direction, nil
}

func (qc *QueryCompiler) compileFilters(filters []Filter) (string, error) {
	params := []string{baseFilter}

	for _, filter := range filters {
		path, ok := qc.columns[filter.Column]
		if !ok {
			return "", sdkerrors.InvalidColumn("compile_fq", filter.Column)
		}

		switch {
		case filter.Column == "tags" && filter.Condition == FilterContains:
			// tags uses a dedicated parameter, not a generic fq
			params = append(params, "&tags="+filter.Value)

		case filter.Column == "networkStatus":
			if !validCondition(filter.Condition) {
				return "", sdkerrors.InvalidCondition("compile_fq", string(filter.Condition))
			}
			wire, ok := networkStatusValues[filter.Value]
			if !ok {
				return "", sdkerrors.InvalidCondition("compile_fq", filter.Value)
			}
			params = append(params, "&fq="+path+":"+string(filter.Condition)+":"+wire)

		case filter.Column == "isDeletedClient":
			// normalized to eq:true / neq:true regardless of the condition passed
			deleted, err := strconv.ParseBool(filter.Value)
			if err != nil {
				return "", sdkerrors.InvalidCondition("compile_fq", filter.Value)
			}
			condition := "eq"
			if !deleted {
				condition = "neq"
			}
			params = append(params, "&fq="+path+":"+condition+":true")

		case filter.Condition == FilterIsEmpty && filter.Value == "":
			params = append(params, "&fq="+path+":in:null,")

		case validCondition(filter.Condition):
			params = append(params, "&fq="+path+":"+string(filter.Condition)+":"+filter.Value)

		default:
			return "", sdkerrors.InvalidCondition("compile_fq", string(filter.Condition))
		}
	}

	return strings.Join(params, ""), nil
}

func validCondition(c FilterCondition) bool {
	switch c {
	case FilterContains, FilterNotContains, FilterEq, FilterNeq:
		return true
	}
	return false
}
