package query

import "github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"

// Result is the envelope returned by Find, Create, Update and Delete.
//
// Result mirrors the service's success flag. A statement the service
// rejected yields Result=false and a nil Data; it is not returned as an
// error, so callers must check Result.
type Result struct {
	Result bool         `json:"result"`
	Data   protocol.Row `json:"data,omitempty"`
	// Error carries the service's message when Result is false.
	Error string `json:"error,omitempty"`
}

// Page is one page of rows returned by Paginate.
//
// Total counts the rows in this page, not the rows in the table.
type Page struct {
	CurrentPage int            `json:"current_page"`
	PerPage     int            `json:"per_page"`
	Total       int            `json:"total"`
	Data        []protocol.Row `json:"data"`
	Result      bool           `json:"result"`
	Error       string         `json:"error,omitempty"`
}

// envelope builds a Result from a service response, keeping the first row.
func envelope(resp *protocol.Response) (Result, error) {
	res := Result{Result: resp.Success, Error: resp.Error}
	if !resp.Success {
		return res, nil
	}
	rows, err := resp.Rows()
	if err != nil {
		return Result{}, err
	}
	if len(rows) > 0 {
		res.Data = rows[0]
	}
	return res, nil
}
