package query

import (
	"context"
	"fmt"
	"maps"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/protocol"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/queryir"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/querysql"
)

// Get runs the chain and returns the service's raw response.
func (b *Builder) Get(ctx context.Context) (*protocol.Response, error) {
	if err := b.check("Get", false); err != nil {
		return nil, err
	}
	b.warn("Get")
	sql, params := b.Build()
	return b.send(ctx, sql, params)
}

// Find replaces the chain's conditions with "id = <id>" and returns the first
// matching row.
func (b *Builder) Find(ctx context.Context, id any) (Result, error) {
	if err := b.check("Find", false); err != nil {
		return Result{}, err
	}
	b.state.Conditions = []queryir.Entry{queryir.Condition{Column: "id", Operator: "=", Value: id}}
	b.warn("Find")

	sql, params := b.Build()
	resp, err := b.send(ctx, sql, params)
	if err != nil {
		return Result{}, err
	}
	res, err := envelope(resp)
	if err != nil {
		return Result{}, fmt.Errorf("find %v: %w", id, err)
	}
	return res, nil
}

// Create inserts one row into the write target and returns it.
// data is not modified.
func (b *Builder) Create(ctx context.Context, data map[string]any) (Result, error) {
	if err := b.check("Create", true); err != nil {
		return Result{}, err
	}

	row := maps.Clone(data)
	if row == nil {
		row = make(map[string]any)
	}
	if _, ok := row["id"]; !ok && b.ids != nil {
		row["id"] = b.ids.Generate()
	}

	sql, params := querysql.Insert(b.state.Table, row)
	resp, err := b.send(ctx, sql, params)
	if err != nil {
		return Result{}, err
	}
	res, err := envelope(resp)
	if err != nil {
		return Result{}, fmt.Errorf("create: %w", err)
	}
	return res, nil
}

// Update changes the row with the given id and returns it.
func (b *Builder) Update(ctx context.Context, id any, data map[string]any) (Result, error) {
	if err := b.check("Update", true); err != nil {
		return Result{}, err
	}

	sql, params := querysql.Update(b.state.Table, id, data)
	resp, err := b.send(ctx, sql, params)
	if err != nil {
		return Result{}, err
	}
	res, err := envelope(resp)
	if err != nil {
		return Result{}, fmt.Errorf("update %v: %w", id, err)
	}
	return res, nil
}

// Delete removes the row with the given id. The statement returns no rows,
// so Data is nil.
func (b *Builder) Delete(ctx context.Context, id any) (Result, error) {
	if err := b.check("Delete", true); err != nil {
		return Result{}, err
	}

	sql, params := querysql.Delete(b.state.Table, id)
	resp, err := b.send(ctx, sql, params)
	if err != nil {
		return Result{}, err
	}
	res, err := envelope(resp)
	if err != nil {
		return Result{}, fmt.Errorf("delete %v: %w", id, err)
	}
	return res, nil
}

// Paginate runs the chain limited to one page. page is 1-based.
func (b *Builder) Paginate(ctx context.Context, perPage, page int) (Page, error) {
	if err := b.check("Paginate", false); err != nil {
		return Page{}, err
	}
	if perPage <= 0 || page <= 0 {
		return Page{}, usage("Paginate", ErrInvalidPage)
	}
	b.warn("Paginate")

	sql, params := b.Build()
	resp, err := b.send(ctx, querysql.Paginate(sql, perPage, page), params)
	if err != nil {
		return Page{}, err
	}

	p := Page{
		CurrentPage: page,
		PerPage:     perPage,
		Data:        []protocol.Row{},
		Result:      resp.Success,
		Error:       resp.Error,
	}
	if !resp.Success {
		return p, nil
	}
	rows, err := resp.Rows()
	if err != nil {
		return Page{}, fmt.Errorf("paginate: %w", err)
	}
	p.Data = rows
	p.Total = len(rows)
	return p, nil
}
