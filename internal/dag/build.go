package dag

import (
	"context"
	"fmt"

	"kaggleelt/internal/dbtsource"
)

// Steps supplies the work behind each generated task.
type Steps struct {
	Extract func(ctx context.Context, tbl *dbtsource.Table) error
	Load    func(ctx context.Context, tbl *dbtsource.Table) error
	// Transform runs the dataset's models. When nil no transform task is
	// added.
	Transform func(ctx context.Context) error
}

// GraphID is the graph name for a dataset: <dataset>_elt.
func GraphID(dataset string) string { return dataset + "_elt" }

// DownloadTaskID names the extract task of a table.
func DownloadTaskID(table string) string { return "download_" + table }

// LoadTaskID names the load task of a table.
func LoadTaskID(table string) string { return "load_" + table }

// TransformTaskID names the dbt task of a dataset.
func TransformTaskID(dataset string) string { return "run_dbt_" + dataset }

// Build returns the graph of one dataset: for every table,
// download_<table> then load_<table>, and run_dbt_<dataset> after all loads.
func Build(src *dbtsource.Source, steps Steps) (*Graph, error) {
	if steps.Extract == nil || steps.Load == nil {
		return nil, fmt.Errorf("dag: extract and load steps are required")
	}
	g := New(GraphID(src.Name))

	var loads []string
	for _, tbl := range src.Tables {
		download := Task{
			ID:  DownloadTaskID(tbl.Name),
			Run: func(ctx context.Context) error { return steps.Extract(ctx, tbl) },
		}
		load := Task{
			ID:  LoadTaskID(tbl.Name),
			Run: func(ctx context.Context) error { return steps.Load(ctx, tbl) },
		}
		if err := g.Add(download); err != nil {
			return nil, err
		}
		if err := g.Add(load); err != nil {
			return nil, err
		}
		if err := g.Then(download.ID, load.ID); err != nil {
			return nil, err
		}
		loads = append(loads, load.ID)
	}

	if steps.Transform != nil {
		transform := Task{ID: TransformTaskID(src.Name), Run: steps.Transform}
		if err := g.Add(transform); err != nil {
			return nil, err
		}
		for _, id := range loads {
			if err := g.Then(id, transform.ID); err != nil {
				return nil, err
			}
		}
	}
	return g, g.Validate()
}
