package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"osmextract/boundaries"
	"osmextract/config"
	"osmextract/ctxlog"
	"osmextract/osmprocessing"
	"osmextract/output"
	"osmextract/streets"
	"osmextract/tagquery"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, shouldExit, err := parseArgs(args, stderr)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	cfg, err := opts.config()
	if err != nil {
		return err
	}

	// Queries are checked before the input is touched.
	query, err := tagquery.Parse(opts.tags)
	if err != nil {
		return usageError("%s", err.Error())
	}

	logger := cfg.Logger(stderr, opts.command)
	ctx = ctxlog.With(ctxlog.WithLogger(ctx, logger), "input", opts.input)

	src, err := osmprocessing.OpenSource(ctx, opts.input, cfg.Workers)
	if err != nil {
		return err
	}
	idx, err := osmprocessing.BuildIndex(ctx, src)
	src.Close()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", opts.input, err)
	}

	w, closeOutput, err := openOutput(opts.output, stdout)
	if err != nil {
		return err
	}

	var docs []any
	switch opts.command {
	case cmdObjects:
		docs, err = runObjects(ctx, idx, cfg, opts, query, w)
	case cmdStreets:
		docs, err = runStreets(ctx, idx, cfg, opts, query, w)
	case cmdBoundaries:
		docs, err = runBoundaries(ctx, idx, cfg, opts, w)
	}
	if cerr := closeOutput(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if opts.mongoURI != "" {
		if err := storeDocuments(ctx, opts, docs); err != nil {
			return err
		}
	}

	ctxlog.FromContext(ctx).Info("Extraction finished.", "records", len(docs), "diagnostics", idx.Diagnostics)
	return nil
}

func runObjects(ctx context.Context, idx *osmprocessing.Index, cfg *config.Config, opts *options, query tagquery.Query, w io.Writer) ([]any, error) {
	objects, err := osmprocessing.Objects(ctx, idx, query, osmprocessing.ObjectOptions{
		RetainCoordinates: opts.retainCoordinates,
		Workers:           cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	if opts.format == "pbf" {
		err = output.WritePBF(ctx, w, idx, objects)
	} else {
		err = output.WriteObjectLines(w, objects)
	}
	if err != nil {
		return nil, err
	}
	return output.ObjectDocuments(objects), nil
}

func runStreets(ctx context.Context, idx *osmprocessing.Index, cfg *config.Config, opts *options, query tagquery.Query, w io.Writer) ([]any, error) {
	streetOpts := streets.Options{
		Query:     streets.DefaultQuery(cfg.StreetHighways, opts.name),
		Tolerance: cfg.MergeTolerance,
		Workers:   cfg.Workers,
	}
	if opts.tags != "" {
		streetOpts.Query = streets.WithName(query, opts.name)
	}

	if opts.boundary > 0 {
		bs, err := boundaries.Assemble(ctx, idx, boundaries.Options{
			AdminLevels: []int{opts.boundary},
			Tolerance:   cfg.RingTolerance,
			Workers:     cfg.Workers,
		})
		if err != nil {
			return nil, err
		}
		streetOpts.Regions = boundaries.NewRegions(bs)
		ctxlog.FromContext(ctx).Info("Splitting streets by boundary.", "admin_level", opts.boundary, "regions", streetOpts.Regions.Len())
	}

	ss, err := streets.Cluster(ctx, idx, streetOpts)
	if err != nil {
		return nil, err
	}

	if opts.geojson {
		err = output.WriteStreetGeoJSON(w, ss)
	} else {
		err = output.WriteStreetLines(w, ss)
	}
	if err != nil {
		return nil, err
	}
	return output.StreetDocuments(ss), nil
}

func runBoundaries(ctx context.Context, idx *osmprocessing.Index, cfg *config.Config, opts *options, w io.Writer) ([]any, error) {
	bs, err := boundaries.Assemble(ctx, idx, boundaries.Options{
		AdminLevels: cfg.AdminLevels,
		Tolerance:   cfg.RingTolerance,
		Workers:     cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	if opts.geojson {
		err = output.WriteBoundaryGeoJSON(w, bs)
	} else {
		err = output.WriteBoundaryLines(w, bs, opts.geometry)
	}
	if err != nil {
		return nil, err
	}
	return output.BoundaryDocuments(bs), nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %q: %w", path, err)
	}
	return f, f.Close, nil
}

func storeDocuments(ctx context.Context, opts *options, docs []any) error {
	sink, err := output.OpenMongo(ctx, opts.mongoURI, opts.mongoDB, opts.mongoCollection)
	if err != nil {
		return err
	}
	defer sink.Close(ctx)

	if err := sink.Insert(ctx, docs); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Stored documents.", "database", opts.mongoDB, "collection", opts.mongoCollection, "documents", len(docs))
	return nil
}
