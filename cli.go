package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"osmextract/config"
)

const (
	cmdObjects    = "objects"
	cmdStreets    = "streets"
	cmdBoundaries = "boundaries"
)

// ExitError carries the process exit code of a failed run.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) *ExitError {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

type options struct {
	command string
	input   string
	output  string

	configPath string
	workers    int
	logLevel   string
	logFormat  string

	mongoURI        string
	mongoDB         string
	mongoCollection string

	// objects
	tags              string
	retainCoordinates bool
	format            string

	// streets
	name      string
	boundary  int
	tolerance float64

	// boundaries
	levels   string
	geometry bool

	geojson bool

	// names of the flags given on the command line
	set map[string]bool
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `
osmextract - Extract objects, streets and administrative boundaries from OSM data.

Usage:
  osmextract <command> [options] FILE

Commands:
  objects      primitives matching a tag query, with centroid and bounds
  streets      named road segments merged into streets
  boundaries   administrative boundaries with bounding boxes

FILE is an OSM PBF (.pbf) or OSM XML (.osm, .xml) file.
Run 'osmextract <command> -h' for the options of a command.
`)
}

// parseArgs processes the command line. It returns the parsed options, a
// boolean reporting whether the program should exit cleanly, or an
// *ExitError.
func parseArgs(args []string, output io.Writer) (*options, bool, error) {
	if len(args) == 0 {
		printUsage(output)
		return nil, false, usageError("missing command")
	}

	opts := &options{command: args[0], set: make(map[string]bool)}
	switch opts.command {
	case "-h", "-help", "--help", "help":
		printUsage(output)
		return nil, true, nil
	case cmdObjects, cmdStreets, cmdBoundaries:
	default:
		printUsage(output)
		return nil, false, usageError("unknown command %q", opts.command)
	}

	flagSet := flag.NewFlagSet("osmextract "+opts.command, flag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.Usage = func() {
		fmt.Fprintf(output, "\nUsage:\n  osmextract %s [options] FILE\n\nOptions:\n", opts.command)
		flagSet.PrintDefaults()
	}

	flagSet.StringVar(&opts.configPath, "config", "", "Path to an HCL configuration file.")
	flagSet.IntVar(&opts.workers, "workers", 0, "Number of concurrent workers. Defaults to the number of CPUs.")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.StringVar(&opts.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'.")
	flagSet.StringVar(&opts.mongoURI, "mongo-uri", "", "Also store the records in MongoDB at this URI.")
	flagSet.StringVar(&opts.mongoDB, "mongo-db", "osm", "MongoDB database.")
	flagSet.StringVar(&opts.mongoCollection, "mongo-collection", "", "MongoDB collection. Defaults to the command name.")
	flagSet.StringVar(&opts.output, "o", "", "Output file. Defaults to standard output.")

	switch opts.command {
	case cmdObjects:
		flagSet.StringVar(&opts.tags, "tags", "", "Tag query, e.g. 'amenity~fountain+tourism,amenity~townhall'. Empty matches every primitive, tagged or not.")
		flagSet.BoolVar(&opts.retainCoordinates, "retain-coordinates", false, "Include the resolved coordinates of each object.")
		flagSet.StringVar(&opts.format, "format", "jsonl", "Output format. Options: 'jsonl' or 'pbf'.")
	case cmdStreets:
		flagSet.StringVar(&opts.name, "name", "", "Only streets with exactly this name.")
		flagSet.IntVar(&opts.boundary, "boundary", 0, "Split streets by the boundaries of this admin level. 0 is disabled.")
		flagSet.StringVar(&opts.tags, "tags", "", "Tag query replacing the default highway classes.")
		flagSet.Float64Var(&opts.tolerance, "tolerance", 0, "Merge tolerance in meters. Overrides merge_tolerance.")
		flagSet.BoolVar(&opts.geojson, "geojson", false, "Write a GeoJSON FeatureCollection instead of JSON lines.")
	case cmdBoundaries:
		flagSet.StringVar(&opts.levels, "levels", "", "Comma separated admin levels, e.g. '4,6,8'. Overrides admin_levels.")
		flagSet.BoolVar(&opts.geometry, "geometry", false, "Include the assembled rings in JSON lines output.")
		flagSet.BoolVar(&opts.geojson, "geojson", false, "Write a GeoJSON FeatureCollection instead of JSON lines.")
	}

	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, usageError("%s", err.Error())
	}
	flagSet.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return nil, false, usageError("expected exactly one input file, got %d", flagSet.NArg())
	}
	opts.input = flagSet.Arg(0)

	if opts.command == cmdObjects {
		switch opts.format {
		case "jsonl":
		case "pbf":
			if opts.output == "" {
				return nil, false, usageError("-format pbf requires -o")
			}
		default:
			return nil, false, usageError("invalid format %q: must be 'jsonl' or 'pbf'", opts.format)
		}
	}
	if opts.boundary < 0 {
		return nil, false, usageError("invalid boundary level %d", opts.boundary)
	}
	if opts.mongoCollection == "" {
		opts.mongoCollection = opts.command
	}

	return opts, false, nil
}

// config layers the flags given on the command line over the defaults or
// the configuration file.
func (o *options) config() (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, usageError("%s", err.Error())
		}
	}

	if o.set["workers"] {
		cfg.Workers = o.workers
	}
	if o.set["log-level"] {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	if o.set["log-format"] {
		cfg.LogFormat = strings.ToLower(o.logFormat)
	}
	if o.set["tolerance"] {
		cfg.MergeTolerance = o.tolerance
	}
	if o.set["levels"] {
		levels, err := parseLevels(o.levels)
		if err != nil {
			return nil, usageError("invalid -levels: %s", err.Error())
		}
		cfg.AdminLevels = levels
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid configuration: %s", err.Error())
	}
	return cfg, nil
}

func parseLevels(s string) ([]int, error) {
	var levels []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		l, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("admin level %q is not a number", f)
		}
		levels = append(levels, l)
	}
	if len(levels) == 0 {
		return nil, errors.New("no admin level given")
	}
	return levels, nil
}
