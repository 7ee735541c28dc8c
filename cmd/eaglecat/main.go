// Command eaglecat reads one field from a sharded EAGLE SUBFIND
// catalogue and prints a summary plus the leading rows.
//
// Usage:
//
//	eaglecat -base-dir /hpcdata0/simulations/EAGLE -sim L0012N0188 \
//	    -model REFERENCE -tag 028_z000p000 \
//	    -table FOF -field Group_M_Crit200 -cgs
//
// The locator can also come from a YAML config file (-config); flags
// set on the command line override it.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/j-davies-ari/eagle-guide/pkg/catalogue"
	"github.com/j-davies-ari/eagle-guide/pkg/hdf5io"
)

type fileConfig struct {
	Locator hdf5io.Locator `yaml:"locator"`
	Workers int            `yaml:"workers"`
}

func main() {
	var (
		configPath string
		baseDir    string
		sim        string
		model      string
		tag        string
		table      string
		field      string
		physical   bool
		cgs        bool
		workers    int
		head       int
		verbose    bool
	)

	flag.StringVar(&configPath, "config", "", "YAML config file with the catalogue locator")
	flag.StringVar(&baseDir, "base-dir", "", "Root of the simulation data tree")
	flag.StringVar(&sim, "sim", "", "Simulation volume, e.g. L0012N0188")
	flag.StringVar(&model, "model", "", "Physics model, e.g. REFERENCE")
	flag.StringVar(&tag, "tag", "", "Snapshot tag, e.g. 028_z000p000")
	flag.StringVar(&table, "table", "FOF", "Catalogue table (FOF or Subhalo)")
	flag.StringVar(&field, "field", "", "Field path within the table, e.g. Group_M_Crit200")
	flag.BoolVar(&physical, "physical", true, "Convert to physical units (h/a correction)")
	flag.BoolVar(&cgs, "cgs", false, "Convert to CGS units")
	flag.IntVar(&workers, "workers", 0, "Max concurrent shard reads (0 or 1 reads sequentially)")
	flag.IntVar(&head, "head", 10, "Number of leading rows to print")
	flag.BoolVar(&verbose, "verbose", false, "Log per-shard progress")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	cfg := fileConfig{}
	if configPath != "" {
		raw, err := os.ReadFile(configPath)
		if err != nil {
			level.Error(logger).Log("msg", "failed to read config", "path", configPath, "err", err)
			os.Exit(1)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			level.Error(logger).Log("msg", "failed to parse config", "path", configPath, "err", err)
			os.Exit(1)
		}
	}
	if baseDir != "" {
		cfg.Locator.BaseDir = baseDir
	}
	if sim != "" {
		cfg.Locator.Sim = sim
	}
	if model != "" {
		cfg.Locator.Model = model
	}
	if tag != "" {
		cfg.Locator.Tag = tag
	}
	if workers != 0 {
		cfg.Workers = workers
	}

	if field == "" {
		fmt.Fprintf(os.Stderr, "error: -field must be specified\n")
		flag.Usage()
		os.Exit(1)
	}
	if err := cfg.Locator.Validate(); err != nil {
		level.Error(logger).Log("msg", "incomplete catalogue locator", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		level.Info(logger).Log("msg", "received shutdown signal")
		cancel()
	}()

	shards, err := hdf5io.NewShardSet(cfg.Locator)
	if err != nil {
		level.Error(logger).Log("msg", "failed to create shard set", "err", err)
		os.Exit(1)
	}

	metrics := catalogue.NewMetrics(prometheus.NewRegistry())
	reader := catalogue.NewReader(shards, logger, metrics)

	opts := catalogue.ReadOptions{
		Physical:      physical,
		CGS:           cgs,
		MaxConcurrent: cfg.Workers,
	}
	col, info, err := reader.Read(ctx, catalogue.Table(table), field, opts)
	if err != nil {
		level.Error(logger).Log("msg", "read failed", "table", table, "field", field, "err", err)
		os.Exit(1)
	}

	fmt.Printf("%s/%s: %d rows x %d (%s) from %d shards, h=%g a=%g physical=%v cgs=%v\n",
		table, field, col.Rows(), col.Width(), info.Kind, info.Shards,
		info.Header.HubbleParam, info.Header.ExpansionFactor,
		info.PhysicalApplied, info.CGSApplied)

	if info.Kind.IsFloat() {
		min, mean, max := summarize(col)
		fmt.Printf("min=%g mean=%g max=%g\n", min, mean, max)
	}

	printHead(col, head)
}

func summarize(col *catalogue.Column) (min, mean, max float64) {
	at := elementAt(col)
	n := col.Len()
	if n == 0 {
		return 0, 0, 0
	}
	min, max = math.Inf(1), math.Inf(-1)
	sum := 0.0
	for i := 0; i < n; i++ {
		v := at(i)
		sum += v
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	return min, sum / float64(n), max
}

func printHead(col *catalogue.Column, head int) {
	rows := col.Rows()
	if head > rows {
		head = rows
	}
	format := formatElement(col)
	w := col.Width()
	for r := 0; r < head; r++ {
		for c := 0; c < w; c++ {
			if c > 0 {
				fmt.Print(" ")
			}
			fmt.Print(format(r*w + c))
		}
		fmt.Println()
	}
	if head < rows {
		fmt.Printf("... (%d more rows)\n", rows-head)
	}
}

// elementAt returns an accessor reading element i of the column as
// float64, whatever the backing type. Used for the float summary only.
func elementAt(col *catalogue.Column) func(int) float64 {
	switch col.Kind() {
	case catalogue.KindFloat32:
		s := col.Float32()
		return func(i int) float64 { return float64(s[i]) }
	default:
		s := col.Float64()
		return func(i int) float64 { return s[i] }
	}
}

// formatElement returns a formatter for element i in the column's own
// dtype, so large integer IDs never round-trip through float64.
func formatElement(col *catalogue.Column) func(int) string {
	switch col.Kind() {
	case catalogue.KindInt32:
		s := col.Int32()
		return func(i int) string { return fmt.Sprintf("%d", s[i]) }
	case catalogue.KindInt64:
		s := col.Int64()
		return func(i int) string { return fmt.Sprintf("%d", s[i]) }
	case catalogue.KindUint32:
		s := col.Uint32()
		return func(i int) string { return fmt.Sprintf("%d", s[i]) }
	case catalogue.KindUint64:
		s := col.Uint64()
		return func(i int) string { return fmt.Sprintf("%d", s[i]) }
	case catalogue.KindFloat32:
		s := col.Float32()
		return func(i int) string { return fmt.Sprintf("%g", s[i]) }
	default:
		s := col.Float64()
		return func(i int) string { return fmt.Sprintf("%g", s[i]) }
	}
}
