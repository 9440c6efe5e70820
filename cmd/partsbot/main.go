package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"partsbot/internal"
	"partsbot/internal/app"
	"partsbot/internal/config"
	"partsbot/internal/logging"
	"partsbot/internal/pipeline"
	"partsbot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "resolve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		var v internal.VehicleDescriptor
		var p internal.PartQuery
		var position string
		fs.StringVar(&v.Make, "make", "", "vehicle make")
		fs.StringVar(&v.Model, "model", "", "vehicle model")
		fs.IntVar(&v.Year, "year", 0, "model year")
		fs.StringVar(&v.VIN, "vin", "", "vehicle identification number")
		fs.StringVar(&v.RC1, "rc1", "", "registration code 1 (HSN)")
		fs.StringVar(&v.RC2, "rc2", "", "registration code 2 (TSN)")
		fs.StringVar(&v.EngineCode, "engine", "", "engine code")
		fs.IntVar(&v.EnginePower, "kw", 0, "engine power in kW")
		fs.StringVar(&p.Text, "part", "", "part description")
		fs.StringVar(&position, "position", "", "front|rear")
		fs.StringVar(&p.Side, "side", "", "left|right")
		fs.StringVar(&p.SuspectedNumber, "number", "", "known article or OE number")
		lang := fs.String("lang", "", "catalog language")
		country := fs.String("country", "", "catalog country code")
		out := fs.String("out", "", "optional output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(p.Text) == "" {
			must(fmt.Errorf("--part is required"))
		}
		p.Position = internal.Position(strings.ToLower(position))

		a, err := app.Open(ctx, cfg, log)
		must(err)
		defer a.Close()

		res := a.Service.ResolveOem(ctx, v, p, internal.ResolveOptions{PreferredLanguage: *lang, CountryCode: *country})
		blob, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(blob))
		if *out != "" {
			must(pipeline.ExportBatchToXLSX([]pipeline.BatchOutcome{{RowNo: 1, Vehicle: v, Part: p, Result: res}}, *out))
			fmt.Printf("written %s\n", *out)
		}
	case "batch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input xlsx path")
		output := fs.String("output", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if *input == "" || *output == "" {
			must(fmt.Errorf("--input and --output are required"))
		}
		blob, err := os.ReadFile(*input)
		must(err)
		rows, err := pipeline.ParseBatchXLSX(blob)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no rows with part text in %s", *input))
		}

		a, err := app.Open(ctx, cfg, log)
		must(err)
		defer a.Close()

		outcomes := pipeline.RunBatch(ctx, a.Service, rows, log)
		must(pipeline.ExportBatchToXLSX(outcomes, *output))
		fmt.Printf("batch done rows=%d resolved=%d output=%s\n", len(outcomes), countResolved(outcomes), *output)
	case "history":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		trace := fs.String("trace", "", "show one run with its debug trail")
		_ = fs.Parse(os.Args[2:])
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		if *trace != "" {
			rec, err := db.MustResolution(*trace)
			must(err)
			blob, _ := json.MarshalIndent(rec, "", "  ")
			fmt.Println(string(blob))
			return
		}
		recs, err := db.ListResolutions(*limit)
		must(err)
		for _, r := range recs {
			best := "-"
			if r.Result.BestMatch != nil {
				best = *r.Result.BestMatch
			}
			fmt.Printf("%s  %s  %-13s %-12s %s | %s\n", r.CreatedAt, r.TraceID, r.Result.Status, best, storage.DescribeVehicle(r.Vehicle), r.Part.Text)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		limit := fs.Int("limit", 1000, "number of runs to export")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()
		rows, err := db.GetExportRows(*limit)
		must(err)
		if len(rows) == 0 {
			must(fmt.Errorf("no stored resolutions to export"))
		}
		must(pipeline.ExportResolutionsToXLSX(rows, *out))
		fmt.Printf("exported %d rows to %s\n", len(rows), *out)
	default:
		usage()
		os.Exit(1)
	}
}

func countResolved(outcomes []pipeline.BatchOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Result.BestMatch != nil {
			n++
		}
	}
	return n
}

func usage() {
	fmt.Println("usage: partsbot <command>")
	fmt.Println("commands:")
	fmt.Println("  resolve --part=... [--make --model --year --vin --rc1 --rc2 --engine --kw --position --side --number --lang --country --out]")
	fmt.Println("  batch --input=in.xlsx --output=out.xlsx")
	fmt.Println("  history [--limit=20] [--trace=<traceId>]")
	fmt.Println("  export:xlsx --out=./out/resolutions.xlsx [--limit=1000]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
